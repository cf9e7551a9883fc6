// Package process drives collections from their recorded version to the
// latest declared version, one six-step transition per intermediate
// version. Collections are processed in parallel; everything within one
// collection is strictly sequential.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
	"github.com/mongodrift/mongodrift/internal/domain/version"
	"github.com/mongodrift/mongodrift/internal/metrics"
	"github.com/mongodrift/mongodrift/internal/repository/catalog"
	"github.com/mongodrift/mongodrift/internal/repository/indexes"
	"github.com/mongodrift/mongodrift/internal/repository/migration"
	"github.com/mongodrift/mongodrift/internal/repository/testdata"
	"github.com/mongodrift/mongodrift/internal/repository/validator"
	"github.com/mongodrift/mongodrift/internal/repository/versions"
	"github.com/mongodrift/mongodrift/internal/usecase/render"
)

// Step names as they appear in operation records.
const (
	StepSkip          = "skip_version"
	StepReadVersion   = "read_version"
	StepDropValidator = "drop_validator"
	StepDropIndexes   = "drop_indexes"
	StepMigrate       = "migrate"
	StepAddIndexes    = "add_indexes"
	StepAddValidator  = "add_validator"
	StepWriteVersion  = "write_version"
	StepLoadTestData  = "load_test_data"
)

// Operation statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Operation records one executed (or skipped) step.
type Operation struct {
	Step    string `json:"step"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Result is the outcome for one collection.
type Result struct {
	Collection string      `json:"collection"`
	Operations []Operation `json:"operations"`
	Status     string      `json:"status"`
}

// Options tune the processor.
type Options struct {
	// Workers caps concurrent collections. Zero means one worker per
	// collection, capped at 8.
	Workers int
	// OperationTimeout bounds each database step except migrations.
	OperationTimeout time.Duration
	// TransitionTimeout bounds one full version transition.
	TransitionTimeout time.Duration
	// LoadTestData enables the optional test-data step.
	LoadTestData bool
}

const defaultWorkerCap = 8

// Processor is the configuration manager: one immutable graph in, ordered
// operation records out. Safe for concurrent use; per-collection locks
// serialize overlapping requests for the same collection.
type Processor struct {
	catalog    *catalog.Catalog
	render     *render.Service
	versions   *versions.Store
	indexes    *indexes.Manager
	migrations *migration.Manager
	applier    *validator.Applier
	testData   *testdata.Loader
	logger     *zap.Logger
	opts       Options
	locks      *keyedLocks
}

// New wires the processor.
func New(
	cat *catalog.Catalog,
	renderSvc *render.Service,
	versionStore *versions.Store,
	indexManager *indexes.Manager,
	migrationManager *migration.Manager,
	applier *validator.Applier,
	testDataLoader *testdata.Loader,
	opts Options,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		catalog:    cat,
		render:     renderSvc,
		versions:   versionStore,
		indexes:    indexManager,
		migrations: migrationManager,
		applier:    applier,
		testData:   testDataLoader,
		logger:     logger,
		opts:       opts,
		locks:      newKeyedLocks(),
	}
}

// ProcessAll advances every configured collection. Results keep the
// catalog's collection order. A failed collection never stops the others.
func (p *Processor) ProcessAll(ctx context.Context) []Result {
	runID := uuid.NewString()
	results := make([]Result, len(p.catalog.Collections))

	workers := p.opts.Workers
	if workers <= 0 {
		workers = len(p.catalog.Collections)
		if workers > defaultWorkerCap {
			workers = defaultWorkerCap
		}
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, cfg := range p.catalog.Collections {
		g.Go(func() error {
			results[i] = p.processCollection(ctx, cfg, runID)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ProcessOne advances a single collection by name.
func (p *Processor) ProcessOne(ctx context.Context, name string) (Result, error) {
	cfg, ok := p.catalog.Collection(name)
	if !ok {
		return Result{}, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	return p.processCollection(ctx, cfg, uuid.NewString()), nil
}

func (p *Processor) processCollection(ctx context.Context, cfg *collection.Config, runID string) Result {
	unlock := p.locks.lock(cfg.Name)
	defer unlock()

	logger := p.logger.With(
		zap.String("run_id", runID),
		zap.String("collection", cfg.Name),
	)
	result := Result{Collection: cfg.Name, Status: StatusOK}

	current, err := p.readVersion(ctx, cfg.Name)
	if err != nil {
		logger.Error("failed to read current version", zap.Error(err))
		result.Operations = append(result.Operations, Operation{
			Step: StepReadVersion, Status: StatusFailed, Message: err.Error(),
		})
		result.Status = StatusFailed
		return result
	}
	logger.Info("processing collection", zap.String("current_version", current.String()))

	for _, spec := range cfg.Versions {
		target, err := version.Parse(spec.Version)
		if err != nil {
			// Validation rejects this before any run; belt and braces here.
			result.Operations = append(result.Operations, Operation{
				Step: StepSkip, Version: spec.Version, Status: StatusFailed, Message: err.Error(),
			})
			result.Status = StatusFailed
			return result
		}
		if !current.Less(target) {
			result.Operations = append(result.Operations, Operation{
				Step: StepSkip, Version: spec.Version, Status: StatusSkipped,
				Message: fmt.Sprintf("already at %s", current),
			})
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Operations = append(result.Operations, Operation{
				Step: StepSkip, Version: spec.Version, Status: StatusFailed, Message: err.Error(),
			})
			result.Status = StatusFailed
			return result
		}

		ops, err := p.transition(ctx, cfg.Name, spec, target, logger)
		result.Operations = append(result.Operations, ops...)
		if err != nil {
			// The prior version stays recorded; later versions never run.
			logger.Error("transition failed",
				zap.String("version", target.String()),
				zap.Error(err))
			metrics.TransitionsTotal.WithLabelValues(StatusFailed).Inc()
			result.Status = StatusFailed
			return result
		}
		metrics.TransitionsTotal.WithLabelValues(StatusOK).Inc()
		current = target
		logger.Info("version applied", zap.String("version", target.String()))
	}
	return result
}

// transition runs the six-step advance to one target version. Steps are
// strictly sequential; cancellation is honored between steps, never
// mid-step.
func (p *Processor) transition(
	ctx context.Context,
	coll string,
	spec collection.VersionSpec,
	target version.Number,
	logger *zap.Logger,
) ([]Operation, error) {
	if p.opts.TransitionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TransitionTimeout)
		defer cancel()
	}

	steps := []struct {
		name string
		fn   func(context.Context) (string, error)
	}{
		{StepDropValidator, func(ctx context.Context) (string, error) {
			return "", p.withOp(ctx, func(ctx context.Context) error {
				return p.applier.Remove(ctx, coll)
			})
		}},
		{StepDropIndexes, func(ctx context.Context) (string, error) {
			for _, name := range spec.DropIndexes {
				err := p.withOp(ctx, func(ctx context.Context) error {
					return p.indexes.Drop(ctx, coll, name)
				})
				if err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("dropped %d indexes", len(spec.DropIndexes)), nil
		}},
		{StepMigrate, func(ctx context.Context) (string, error) {
			if err := p.migrations.Run(ctx, coll, spec.Aggregations); err != nil {
				return "", err
			}
			return fmt.Sprintf("ran %d pipelines", len(spec.Aggregations)), nil
		}},
		{StepAddIndexes, func(ctx context.Context) (string, error) {
			for _, idx := range spec.AddIndexes {
				err := p.withOp(ctx, func(ctx context.Context) error {
					return p.indexes.Create(ctx, coll, idx)
				})
				if err != nil {
					return "", err
				}
			}
			return fmt.Sprintf("added %d indexes", len(spec.AddIndexes)), nil
		}},
		{StepAddValidator, func(ctx context.Context) (string, error) {
			schema, err := p.render.BSONSchema(coll, spec.Version)
			if err != nil {
				return "", err
			}
			return "", p.withOp(ctx, func(ctx context.Context) error {
				return p.applier.Apply(ctx, coll, schema)
			})
		}},
		{StepWriteVersion, func(ctx context.Context) (string, error) {
			return "", p.withOp(ctx, func(ctx context.Context) error {
				return p.versions.Write(ctx, coll, target)
			})
		}},
	}
	if p.opts.LoadTestData && spec.TestData != "" {
		steps = append(steps, struct {
			name string
			fn   func(context.Context) (string, error)
		}{StepLoadTestData, func(ctx context.Context) (string, error) {
			path, ok := p.catalog.TestData[spec.TestData]
			if !ok {
				return "", fmt.Errorf("test data file %q: %w", spec.TestData, domain.ErrNotFound)
			}
			return spec.TestData, p.withOp(ctx, func(ctx context.Context) error {
				return p.testData.Load(ctx, coll, path)
			})
		}})
	}

	var ops []Operation
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			ops = append(ops, Operation{
				Step: step.name, Version: target.String(), Status: StatusFailed, Message: err.Error(),
			})
			return ops, err
		}
		start := time.Now()
		message, err := step.fn(ctx)
		metrics.StepDuration.WithLabelValues(step.name).Observe(time.Since(start).Seconds())
		if err != nil {
			ops = append(ops, Operation{
				Step: step.name, Version: target.String(), Status: StatusFailed, Message: err.Error(),
			})
			return ops, err
		}
		ops = append(ops, Operation{
			Step: step.name, Version: target.String(), Status: StatusOK, Message: message,
		})
		logger.Debug("step completed",
			zap.String("step", step.name),
			zap.String("version", target.String()),
			zap.Duration("elapsed", time.Since(start)))
	}
	return ops, nil
}

func (p *Processor) readVersion(ctx context.Context, name string) (version.Number, error) {
	var v version.Number
	err := p.withOp(ctx, func(ctx context.Context) error {
		var readErr error
		v, readErr = p.versions.Read(ctx, name)
		return readErr
	})
	return v, err
}

// withOp bounds one database operation with the configured timeout.
func (p *Processor) withOp(ctx context.Context, fn func(context.Context) error) error {
	if p.opts.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.OperationTimeout)
		defer cancel()
	}
	return fn(ctx)
}
