// Package migration executes the ordered aggregation pipelines of one
// version transition.
package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db"
	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
)

// Manager runs migration pipelines in declared order. Stages are opaque to
// the engine; the database runs them with allowDiskUse and majority
// concerns.
type Manager struct {
	db      db.Database
	logger  *zap.Logger
	timeout time.Duration
}

// New creates a migration manager. timeout bounds each pipeline; zero means
// no per-pipeline bound beyond the caller's context.
func New(database db.Database, timeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{db: database, timeout: timeout, logger: logger}
}

// Run executes every pipeline in order. The first failure aborts with a
// MigrationError carrying the zero-based pipeline index. A pipeline without
// a terminal $merge/$out stage is executed anyway and surfaced as a no-op.
func (m *Manager) Run(ctx context.Context, coll string, pipelines []collection.Pipeline) error {
	for i, pipeline := range pipelines {
		if !pipeline.HasTerminalWrite() {
			m.logger.Info("pipeline has no terminal write stage, results are discarded",
				zap.String("collection", coll),
				zap.Int("pipeline", i))
		}
		if err := m.runOne(ctx, coll, pipeline); err != nil {
			return &domain.MigrationError{Pipeline: i, Err: err}
		}
		m.logger.Info("migration pipeline completed",
			zap.String("collection", coll),
			zap.Int("pipeline", i),
			zap.Int("stages", len(pipeline)))
	}
	return nil
}

func (m *Manager) runOne(ctx context.Context, coll string, pipeline collection.Pipeline) error {
	if len(pipeline) == 0 {
		return fmt.Errorf("empty pipeline")
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	return m.db.Aggregate(ctx, coll, pipeline)
}
