package migration

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db/dbtest"
	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
)

func mergePipeline() collection.Pipeline {
	return collection.Pipeline{
		bson.D{{Key: "$addFields", Value: bson.D{{Key: "full_name", Value: "$userName"}}}},
		bson.D{{Key: "$merge", Value: bson.D{{Key: "into", Value: "users"}}}},
	}
}

func TestRun_Order(t *testing.T) {
	fake := dbtest.New()
	var seen int
	fake.AggregateFn = func(_ *dbtest.Fake, _ string, _ collection.Pipeline) error {
		seen++
		return nil
	}
	m := New(fake, 0, zap.NewNop())

	err := m.Run(context.Background(), "users", []collection.Pipeline{mergePipeline(), mergePipeline()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen != 2 {
		t.Errorf("expected 2 pipelines to run, got %d", seen)
	}
}

func TestRun_FailureCarriesIndex(t *testing.T) {
	fake := dbtest.New()
	calls := 0
	fake.AggregateFn = func(_ *dbtest.Fake, _ string, _ collection.Pipeline) error {
		calls++
		if calls == 2 {
			return errors.New("stage blew up")
		}
		return nil
	}
	m := New(fake, 0, zap.NewNop())

	err := m.Run(context.Background(), "users",
		[]collection.Pipeline{mergePipeline(), mergePipeline(), mergePipeline()})
	if !errors.Is(err, domain.ErrMigrationFailed) {
		t.Fatalf("expected ErrMigrationFailed, got %v", err)
	}
	var migErr *domain.MigrationError
	if !errors.As(err, &migErr) {
		t.Fatalf("expected *MigrationError, got %T", err)
	}
	if migErr.Pipeline != 1 {
		t.Errorf("failing pipeline index = %d, want 1", migErr.Pipeline)
	}
	if calls != 2 {
		t.Errorf("pipelines after the failure must not run, calls = %d", calls)
	}
}

func TestRun_EmptyPipelineFails(t *testing.T) {
	m := New(dbtest.New(), 0, zap.NewNop())
	err := m.Run(context.Background(), "users", []collection.Pipeline{{}})
	if !errors.Is(err, domain.ErrMigrationFailed) {
		t.Errorf("expected ErrMigrationFailed for an empty pipeline, got %v", err)
	}
}

func TestRun_NoTerminalWriteStillRuns(t *testing.T) {
	fake := dbtest.New()
	ran := false
	fake.AggregateFn = func(_ *dbtest.Fake, _ string, _ collection.Pipeline) error {
		ran = true
		return nil
	}
	m := New(fake, 0, zap.NewNop())

	noWrite := collection.Pipeline{bson.D{{Key: "$addFields", Value: bson.D{{Key: "x", Value: 1}}}}}
	if err := m.Run(context.Background(), "users", []collection.Pipeline{noWrite}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Error("a pipeline without a terminal write should still execute")
	}
}
