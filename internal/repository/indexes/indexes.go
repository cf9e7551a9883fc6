// Package indexes drives index creation and deletion for one version
// transition.
package indexes

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db"
	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
)

// Manager creates and drops indexes through the database capability.
type Manager struct {
	db     db.Database
	logger *zap.Logger
}

// New creates an index manager.
func New(database db.Database, logger *zap.Logger) *Manager {
	return &Manager{db: database, logger: logger}
}

// Create creates one index. An existing index with the same name and key is
// skipped, which keeps re-runs of a transition safe; the same name over a
// different key is a conflict.
func (m *Manager) Create(ctx context.Context, coll string, index collection.Index) error {
	if index.Name == "" {
		return fmt.Errorf("%w: index name is required", domain.ErrIndexInvalid)
	}
	if len(index.Key) == 0 {
		return fmt.Errorf("%w: index %q has no key", domain.ErrIndexInvalid, index.Name)
	}

	existing, err := m.db.ListIndexes(ctx, coll)
	if err != nil {
		return fmt.Errorf("create index %s.%s: %w", coll, index.Name, err)
	}
	for _, info := range existing {
		if info.Name != index.Name {
			continue
		}
		if reflect.DeepEqual(info.Key, index.Key) {
			m.logger.Info("index already exists, skipping",
				zap.String("collection", coll),
				zap.String("index", index.Name))
			return nil
		}
		return &domain.IndexConflictError{Index: index.Name}
	}

	if err := m.db.CreateIndex(ctx, coll, index); err != nil {
		return fmt.Errorf("create index %s.%s: %w", coll, index.Name, err)
	}
	m.logger.Info("index created",
		zap.String("collection", coll),
		zap.String("index", index.Name))
	return nil
}

// Drop drops an index by name. Missing indexes are skipped silently apart
// from an INFO line.
func (m *Manager) Drop(ctx context.Context, coll, name string) error {
	if err := m.db.DropIndex(ctx, coll, name); err != nil {
		return fmt.Errorf("drop index %s.%s: %w", coll, name, err)
	}
	m.logger.Info("index dropped",
		zap.String("collection", coll),
		zap.String("index", name))
	return nil
}
