// Package versions persists the per-collection current-version marker in a
// dedicated collection.
package versions

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db"
	"github.com/mongodrift/mongodrift/internal/domain/version"
)

// Store reads and writes CollectionVersionRecord documents. The processor
// writes through it exactly once per successful transition.
type Store struct {
	db     db.Database
	coll   string
	logger *zap.Logger
}

// New creates a version store over the named marker collection.
func New(database db.Database, coll string, logger *zap.Logger) *Store {
	return &Store{db: database, coll: coll, logger: logger}
}

// Read returns the recorded version of a collection. No record means the
// 0.0.0.0 sentinel; multiple records mean a corrupt store and also resolve
// to the sentinel, with a warning.
func (s *Store) Read(ctx context.Context, name string) (version.Number, error) {
	docs, err := s.db.Find(ctx, s.coll, bson.D{{Key: "collection_name", Value: name}})
	if err != nil {
		return version.Zero, fmt.Errorf("read version of %s: %w", name, err)
	}
	switch len(docs) {
	case 0:
		return version.Zero, nil
	case 1:
		raw, _ := docs[0]["current_version"].(string)
		v, err := version.Parse(raw)
		if err != nil {
			s.logger.Warn("unparsable version record, treating as never applied",
				zap.String("collection", name),
				zap.String("current_version", raw))
			return version.Zero, nil
		}
		return v, nil
	default:
		s.logger.Warn("multiple version records, treating as never applied",
			zap.String("collection", name),
			zap.Int("records", len(docs)))
		return version.Zero, nil
	}
}

// Write upserts the version record keyed by collection name.
func (s *Store) Write(ctx context.Context, name string, v version.Number) error {
	filter := bson.D{{Key: "collection_name", Value: name}}
	update := bson.D{
		{Key: "collection_name", Value: name},
		{Key: "current_version", Value: v.String()},
	}
	if err := s.db.UpsertOne(ctx, s.coll, filter, update); err != nil {
		return fmt.Errorf("write version of %s: %w", name, err)
	}
	return nil
}
