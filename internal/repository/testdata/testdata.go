// Package testdata loads seed documents into a collection when the service
// is configured to do so.
package testdata

import (
	"context"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db"
)

// Loader inserts test-data files referenced by version specs. Files are
// JSON arrays in MongoDB extended JSON, so authored $oid/$date values load
// as their native BSON types.
type Loader struct {
	db     db.Database
	logger *zap.Logger
}

// New creates a test-data loader.
func New(database db.Database, logger *zap.Logger) *Loader {
	return &Loader{db: database, logger: logger}
}

// Load reads the file at path and inserts its documents into coll.
func (l *Loader) Load(ctx context.Context, coll, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load test data for %s: %w", coll, err)
	}
	// The driver's extended-JSON decoder wants a document at the top level,
	// so the authored array is wrapped before decoding.
	wrapped := append(append([]byte(`{"docs":`), data...), '}')
	var holder struct {
		Docs bson.A `bson:"docs"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &holder); err != nil {
		return fmt.Errorf("load test data for %s: parse %s: %w", coll, path, err)
	}
	docs := holder.Docs
	if len(docs) == 0 {
		l.logger.Info("test data file is empty", zap.String("collection", coll), zap.String("path", path))
		return nil
	}
	if err := l.db.InsertMany(ctx, coll, docs); err != nil {
		return fmt.Errorf("load test data for %s: %w", coll, err)
	}
	l.logger.Info("test data loaded",
		zap.String("collection", coll),
		zap.Int("documents", len(docs)))
	return nil
}
