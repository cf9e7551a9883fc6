// Package db defines the database capability the engine consumes. The
// interface is the complete contract: everything the processor, version
// store, and loaders do against MongoDB goes through it, which keeps the
// engine testable with an in-memory fake.
package db

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodrift/mongodrift/internal/domain/collection"
)

// IndexInfo is one existing index as reported by the database.
type IndexInfo struct {
	Name string
	Key  bson.D
}

// Database is the opaque capability of spec-driven operations. Connection
// parameters are injected at construction; callers never see them.
type Database interface {
	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// GetValidator returns the $jsonSchema validator installed on a
	// collection, or nil when none is installed.
	GetValidator(ctx context.Context, name string) (bson.D, error)
	// SetValidator installs a $jsonSchema document validator, creating the
	// collection when it does not exist yet.
	SetValidator(ctx context.Context, name string, schema bson.D, level, action string) error
	// ClearValidator removes any document validator. Missing collections
	// and missing validators are not errors.
	ClearValidator(ctx context.Context, name string) error

	// ListIndexes returns the existing indexes of a collection. A missing
	// collection yields an empty list.
	ListIndexes(ctx context.Context, name string) ([]IndexInfo, error)
	// CreateIndex creates one index.
	CreateIndex(ctx context.Context, name string, index collection.Index) error
	// DropIndex drops an index by name. Dropping a missing index or a
	// missing collection succeeds.
	DropIndex(ctx context.Context, name, indexName string) error

	// Aggregate runs one pipeline with terminal-write semantics:
	// allowDiskUse is set and read/write concerns are majority.
	Aggregate(ctx context.Context, name string, pipeline collection.Pipeline) error

	// Find returns every document matching the filter.
	Find(ctx context.Context, name string, filter bson.D) ([]bson.M, error)
	// UpsertOne updates the single document matching the filter, inserting
	// it when absent.
	UpsertOne(ctx context.Context, name string, filter, update bson.D) error
	// InsertMany inserts documents in order.
	InsertMany(ctx context.Context, name string, docs []any) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases the underlying client.
	Close(ctx context.Context) error
}
