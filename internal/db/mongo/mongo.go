// Package mongo implements the db.Database capability on the official
// MongoDB driver.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/mongodrift/mongodrift/internal/db"
	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
)

// MongoDB server error codes the store reacts to.
const (
	codeNamespaceNotFound     = 26
	codeIndexNotFound         = 27
	codeNamespaceExists       = 48
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// Config holds externally injected connection parameters.
type Config struct {
	URI      string
	Database string
}

// Store is the MongoDB-backed Database implementation.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ db.Database = (*Store)(nil)

// Connect dials the server and returns a Store. The URI is passed through
// to the driver untouched.
func Connect(cfg Config) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDatabaseUnavailable, err)
	}
	return &Store{client: client, db: client.Database(cfg.Database)}, nil
}

// collection returns a handle with majority read and write concerns, the
// posture every engine operation uses.
func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name, options.Collection().
		SetReadConcern(readconcern.Majority()).
		SetWriteConcern(writeconcern.Majority()))
}

// ListCollections returns all collection names.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, classify(err, "list collections")
	}
	return names, nil
}

// GetValidator returns the installed $jsonSchema validator, or nil.
func (s *Store) GetValidator(ctx context.Context, name string) (bson.D, error) {
	cur, err := s.db.ListCollections(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return nil, classify(err, "get validator")
	}
	var specs []struct {
		Options struct {
			Validator bson.D `bson:"validator"`
		} `bson:"options"`
	}
	if err := cur.All(ctx, &specs); err != nil {
		return nil, classify(err, "get validator")
	}
	if len(specs) == 0 {
		return nil, nil
	}
	for _, e := range specs[0].Options.Validator {
		if e.Key == "$jsonSchema" {
			if schema, ok := e.Value.(bson.D); ok {
				return schema, nil
			}
		}
	}
	return nil, nil
}

// SetValidator installs a $jsonSchema validator via collMod, creating the
// collection first when it does not exist.
func (s *Store) SetValidator(ctx context.Context, name string, schema bson.D, level, action string) error {
	if err := s.ensureCollection(ctx, name); err != nil {
		return err
	}
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: bson.D{{Key: "$jsonSchema", Value: schema}}},
		{Key: "validationLevel", Value: level},
		{Key: "validationAction", Value: action},
	}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		if _, ok := serverErr(err); ok {
			return fmt.Errorf("%w: %v", domain.ErrValidatorRejected, err)
		}
		return classify(err, "set validator")
	}
	return nil
}

// ClearValidator removes the validator. A missing collection is fine.
func (s *Store) ClearValidator(ctx context.Context, name string) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: bson.D{}},
		{Key: "validationLevel", Value: "off"},
	}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		if hasCode(err, codeNamespaceNotFound) {
			return nil
		}
		return classify(err, "clear validator")
	}
	return nil
}

// ListIndexes returns the existing indexes. A missing collection yields an
// empty list.
func (s *Store) ListIndexes(ctx context.Context, name string) ([]db.IndexInfo, error) {
	cur, err := s.collection(name).Indexes().List(ctx)
	if err != nil {
		if hasCode(err, codeNamespaceNotFound) {
			return nil, nil
		}
		return nil, classify(err, "list indexes")
	}
	var raw []struct {
		Name string `bson:"name"`
		Key  bson.D `bson:"key"`
	}
	if err := cur.All(ctx, &raw); err != nil {
		return nil, classify(err, "list indexes")
	}
	infos := make([]db.IndexInfo, len(raw))
	for i, r := range raw {
		infos[i] = db.IndexInfo{Name: r.Name, Key: r.Key}
	}
	return infos, nil
}

// CreateIndex creates one index via the createIndexes command so authored
// options pass through opaquely.
func (s *Store) CreateIndex(ctx context.Context, name string, index collection.Index) error {
	spec := bson.D{
		{Key: "key", Value: index.Key},
		{Key: "name", Value: index.Name},
	}
	spec = append(spec, index.Options...)
	cmd := bson.D{
		{Key: "createIndexes", Value: name},
		{Key: "indexes", Value: bson.A{spec}},
	}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		if hasCode(err, codeIndexOptionsConflict) || hasCode(err, codeIndexKeySpecsConflict) {
			return &domain.IndexConflictError{Index: index.Name}
		}
		if _, ok := serverErr(err); ok {
			return fmt.Errorf("%w: %q: %v", domain.ErrIndexInvalid, index.Name, err)
		}
		return classify(err, "create index")
	}
	return nil
}

// DropIndex drops an index by name. Missing index or collection is a no-op.
func (s *Store) DropIndex(ctx context.Context, name, indexName string) error {
	cmd := bson.D{
		{Key: "dropIndexes", Value: name},
		{Key: "index", Value: indexName},
	}
	if err := s.db.RunCommand(ctx, cmd).Err(); err != nil {
		if hasCode(err, codeIndexNotFound) || hasCode(err, codeNamespaceNotFound) {
			return nil
		}
		return classify(err, "drop index")
	}
	return nil
}

// Aggregate runs one pipeline with allowDiskUse and drains the cursor. A
// pipeline ending in $merge or $out returns no documents.
func (s *Store) Aggregate(ctx context.Context, name string, pipeline collection.Pipeline) error {
	stages := make(mongo.Pipeline, len(pipeline))
	copy(stages, pipeline)
	cur, err := s.collection(name).Aggregate(ctx, stages, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return classify(err, "aggregate")
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
	}
	if err := cur.Err(); err != nil {
		return classify(err, "aggregate")
	}
	return nil
}

// Find returns every matching document.
func (s *Store) Find(ctx context.Context, name string, filter bson.D) ([]bson.M, error) {
	cur, err := s.collection(name).Find(ctx, filter)
	if err != nil {
		return nil, classify(err, "find")
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify(err, "find")
	}
	return docs, nil
}

// UpsertOne applies a $set upsert keyed by the filter.
func (s *Store) UpsertOne(ctx context.Context, name string, filter, update bson.D) error {
	_, err := s.collection(name).UpdateOne(ctx, filter,
		bson.D{{Key: "$set", Value: update}},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return classify(err, "upsert")
	}
	return nil
}

// InsertMany inserts documents in order.
func (s *Store) InsertMany(ctx context.Context, name string, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := s.collection(name).InsertMany(ctx, docs); err != nil {
		return classify(err, "insert")
	}
	return nil
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDatabaseUnavailable, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureCollection(ctx context.Context, name string) error {
	if err := s.db.CreateCollection(ctx, name); err != nil {
		if hasCode(err, codeNamespaceExists) {
			return nil
		}
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists" {
			return nil
		}
		return classify(err, "create collection")
	}
	return nil
}

func serverErr(err error) (mongo.ServerError, bool) {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func hasCode(err error, code int) bool {
	if se, ok := serverErr(err); ok {
		return se.HasErrorCode(code)
	}
	return false
}

// classify folds non-command failures (network, server selection, context)
// into the retriable DatabaseUnavailable kind; command errors pass through
// with context attached.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, ok := serverErr(err); ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrDatabaseUnavailable, err)
}
