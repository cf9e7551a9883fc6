// Package dbtest provides an in-memory db.Database for tests.
package dbtest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodrift/mongodrift/internal/db"
	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
)

// Collection is the in-memory state of one collection.
type Collection struct {
	Validator       bson.D
	ValidationLevel string
	ValidationAct   string
	Indexes         []collection.Index
	Docs            []bson.M
}

// Fake implements db.Database in memory. Error injection uses FailOnce
// (consumed on first use) and FailAlways, both keyed by operation name:
// createIndex, dropIndex, aggregate, setValidator, clearValidator, find,
// upsertOne, insertMany, ping.
type Fake struct {
	mu          sync.Mutex
	Collections map[string]*Collection
	FailOnce    map[string]error
	FailAlways  map[string]error

	// AggregateFn, when set, models pipeline effects against Docs.
	AggregateFn func(f *Fake, name string, pipeline collection.Pipeline) error

	// Writes counts mutating operations, for no-op assertions.
	Writes int
}

var _ db.Database = (*Fake)(nil)

// New creates an empty fake database.
func New() *Fake {
	return &Fake{
		Collections: make(map[string]*Collection),
		FailOnce:    make(map[string]error),
		FailAlways:  make(map[string]error),
	}
}

func (f *Fake) failure(op string) error {
	if err, ok := f.FailAlways[op]; ok {
		return err
	}
	if err, ok := f.FailOnce[op]; ok {
		delete(f.FailOnce, op)
		return err
	}
	return nil
}

// ensure returns the named collection, creating it (with the implicit _id_
// index) on first touch.
func (f *Fake) ensure(name string) *Collection {
	c, ok := f.Collections[name]
	if !ok {
		c = &Collection{
			Indexes: []collection.Index{{Name: "_id_", Key: bson.D{{Key: "_id", Value: 1}}}},
		}
		f.Collections[name] = c
	}
	return c
}

// Get returns a collection's state without creating it.
func (f *Fake) Get(name string) (*Collection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Collections[name]
	return c, ok
}

// IndexNames returns the names of a collection's indexes.
func (f *Fake) IndexNames(name string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Collections[name]
	if !ok {
		return nil
	}
	names := make([]string, len(c.Indexes))
	for i, idx := range c.Indexes {
		names[i] = idx.Name
	}
	return names
}

func (f *Fake) ListCollections(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.Collections))
	for name := range f.Collections {
		names = append(names, name)
	}
	return names, nil
}

func (f *Fake) GetValidator(_ context.Context, name string) (bson.D, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.Collections[name]; ok {
		return c.Validator, nil
	}
	return nil, nil
}

func (f *Fake) SetValidator(_ context.Context, name string, schema bson.D, level, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("setValidator"); err != nil {
		return err
	}
	c := f.ensure(name)
	c.Validator = schema
	c.ValidationLevel = level
	c.ValidationAct = action
	f.Writes++
	return nil
}

func (f *Fake) ClearValidator(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("clearValidator"); err != nil {
		return err
	}
	if c, ok := f.Collections[name]; ok {
		c.Validator = nil
		f.Writes++
	}
	return nil
}

func (f *Fake) ListIndexes(_ context.Context, name string) ([]db.IndexInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Collections[name]
	if !ok {
		return nil, nil
	}
	infos := make([]db.IndexInfo, len(c.Indexes))
	for i, idx := range c.Indexes {
		infos[i] = db.IndexInfo{Name: idx.Name, Key: idx.Key}
	}
	return infos, nil
}

func (f *Fake) CreateIndex(_ context.Context, name string, index collection.Index) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("createIndex"); err != nil {
		return err
	}
	c := f.ensure(name)
	for _, existing := range c.Indexes {
		if existing.Name == index.Name {
			if !reflect.DeepEqual(existing.Key, index.Key) {
				return &domain.IndexConflictError{Index: index.Name}
			}
			return nil
		}
	}
	c.Indexes = append(c.Indexes, index)
	f.Writes++
	return nil
}

func (f *Fake) DropIndex(_ context.Context, name, indexName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("dropIndex"); err != nil {
		return err
	}
	c, ok := f.Collections[name]
	if !ok {
		return nil
	}
	for i, idx := range c.Indexes {
		if idx.Name == indexName {
			c.Indexes = append(c.Indexes[:i], c.Indexes[i+1:]...)
			f.Writes++
			return nil
		}
	}
	return nil
}

func (f *Fake) Aggregate(_ context.Context, name string, pipeline collection.Pipeline) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("aggregate"); err != nil {
		return err
	}
	f.ensure(name)
	f.Writes++
	if f.AggregateFn != nil {
		return f.AggregateFn(f, name, pipeline)
	}
	return nil
}

func (f *Fake) Find(_ context.Context, name string, filter bson.D) ([]bson.M, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("find"); err != nil {
		return nil, err
	}
	c, ok := f.Collections[name]
	if !ok {
		return nil, nil
	}
	var out []bson.M
	for _, doc := range c.Docs {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *Fake) UpsertOne(_ context.Context, name string, filter, update bson.D) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("upsertOne"); err != nil {
		return err
	}
	c := f.ensure(name)
	f.Writes++
	for _, doc := range c.Docs {
		if matches(doc, filter) {
			for _, e := range update {
				doc[e.Key] = e.Value
			}
			return nil
		}
	}
	doc := bson.M{}
	for _, e := range update {
		doc[e.Key] = e.Value
	}
	c.Docs = append(c.Docs, doc)
	return nil
}

func (f *Fake) InsertMany(_ context.Context, name string, docs []any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("insertMany"); err != nil {
		return err
	}
	c := f.ensure(name)
	f.Writes++
	for _, doc := range docs {
		m, ok := doc.(bson.M)
		if !ok {
			d, okD := doc.(bson.D)
			if !okD {
				return fmt.Errorf("insertMany: unsupported document type %T", doc)
			}
			m = bson.M{}
			for _, e := range d {
				m[e.Key] = e.Value
			}
		}
		c.Docs = append(c.Docs, m)
	}
	return nil
}

func (f *Fake) Ping(_ context.Context) error { return f.failure("ping") }

func (f *Fake) Close(_ context.Context) error { return nil }

func matches(doc bson.M, filter bson.D) bool {
	for _, e := range filter {
		if !reflect.DeepEqual(doc[e.Key], e.Value) {
			return false
		}
	}
	return true
}
