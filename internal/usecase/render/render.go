// Package render produces the external schema documents for a
// (collection, version) pair: JSON-Schema for API consumers, BSON-schema
// for the database validator, and a minimal OpenAPI components fragment.
package render

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/schema"
	"github.com/mongodrift/mongodrift/internal/domain/version"
	"github.com/mongodrift/mongodrift/internal/repository/catalog"
)

// JSONSchemaDraft tags rendered JSON schemas. The one_of construct relies
// on if/then, so draft-07 is the floor.
const JSONSchemaDraft = "http://json-schema.org/draft-07/schema#"

// Service renders schemas from the loaded catalog. All methods are pure
// functions of the catalog contents.
type Service struct {
	catalog *catalog.Catalog
}

// New creates a render service.
func New(c *catalog.Catalog) *Service {
	return &Service{catalog: c}
}

// Resolve expands the schema of one declared collection version into its
// JSON and BSON forms. Resolution defects are folded into the returned
// error; partial documents are never returned.
func (s *Service) Resolve(name, versionStr string) (jsonDoc, bsonDoc bson.D, err error) {
	cfg, ok := s.catalog.Collection(name)
	if !ok {
		return nil, nil, fmt.Errorf("collection %q: %w", name, domain.ErrNotFound)
	}
	if _, ok := cfg.VersionSpec(versionStr); !ok {
		return nil, nil, fmt.Errorf("collection %q version %q: %w", name, versionStr, domain.ErrNotFound)
	}
	v, err := version.Parse(versionStr)
	if err != nil {
		return nil, nil, err
	}

	if s.catalog.Enumerators == nil {
		return nil, nil, fmt.Errorf("collection %q: enumerators unavailable: %w", name, domain.ErrValidationFailed)
	}
	set, err := s.catalog.Enumerators.Version(v.EnumeratorVersion())
	if err != nil {
		return nil, nil, err
	}

	file := catalog.SchemaFile(name, v.SchemaVersion())
	node, ok := s.catalog.Dictionary[file]
	if !ok {
		return nil, nil, fmt.Errorf("schema file %q: %w", file, domain.ErrUnknownRef)
	}

	resolver := &schema.Resolver{
		Types: s.catalog.TypeLookup(),
		Refs:  s.catalog.RefLookup(),
		Enums: set,
	}
	result := resolver.Resolve(node, file)
	if len(result.Errors) > 0 {
		errs := make([]error, 0, len(result.Errors)+1)
		errs = append(errs, domain.ErrValidationFailed)
		for _, e := range result.Errors {
			errs = append(errs, e)
		}
		return nil, nil, errors.Join(errs...)
	}
	return result.JSON, result.BSON, nil
}

// DryRun resolves a (collection, version) pair and returns the defects
// instead of documents. The validation pass uses it.
func (s *Service) DryRun(name, versionStr string) []domain.ValidationError {
	cfg, ok := s.catalog.Collection(name)
	if !ok {
		return []domain.ValidationError{{
			Path: name, Kind: domain.KindInvalidCollection,
			Message: "collection is not configured",
		}}
	}
	v, err := version.Parse(versionStr)
	if err != nil {
		return []domain.ValidationError{{
			Path: cfg.FileName, Kind: domain.KindBadVersionString,
			Message: err.Error(),
		}}
	}

	file := catalog.SchemaFile(name, v.SchemaVersion())
	node, ok := s.catalog.Dictionary[file]
	if !ok {
		return []domain.ValidationError{{
			Path: file, Kind: domain.KindUnknownRef,
			Message: fmt.Sprintf("schema file for %s %s is missing", name, versionStr),
		}}
	}

	resolver := &schema.Resolver{
		Types: s.catalog.TypeLookup(),
		Refs:  s.catalog.RefLookup(),
	}
	if s.catalog.Enumerators != nil {
		if enums, err := s.catalog.Enumerators.Version(v.EnumeratorVersion()); err == nil {
			resolver.Enums = enums
		}
	}
	return resolver.Resolve(node, file).Errors
}

// JSONSchema renders the JSON-Schema document, tagged with its draft.
func (s *Service) JSONSchema(name, versionStr string) (bson.D, error) {
	jsonDoc, _, err := s.Resolve(name, versionStr)
	if err != nil {
		return nil, err
	}
	return append(bson.D{{Key: "$schema", Value: JSONSchemaDraft}}, jsonDoc...), nil
}

// BSONSchema renders the document suitable for $jsonSchema in a validator.
func (s *Service) BSONSchema(name, versionStr string) (bson.D, error) {
	_, bsonDoc, err := s.Resolve(name, versionStr)
	return bsonDoc, err
}

// OpenAPI renders a minimal component-schemas fragment naming the
// collection.
func (s *Service) OpenAPI(name, versionStr string) (bson.D, error) {
	jsonDoc, _, err := s.Resolve(name, versionStr)
	if err != nil {
		return nil, err
	}
	return bson.D{
		{Key: "components", Value: bson.D{
			{Key: "schemas", Value: bson.D{
				{Key: name, Value: jsonDoc},
			}},
		}},
	}, nil
}

// EncodeJSON serializes a rendered document, preserving key order.
func EncodeJSON(doc bson.D) ([]byte, error) {
	return bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
}
