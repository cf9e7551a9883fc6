package render

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/repository/catalog"
)

func loadCatalog(t *testing.T, files map[string]string) *catalog.Catalog {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	cat, err := catalog.Load(root)
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return cat
}

func renderTree() map[string]string {
	return map[string]string{
		"collections/media.yaml": `
name: media
versions:
  - version: 1.0.0.1
`,
		"dictionary/media.1.0.0.yaml": `
title: Media
description: A media item
type: object
properties:
  name:
    description: The title
    type: word
    required: true
  card_type:
    description: The media kind
    type: enum
    enums: card_type
`,
		"dictionary/types/word.yaml": `
description: A single word
schema:
  type: string
  maxLength: 40
`,
		"data/enumerators.json": `[
  {"name": "Enumerations", "status": "Active", "version": 1,
   "enumerators": {"card_type": {"book": "A book", "movie": "A movie"}}}
]`,
	}
}

func TestJSONSchema_DraftTagFirst(t *testing.T) {
	svc := New(loadCatalog(t, renderTree()))

	doc, err := svc.JSONSchema("media", "1.0.0.1")
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	if doc[0].Key != "$schema" || doc[0].Value != JSONSchemaDraft {
		t.Errorf("doc[0] = %v", doc[0])
	}
}

func TestBSONSchema_NoDraftTag(t *testing.T) {
	svc := New(loadCatalog(t, renderTree()))

	doc, err := svc.BSONSchema("media", "1.0.0.1")
	if err != nil {
		t.Fatalf("BSONSchema: %v", err)
	}
	for _, e := range doc {
		if e.Key == "$schema" {
			t.Error("BSON schema must not carry the JSON draft tag")
		}
	}
}

func TestOpenAPI_ComponentsShape(t *testing.T) {
	svc := New(loadCatalog(t, renderTree()))

	doc, err := svc.OpenAPI("media", "1.0.0.1")
	if err != nil {
		t.Fatalf("OpenAPI: %v", err)
	}
	components, ok := doc[0].Value.(bson.D)
	if doc[0].Key != "components" || !ok {
		t.Fatalf("doc = %v", doc)
	}
	schemas, ok := components[0].Value.(bson.D)
	if components[0].Key != "schemas" || !ok {
		t.Fatalf("components = %v", components)
	}
	if schemas[0].Key != "media" {
		t.Errorf("schemas[0].Key = %q", schemas[0].Key)
	}
}

func TestRender_Deterministic(t *testing.T) {
	svc := New(loadCatalog(t, renderTree()))

	first, err := svc.JSONSchema("media", "1.0.0.1")
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}
	second, _ := svc.JSONSchema("media", "1.0.0.1")

	a, err := EncodeJSON(first)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	b, _ := EncodeJSON(second)
	if string(a) != string(b) {
		t.Error("rendering is not byte-for-byte deterministic")
	}
}

func TestResolve_UnknownTargets(t *testing.T) {
	svc := New(loadCatalog(t, renderTree()))

	if _, _, err := svc.Resolve("nope", "1.0.0.1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown collection: expected ErrNotFound, got %v", err)
	}
	if _, _, err := svc.Resolve("media", "9.9.9.9"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown version: expected ErrNotFound, got %v", err)
	}
}

func TestResolve_DefectsFoldIntoError(t *testing.T) {
	files := renderTree()
	files["dictionary/media.1.0.0.yaml"] = `
description: Broken
type: object
properties:
  bad:
    description: references a missing type
    type: nonexistent
`
	svc := New(loadCatalog(t, files))

	_, _, err := svc.Resolve("media", "1.0.0.1")
	if !errors.Is(err, domain.ErrValidationFailed) {
		t.Errorf("expected ErrValidationFailed, got %v", err)
	}
}

func TestDryRun_ReportsInsteadOfFailing(t *testing.T) {
	files := renderTree()
	files["dictionary/media.1.0.0.yaml"] = `
description: Broken
type: object
properties:
  bad:
    $ref: nonexistent.yaml
`
	svc := New(loadCatalog(t, files))

	errs := svc.DryRun("media", "1.0.0.1")
	if len(errs) != 1 || errs[0].Kind != domain.KindUnknownRef {
		t.Errorf("DryRun = %v", errs)
	}
}
