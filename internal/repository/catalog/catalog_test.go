package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mongodrift/mongodrift/internal/domain"
)

// writeTree materializes an input tree under a temp dir.
func writeTree(t *testing.T, files map[string]string) string {
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
	return root
}

const enumeratorsDoc = `[
  {"name": "Enumerations", "status": "Active", "version": 1,
   "enumerators": {"status": {"draft": "Draft", "active": "Active"}}}
]`

func validTree() map[string]string {
	return map[string]string{
		"collections/users.yaml": `
name: users
versions:
  - version: 1.0.0.1
`,
		"dictionary/users.1.0.0.yaml": `
description: A user
type: object
properties:
  name:
    description: The name
    type: word
    required: true
`,
		"dictionary/types/word.yaml": `
description: A single word
schema:
  type: string
  maxLength: 32
`,
		"data/enumerators.json":   enumeratorsDoc,
		"data/users.1.0.0.1.json": `[{"name": "alice"}]`,
	}
}

func TestLoad_ValidTree(t *testing.T) {
	root := writeTree(t, validTree())
	c, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Errors) != 0 {
		t.Fatalf("unexpected load errors: %v", c.Errors)
	}
	if len(c.Collections) != 1 || c.Collections[0].Name != "users" {
		t.Errorf("collections = %v", c.Collections)
	}
	if _, ok := c.Dictionary["users.1.0.0.yaml"]; !ok {
		t.Error("dictionary file not loaded")
	}
	if _, ok := c.Types["word"]; !ok {
		t.Error("type word not loaded")
	}
	if c.Enumerators == nil {
		t.Fatal("enumerators not loaded")
	}
	if _, ok := c.TestData["users.1.0.0.1.json"]; !ok {
		t.Error("test data not indexed")
	}
	if _, ok := c.Collection("users"); !ok {
		t.Error("Collection lookup failed")
	}
}

func TestLoad_MalformedFiles(t *testing.T) {
	files := validTree()
	files["collections/broken.yaml"] = "{ not: [ valid"
	files["dictionary/bad.1.0.0.yaml"] = "- a\n- scalar list is not a schema"
	root := writeTree(t, files)

	c, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	count := 0
	for _, e := range c.Errors {
		if e.Kind == domain.KindMalformedFile {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected 2 MalformedFile errors, got %d: %v", count, c.Errors)
	}
	// The healthy files still load.
	if _, ok := c.Collection("users"); !ok {
		t.Error("valid collection should still load")
	}
}

func TestLoad_UnsupportedFileKind(t *testing.T) {
	files := validTree()
	files["dictionary/readme.txt"] = "not a schema"
	root := writeTree(t, files)

	c, _ := Load(root)
	found := false
	for _, e := range c.Errors {
		if e.Kind == domain.KindUnsupportedFileKind {
			found = true
		}
	}
	if !found {
		t.Errorf("expected UnsupportedFileKind, got %v", c.Errors)
	}
}

func TestLoad_MissingEnumerators(t *testing.T) {
	files := validTree()
	delete(files, "data/enumerators.json")
	root := writeTree(t, files)

	c, _ := Load(root)
	if c.Enumerators != nil {
		t.Error("expected nil registry")
	}
	if len(c.Errors) == 0 {
		t.Error("expected a load error for the missing enumerators file")
	}
}

func TestLoad_MissingRoot(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected an error for a missing input root")
	}
}

func TestSchemaFile(t *testing.T) {
	if got := SchemaFile("users", "1.0.0"); got != "users.1.0.0.yaml" {
		t.Errorf("SchemaFile = %q", got)
	}
}
