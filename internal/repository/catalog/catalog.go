// Package catalog loads the declarative input file tree into the immutable
// in-memory configuration graph: collection configs, dictionary schemas,
// the type dictionary, enumerator sets, and test-data files.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
	"github.com/mongodrift/mongodrift/internal/domain/enumerator"
	"github.com/mongodrift/mongodrift/internal/domain/schema"
)

// Layout of the input tree, relative to the root.
const (
	collectionsDir = "collections"
	dictionaryDir  = "dictionary"
	typesDir       = "dictionary/types"
	dataDir        = "data"

	enumeratorsFile = "enumerators.json"
)

// Catalog is the loaded configuration graph. It is built once per run and
// read-only afterwards; load-time defects are collected in Errors for the
// validation pass rather than aborting the load.
type Catalog struct {
	Root        string
	Collections []*collection.Config
	Dictionary  map[string]*schema.Node    // keyed by file name, e.g. "users.1.0.0.yaml"
	Types       map[string]*schema.TypeDef // keyed by type name, e.g. "word"
	Enumerators *enumerator.Registry
	TestData    map[string]string // file name -> path joined onto Root
	Errors      []domain.ValidationError
}

// Load reads the whole input tree. It only fails outright when the root
// directory itself is unreadable; per-file problems are recorded in Errors.
func Load(root string) (*Catalog, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("input folder %s: %w", root, err)
	}
	c := &Catalog{
		Root:       root,
		Dictionary: make(map[string]*schema.Node),
		Types:      make(map[string]*schema.TypeDef),
		TestData:   make(map[string]string),
	}
	c.loadCollections()
	c.loadDictionary()
	c.loadTypes()
	c.loadData()
	return c, nil
}

func (c *Catalog) fail(path, kind, format string, args ...any) {
	c.Errors = append(c.Errors, domain.ValidationError{
		Path:    path,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// listFiles returns the sorted file names directly under dir. A missing
// directory yields no files and no error; the validation pass reports
// missing references instead.
func (c *Catalog) listFiles(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(c.Root, dir))
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) loadCollections() {
	for _, name := range c.listFiles(collectionsDir) {
		rel := filepath.Join(collectionsDir, name)
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			c.fail(rel, domain.KindUnsupportedFileKind, "collection configurations must be YAML")
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.Root, rel))
		if err != nil {
			c.fail(rel, domain.KindMalformedFile, "read: %v", err)
			continue
		}
		cfg, err := collection.Parse(name, data)
		if err != nil {
			c.fail(rel, domain.KindMalformedFile, "%v", err)
			continue
		}
		c.Collections = append(c.Collections, cfg)
	}
}

func (c *Catalog) loadDictionary() {
	for _, name := range c.listFiles(dictionaryDir) {
		rel := filepath.Join(dictionaryDir, name)
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			c.fail(rel, domain.KindUnsupportedFileKind, "dictionary schemas must be YAML")
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.Root, rel))
		if err != nil {
			c.fail(rel, domain.KindMalformedFile, "read: %v", err)
			continue
		}
		node, err := schema.ParseNode(data)
		if err != nil {
			c.fail(rel, domain.KindMalformedFile, "%v", err)
			continue
		}
		c.Dictionary[name] = node
	}
}

func (c *Catalog) loadTypes() {
	for _, name := range c.listFiles(typesDir) {
		rel := filepath.Join(typesDir, name)
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			c.fail(rel, domain.KindUnsupportedFileKind, "type definitions must be YAML")
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.Root, rel))
		if err != nil {
			c.fail(rel, domain.KindMalformedFile, "read: %v", err)
			continue
		}
		typeName := strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		def, err := schema.ParseTypeDef(typeName, data)
		if err != nil {
			c.fail(rel, domain.KindMalformedFile, "%v", err)
			continue
		}
		c.Types[typeName] = def
	}
}

func (c *Catalog) loadData() {
	for _, name := range c.listFiles(dataDir) {
		rel := filepath.Join(dataDir, name)
		if name == enumeratorsFile {
			data, err := os.ReadFile(filepath.Join(c.Root, rel))
			if err != nil {
				c.fail(rel, domain.KindMalformedFile, "read: %v", err)
				continue
			}
			reg, err := enumerator.Parse(data)
			if err != nil {
				c.fail(rel, domain.KindMalformedFile, "%v", err)
				continue
			}
			c.Enumerators = reg
			continue
		}
		if !strings.HasSuffix(name, ".json") {
			c.fail(rel, domain.KindUnsupportedFileKind, "test data must be JSON")
			continue
		}
		c.TestData[name] = filepath.Join(c.Root, rel)
	}
	if c.Enumerators == nil {
		c.fail(filepath.Join(dataDir, enumeratorsFile), domain.KindMalformedFile, "enumerators file is missing")
	}
}

// Collection looks up a loaded collection configuration by name.
func (c *Catalog) Collection(name string) (*collection.Config, bool) {
	for _, cfg := range c.Collections {
		if cfg.Name == name {
			return cfg, true
		}
	}
	return nil, false
}

// TypeLookup adapts the type dictionary for the schema resolver.
func (c *Catalog) TypeLookup() schema.TypeLookup {
	return func(name string) (*schema.TypeDef, bool) {
		def, ok := c.Types[name]
		return def, ok
	}
}

// RefLookup adapts the dictionary tree for the schema resolver.
func (c *Catalog) RefLookup() schema.RefLookup {
	return func(file string) (*schema.Node, bool) {
		node, ok := c.Dictionary[file]
		return node, ok
	}
}

// SchemaFile returns the dictionary file name for a collection at a
// three-part schema version, e.g. ("users", "1.0.0") -> "users.1.0.0.yaml".
func SchemaFile(name, schemaVersion string) string {
	return fmt.Sprintf("%s.%s.yaml", name, schemaVersion)
}
