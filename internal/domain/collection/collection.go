// Package collection models the declarative per-collection configuration:
// an ordered list of versioned specs carrying index changes, migration
// pipelines, and optional test data.
package collection

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"

	"github.com/mongodrift/mongodrift/internal/domain/schema"
)

var nameRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{2,64}$`)

// Config is one collection configuration file.
type Config struct {
	Name     string
	Title    string
	FileName string
	Versions []VersionSpec
}

// VersionSpec is one declared version of a collection. Version keeps the
// authored string form; parsing and ordering are the validation pass's job.
type VersionSpec struct {
	Version      string
	AddIndexes   []Index
	DropIndexes  []string
	Aggregations []Pipeline
	TestData     string
}

// Index is a MongoDB index specification. Key order is significant and is
// preserved from the authored document. Options is passed to the database
// opaquely.
type Index struct {
	Name    string
	Key     bson.D
	Options bson.D
}

// Pipeline is one aggregation pipeline: an ordered list of stages passed
// opaquely to the database.
type Pipeline []bson.D

// terminal stages that write pipeline output back to a collection.
var terminalStages = map[string]bool{"$merge": true, "$out": true}

// HasTerminalWrite reports whether the pipeline's final stage is a terminal
// write stage ($merge or $out).
func (p Pipeline) HasTerminalWrite() bool {
	if len(p) == 0 {
		return false
	}
	last := p[len(p)-1]
	for _, e := range last {
		if terminalStages[e.Key] {
			return true
		}
	}
	return false
}

// Parse decodes one collection configuration file.
func Parse(fileName string, data []byte) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("empty collection configuration")
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("collection configuration must be a mapping")
	}

	cfg := &Config{FileName: fileName}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "name":
			cfg.Name = value.Value
		case "title":
			cfg.Title = value.Value
		case "versions":
			if value.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("versions must be a list")
			}
			for _, item := range value.Content {
				spec, err := parseVersionSpec(item)
				if err != nil {
					return nil, err
				}
				cfg.Versions = append(cfg.Versions, spec)
			}
		}
	}
	return cfg, nil
}

func parseVersionSpec(node *yaml.Node) (VersionSpec, error) {
	if node.Kind != yaml.MappingNode {
		return VersionSpec{}, fmt.Errorf("version entry must be a mapping")
	}
	spec := VersionSpec{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "version":
			spec.Version = value.Value
		case "add_indexes":
			if value.Kind != yaml.SequenceNode {
				return VersionSpec{}, fmt.Errorf("add_indexes must be a list")
			}
			for _, item := range value.Content {
				idx, err := parseIndex(item)
				if err != nil {
					return VersionSpec{}, fmt.Errorf("version %s: %w", spec.Version, err)
				}
				spec.AddIndexes = append(spec.AddIndexes, idx)
			}
		case "drop_indexes":
			if err := value.Decode(&spec.DropIndexes); err != nil {
				return VersionSpec{}, fmt.Errorf("version %s: drop_indexes must be a list of names", spec.Version)
			}
		case "aggregations":
			if value.Kind != yaml.SequenceNode {
				return VersionSpec{}, fmt.Errorf("version %s: aggregations must be a list of pipelines", spec.Version)
			}
			for _, item := range value.Content {
				pipeline, err := parsePipeline(item)
				if err != nil {
					return VersionSpec{}, fmt.Errorf("version %s: %w", spec.Version, err)
				}
				spec.Aggregations = append(spec.Aggregations, pipeline)
			}
		case "test_data":
			spec.TestData = value.Value
		}
	}
	return spec, nil
}

func parseIndex(node *yaml.Node) (Index, error) {
	if node.Kind != yaml.MappingNode {
		return Index{}, fmt.Errorf("index entry must be a mapping")
	}
	idx := Index{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "name":
			idx.Name = value.Value
		case "key":
			doc, err := schema.MappingFromYAML(value)
			if err != nil {
				return Index{}, fmt.Errorf("index key: %w", err)
			}
			idx.Key = doc
		case "options":
			doc, err := schema.MappingFromYAML(value)
			if err != nil {
				return Index{}, fmt.Errorf("index options: %w", err)
			}
			idx.Options = doc
		}
	}
	return idx, nil
}

func parsePipeline(node *yaml.Node) (Pipeline, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("pipeline must be a list of stages")
	}
	pipeline := Pipeline{}
	for _, stage := range node.Content {
		doc, err := schema.MappingFromYAML(stage)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage: %w", err)
		}
		pipeline = append(pipeline, doc)
	}
	return pipeline, nil
}

// ValidName reports whether the collection name is a valid slug.
func (c *Config) ValidName() bool {
	return nameRegex.MatchString(c.Name)
}

// VersionSpec looks up a declared version by its authored string.
func (c *Config) VersionSpec(version string) (VersionSpec, bool) {
	for _, v := range c.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return VersionSpec{}, false
}

// Doc renders the configuration as an ordered document for the HTTP surface.
func (c *Config) Doc() bson.D {
	versions := bson.A{}
	for _, v := range c.Versions {
		versions = append(versions, v.doc())
	}
	doc := bson.D{{Key: "name", Value: c.Name}}
	if c.Title != "" {
		doc = append(doc, bson.E{Key: "title", Value: c.Title})
	}
	return append(doc, bson.E{Key: "versions", Value: versions})
}

func (v VersionSpec) doc() bson.D {
	doc := bson.D{{Key: "version", Value: v.Version}}
	if len(v.AddIndexes) > 0 {
		indexes := bson.A{}
		for _, idx := range v.AddIndexes {
			entry := bson.D{
				{Key: "name", Value: idx.Name},
				{Key: "key", Value: idx.Key},
			}
			if len(idx.Options) > 0 {
				entry = append(entry, bson.E{Key: "options", Value: idx.Options})
			}
			indexes = append(indexes, entry)
		}
		doc = append(doc, bson.E{Key: "add_indexes", Value: indexes})
	}
	if len(v.DropIndexes) > 0 {
		names := bson.A{}
		for _, name := range v.DropIndexes {
			names = append(names, name)
		}
		doc = append(doc, bson.E{Key: "drop_indexes", Value: names})
	}
	if len(v.Aggregations) > 0 {
		pipelines := bson.A{}
		for _, p := range v.Aggregations {
			stages := bson.A{}
			for _, stage := range p {
				stages = append(stages, stage)
			}
			pipelines = append(pipelines, stages)
		}
		doc = append(doc, bson.E{Key: "aggregations", Value: pipelines})
	}
	if v.TestData != "" {
		doc = append(doc, bson.E{Key: "test_data", Value: v.TestData})
	}
	return doc
}
