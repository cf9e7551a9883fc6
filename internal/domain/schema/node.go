// Package schema models the custom schema dialect: a tree of typed nodes
// parsed from dictionary files, a dictionary of named custom types, and a
// resolver that expands the tree into concrete JSON-Schema and BSON-schema
// documents.
package schema

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// Kind discriminates the schema node variants.
type Kind string

const (
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindEnum      Kind = "enum"
	KindEnumArray Kind = "enum_array"
	KindOneOf     Kind = "one_of"
	KindRef       Kind = "$ref"    // reference to another dictionary file
	KindCustom    Kind = "custom"  // named type from the type dictionary
	KindInvalid   Kind = "invalid" // no type and no $ref; caught by validation
)

// Node is one schema-language node. Exactly one variant is populated,
// selected by Kind. Property and branch order is the authored order.
type Node struct {
	Kind        Kind
	Title       string
	Description string
	Required    bool

	Ref      string // KindRef
	TypeName string // KindCustom: name in the type dictionary

	Properties           []Property // KindObject
	AdditionalProperties bool       // KindObject, default false
	Items                *Node      // KindArray
	Enums                string     // KindEnum, KindEnumArray
	TypeProperty         string     // KindOneOf
	Branches             []Branch   // KindOneOf, keyed by discriminator value
}

// Property is one named member of an object node.
type Property struct {
	Name string
	Node *Node
}

// Branch is one discriminated alternative of a one_of node.
type Branch struct {
	Value string
	Node  *Node
}

// PropertyNames returns the object's property names in authored order.
func (n *Node) PropertyNames() []string {
	names := make([]string, len(n.Properties))
	for i, p := range n.Properties {
		names[i] = p.Name
	}
	return names
}

// HasProperty reports whether the object declares the named property.
func (n *Node) HasProperty(name string) bool {
	for _, p := range n.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ParseNode decodes a schema document into a Node tree. Structural errors
// (a scalar where a mapping is required) fail the parse; semantic defects
// (missing description, unknown type) are left for the validation pass.
func ParseNode(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("empty schema document")
		}
		root = root.Content[0]
	}
	return decodeNode(root)
}

func decodeNode(node *yaml.Node) (*Node, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema node must be a mapping, got %s", yamlKind(node))
	}

	n := &Node{Kind: KindInvalid}
	var typeName string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "$ref":
			n.Ref = value.Value
		case "title":
			n.Title = value.Value
		case "description":
			n.Description = value.Value
		case "type":
			typeName = value.Value
		case "required":
			if err := value.Decode(&n.Required); err != nil {
				return nil, fmt.Errorf("required must be a boolean")
			}
		case "additionalProperties":
			if err := value.Decode(&n.AdditionalProperties); err != nil {
				return nil, fmt.Errorf("additionalProperties must be a boolean")
			}
		case "properties":
			if value.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("properties must be a mapping")
			}
			n.Properties = []Property{}
			for j := 0; j+1 < len(value.Content); j += 2 {
				child, err := decodeNode(value.Content[j+1])
				if err != nil {
					return nil, fmt.Errorf("property %q: %w", value.Content[j].Value, err)
				}
				n.Properties = append(n.Properties, Property{Name: value.Content[j].Value, Node: child})
			}
		case "items":
			child, err := decodeNode(value)
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			n.Items = child
		case "enums":
			n.Enums = value.Value
		case "type_property":
			n.TypeProperty = value.Value
		case "schemas":
			if value.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("schemas must be a mapping")
			}
			for j := 0; j+1 < len(value.Content); j += 2 {
				child, err := decodeNode(value.Content[j+1])
				if err != nil {
					return nil, fmt.Errorf("schema branch %q: %w", value.Content[j].Value, err)
				}
				n.Branches = append(n.Branches, Branch{Value: value.Content[j].Value, Node: child})
			}
		}
	}

	n.Kind = kindOf(typeName, n.Ref)
	if n.Kind == KindCustom {
		n.TypeName = typeName
	}
	return n, nil
}

func kindOf(typeName, ref string) Kind {
	if ref != "" {
		return KindRef
	}
	switch typeName {
	case "object":
		return KindObject
	case "array":
		return KindArray
	case "enum":
		return KindEnum
	case "enum_array":
		return KindEnumArray
	case "one_of":
		return KindOneOf
	case "":
		return KindInvalid
	default:
		return KindCustom
	}
}

func yamlKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// DocumentFromYAML converts an arbitrary YAML node into an ordered BSON
// document tree: mappings become bson.D, sequences bson.A, scalars their
// native Go value. Used for opaque payloads such as primitive type bodies,
// index keys, and pipeline stages, where authored key order must survive.
func DocumentFromYAML(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DocumentFromYAML(node.Content[0])
	case yaml.MappingNode:
		doc := bson.D{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			value, err := DocumentFromYAML(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc = append(doc, bson.E{Key: node.Content[i].Value, Value: value})
		}
		return doc, nil
	case yaml.SequenceNode:
		arr := bson.A{}
		for _, item := range node.Content {
			value, err := DocumentFromYAML(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, value)
		}
		return arr, nil
	case yaml.ScalarNode:
		var value any
		if err := node.Decode(&value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported yaml node kind %d", node.Kind)
	}
}

// MappingFromYAML is DocumentFromYAML restricted to mappings.
func MappingFromYAML(node *yaml.Node) (bson.D, error) {
	value, err := DocumentFromYAML(node)
	if err != nil {
		return nil, err
	}
	doc, ok := value.(bson.D)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", value)
	}
	return doc, nil
}
