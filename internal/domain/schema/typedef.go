package schema

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// TypeDef is one named entry of the type dictionary. A type takes one of
// three forms:
//
//   - common primitive: a single `schema` body shared by both output forms,
//     with `type` renamed to `bsonType` (and integer/number widened) on the
//     BSON side;
//   - format-specific primitive: separate `json_schema` and `bson_schema`
//     bodies used verbatim;
//   - complex: a schema-language node that resolves recursively.
type TypeDef struct {
	Name        string
	Description string

	Schema     bson.D // common primitive form
	JSONSchema bson.D // format-specific form
	BSONSchema bson.D

	Node *Node // complex form
}

// IsPrimitive reports whether the type is a primitive (either form).
func (t *TypeDef) IsPrimitive() bool {
	return t.Schema != nil || t.JSONSchema != nil || t.BSONSchema != nil
}

// IsCommon reports whether the type is a common primitive (single body).
func (t *TypeDef) IsCommon() bool { return t.Schema != nil }

// ParseTypeDef decodes one type dictionary file.
func ParseTypeDef(name string, data []byte) (*TypeDef, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, fmt.Errorf("type %q: empty document", name)
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("type %q: document must be a mapping", name)
	}

	def := &TypeDef{Name: name}
	var hasSchema, hasJSON, hasBSON bool
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		switch key.Value {
		case "description":
			def.Description = value.Value
		case "schema":
			doc, err := MappingFromYAML(value)
			if err != nil {
				return nil, fmt.Errorf("type %q: schema: %w", name, err)
			}
			def.Schema = doc
			hasSchema = true
		case "json_schema":
			doc, err := MappingFromYAML(value)
			if err != nil {
				return nil, fmt.Errorf("type %q: json_schema: %w", name, err)
			}
			def.JSONSchema = doc
			hasJSON = true
		case "bson_schema":
			doc, err := MappingFromYAML(value)
			if err != nil {
				return nil, fmt.Errorf("type %q: bson_schema: %w", name, err)
			}
			def.BSONSchema = doc
			hasBSON = true
		}
	}

	if hasSchema && (hasJSON || hasBSON) {
		return nil, fmt.Errorf("type %q: cannot mix schema with json_schema/bson_schema", name)
	}
	if (hasJSON || hasBSON) && !(hasJSON && hasBSON) {
		return nil, fmt.Errorf("type %q: json_schema and bson_schema must both be present", name)
	}
	if def.IsPrimitive() {
		return def, nil
	}

	// Complex type: the whole document is a schema-language node.
	node, err := decodeNode(root)
	if err != nil {
		return nil, fmt.Errorf("type %q: %w", name, err)
	}
	def.Node = node
	return def, nil
}
