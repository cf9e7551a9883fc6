package schema

import "testing"

func TestParseTypeDef_Forms(t *testing.T) {
	common, err := ParseTypeDef("word", []byte(`{description: A word, schema: {type: string}}`))
	if err != nil {
		t.Fatalf("common: %v", err)
	}
	if !common.IsPrimitive() || !common.IsCommon() {
		t.Error("expected a common primitive")
	}

	specific, err := ParseTypeDef("identifier", []byte(`
description: An identifier
json_schema: {type: string}
bson_schema: {bsonType: objectId}
`))
	if err != nil {
		t.Fatalf("specific: %v", err)
	}
	if !specific.IsPrimitive() || specific.IsCommon() {
		t.Error("expected a format-specific primitive")
	}

	complexType, err := ParseTypeDef("address", []byte(`
description: An address
type: object
properties:
  city: {description: The city, type: word}
`))
	if err != nil {
		t.Fatalf("complex: %v", err)
	}
	if complexType.IsPrimitive() || complexType.Node == nil {
		t.Error("expected a complex type with a node tree")
	}
}

func TestParseTypeDef_InvalidCombinations(t *testing.T) {
	cases := []string{
		// schema next to json_schema/bson_schema
		`{description: d, schema: {type: string}, json_schema: {type: string}, bson_schema: {bsonType: string}}`,
		// only one half of the format-specific pair
		`{description: d, json_schema: {type: string}}`,
		`{description: d, bson_schema: {bsonType: string}}`,
	}
	for _, doc := range cases {
		if _, err := ParseTypeDef("bad", []byte(doc)); err == nil {
			t.Errorf("expected an error for %s", doc)
		}
	}
}
