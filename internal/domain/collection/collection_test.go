package collection

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const sampleConfig = `
name: users
title: User collection
versions:
  - version: 1.0.0.1
    add_indexes:
      - name: nameIdx
        key:
          userName: 1
        options:
          unique: true
      - name: statusIdx
        key:
          status: 1
    test_data: users.1.0.0.1.json
  - version: 1.0.0.2
    drop_indexes:
      - statusIdx
    aggregations:
      - - $addFields:
            full_name: $userName
        - $unset: userName
        - $merge:
            into: users
            whenMatched: replace
`

func TestParse_Config(t *testing.T) {
	cfg, err := Parse("users.yaml", []byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Name != "users" || !cfg.ValidName() {
		t.Errorf("name = %q", cfg.Name)
	}
	if len(cfg.Versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(cfg.Versions))
	}

	v1 := cfg.Versions[0]
	if v1.Version != "1.0.0.1" {
		t.Errorf("version = %q", v1.Version)
	}
	if len(v1.AddIndexes) != 2 {
		t.Fatalf("expected 2 indexes, got %d", len(v1.AddIndexes))
	}
	idx := v1.AddIndexes[0]
	if idx.Name != "nameIdx" {
		t.Errorf("index name = %q", idx.Name)
	}
	if len(idx.Key) != 1 || idx.Key[0].Key != "userName" {
		t.Errorf("index key = %v", idx.Key)
	}
	if len(idx.Options) != 1 || idx.Options[0].Key != "unique" || idx.Options[0].Value != true {
		t.Errorf("index options = %v", idx.Options)
	}
	if v1.TestData != "users.1.0.0.1.json" {
		t.Errorf("test_data = %q", v1.TestData)
	}

	v2 := cfg.Versions[1]
	if len(v2.DropIndexes) != 1 || v2.DropIndexes[0] != "statusIdx" {
		t.Errorf("drop_indexes = %v", v2.DropIndexes)
	}
	if len(v2.Aggregations) != 1 {
		t.Fatalf("expected 1 pipeline, got %d", len(v2.Aggregations))
	}
	if len(v2.Aggregations[0]) != 3 {
		t.Errorf("expected 3 stages, got %d", len(v2.Aggregations[0]))
	}
}

func TestPipeline_HasTerminalWrite(t *testing.T) {
	cfg, err := Parse("users.yaml", []byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cfg.Versions[1].Aggregations[0].HasTerminalWrite() {
		t.Error("pipeline ending in $merge should report a terminal write")
	}

	noWrite := Pipeline{bson.D{{Key: "$addFields", Value: bson.D{{Key: "x", Value: 1}}}}}
	if noWrite.HasTerminalWrite() {
		t.Error("pipeline without $merge/$out should not report a terminal write")
	}
	if (Pipeline{}).HasTerminalWrite() {
		t.Error("empty pipeline should not report a terminal write")
	}
}

func TestValidName(t *testing.T) {
	cases := map[string]bool{
		"users":        true,
		"user_events2": true,
		"a":            false, // too short
		"bad.name":     false,
		"":             false,
	}
	for name, want := range cases {
		cfg := &Config{Name: name}
		if got := cfg.ValidName(); got != want {
			t.Errorf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestVersionSpecLookup(t *testing.T) {
	cfg, _ := Parse("users.yaml", []byte(sampleConfig))
	if _, ok := cfg.VersionSpec("1.0.0.2"); !ok {
		t.Error("expected to find 1.0.0.2")
	}
	if _, ok := cfg.VersionSpec("9.9.9.9"); ok {
		t.Error("did not expect to find 9.9.9.9")
	}
}

func TestDoc_RoundTripShape(t *testing.T) {
	cfg, _ := Parse("users.yaml", []byte(sampleConfig))
	doc := cfg.Doc()
	if doc[0].Key != "name" || doc[0].Value != "users" {
		t.Errorf("doc[0] = %v", doc[0])
	}
	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		t.Fatalf("MarshalExtJSON: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty rendering")
	}
}
