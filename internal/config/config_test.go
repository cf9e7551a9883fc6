package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, "config", "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

const minimalConfig = `
http:
  port: 8580
mongo:
  uri: mongodb://localhost:27017
  database: drift
`

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, minimalConfig)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mongo.VersionCollection != "CollectionVersions" {
		t.Errorf("version collection default = %q", cfg.Mongo.VersionCollection)
	}
	if cfg.Processing.OperationTimeout() != 30*time.Second {
		t.Errorf("operation timeout = %v", cfg.Processing.OperationTimeout())
	}
	if cfg.Processing.PipelineTimeout() != 10*time.Minute {
		t.Errorf("pipeline timeout = %v", cfg.Processing.PipelineTimeout())
	}
	if cfg.Processing.TransitionTimeout() != time.Hour {
		t.Errorf("transition timeout = %v", cfg.Processing.TransitionTimeout())
	}
	if cfg.Input.Folder != "input" {
		t.Errorf("input folder default = %q", cfg.Input.Folder)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_MONGO_URI", "mongodb://db:27017")
	writeConfig(t, `
http:
  port: 8580
mongo:
  uri: ${TEST_MONGO_URI}
  database: ${TEST_MONGO_DB:-drift}
`)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mongo.URI != "mongodb://db:27017" {
		t.Errorf("uri = %q", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "drift" {
		t.Errorf("database default = %q", cfg.Mongo.Database)
	}
}

func TestLoad_BatchOverrides(t *testing.T) {
	t.Setenv("AUTO_PROCESS", "true")
	t.Setenv("EXIT_AFTER_PROCESSING", "true")
	t.Setenv("LOAD_TEST_DATA", "false")
	writeConfig(t, minimalConfig+`
processing:
  load_test_data: true
`)

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Processing.AutoProcess || !cfg.Processing.ExitAfterProcessing {
		t.Error("batch overrides not applied")
	}
	if cfg.Processing.LoadTestData {
		t.Error("LOAD_TEST_DATA=false must win over the file")
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing uri": `{http: {port: 8580}, mongo: {database: d}}`,
		"bad port":    `{http: {port: 99999}, mongo: {uri: u, database: d}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			writeConfig(t, content)
			if _, err := Load("test"); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
