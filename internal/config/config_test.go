package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != BackendPebble {
		t.Fatalf("default backend: %q", cfg.Backend)
	}
	if cfg.Capacity != 300 {
		t.Fatalf("default capacity: %d", cfg.Capacity)
	}
	if len(cfg.Groups) != 1 || cfg.Groups[0] != "default" {
		t.Fatalf("default groups: %v", cfg.Groups)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "spool.json")
	data := []byte(`{"backend":"sqlite","capacity":1000,"groups":["analytics","crashes"],"flush":{"batchSize":10}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendSQLite || cfg.Capacity != 1000 {
		t.Fatalf("unexpected backend/capacity: %q %d", cfg.Backend, cfg.Capacity)
	}
	if len(cfg.Groups) != 2 || cfg.Groups[1] != "crashes" {
		t.Fatalf("groups: %v", cfg.Groups)
	}
	if cfg.Flush.BatchSize != 10 || cfg.Flush.IntervalMs != 3000 {
		t.Fatalf("flush should merge with defaults: %+v", cfg.Flush)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "spool.yaml")
	data := []byte(`
backend: memory
codec: cbor
compression: zstd
filter: 'type != "debug"'
ingestion:
  url: https://in.example.com
  appSecret: s3cret
log:
  level: debug
`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory || cfg.Codec != "cbor" || cfg.Compression != "zstd" {
		t.Fatalf("unexpected storage settings: %+v", cfg)
	}
	if cfg.Ingestion.AppSecret != "s3cret" || cfg.Ingestion.TimeoutMs != 30000 {
		t.Fatalf("ingestion: %+v", cfg.Ingestion)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("log: %+v", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.yml")
	if err := os.WriteFile(file, []byte("backend: [unterminated"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	t.Setenv("SPOOL_BACKEND", "sqlite")
	t.Setenv("SPOOL_CAPACITY", "42")
	t.Setenv("SPOOL_GROUPS", "a, b,,c")
	t.Setenv("SPOOL_FLUSH_RATE_PER_SECOND", "2.5")
	t.Setenv("SPOOL_FLUSH_BATCH_SIZE", "not-a-number")
	t.Setenv("SPOOL_INGESTION_AUTH_TOKEN", "tok")
	FromEnv(&cfg)
	if cfg.Backend != BackendSQLite {
		t.Fatalf("env override backend")
	}
	if cfg.Capacity != 42 {
		t.Fatalf("env override capacity")
	}
	if strings.Join(cfg.Groups, "|") != "a|b|c" {
		t.Fatalf("env override groups: %v", cfg.Groups)
	}
	if cfg.Flush.RatePerSecond != 2.5 {
		t.Fatalf("env override rate")
	}
	if cfg.Flush.BatchSize != 50 {
		t.Fatalf("invalid number must be ignored, got %d", cfg.Flush.BatchSize)
	}
	if cfg.Ingestion.AuthToken != "tok" {
		t.Fatalf("env override auth token: %q", cfg.Ingestion.AuthToken)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend = "cassandra"
	cfg.Codec = "xml"
	cfg.Groups = []string{"ok", " "}
	cfg.Ingestion.URL = "https://in.example.com"
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"backend", "codec", "empty names", "appSecret"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}

	cfg = Default()
	cfg.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("pebble without dataDir must fail")
	}
	cfg.Backend = BackendMemory
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory backend needs no dataDir: %v", err)
	}
}
