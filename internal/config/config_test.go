package config

import (
	"os"
	"path/filepath"
	"testing"
)

func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}

func TestParseDefaults(t *testing.T) {
	for _, key := range []string{"SHADOWBUILDER_STORE", "SHADOWBUILDER_RUNS_DIR", "SHADOWBUILDER_LOG_LEVEL"} {
		unsetForTest(t, key)
	}
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StoreKind != "" || cfg.RunsDir != "runs" || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseEnvironmentOverrides(t *testing.T) {
	t.Setenv("SHADOWBUILDER_STORE", "memory")
	t.Setenv("SHADOWBUILDER_CATALOG", "/data/cards.json")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.StoreKind != "memory" || cfg.CatalogPath != "/data/cards.json" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadReadsDotenvWithoutOverridingEnvironment(t *testing.T) {
	unsetForTest(t, "SHADOWBUILDER_RUNS_DIR")
	t.Setenv("SHADOWBUILDER_LOG_FORMAT", "json")

	path := filepath.Join(t.TempDir(), ".env")
	data := "SHADOWBUILDER_RUNS_DIR=/tmp/sb-runs\nSHADOWBUILDER_LOG_FORMAT=text\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RunsDir != "/tmp/sb-runs" {
		t.Fatalf("expected runs dir from dotenv, got %q", cfg.RunsDir)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected environment to win, got %q", cfg.LogFormat)
	}
}

func TestLoadMissingDotenvIsFine(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("load: %v", err)
	}
}
