//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/efinauri/shadowbuilder/internal/stats"
)

func TestRunCommandSQLiteCanResumeFromSnapshot(t *testing.T) {
	catalogPath := useTempWorkdir(t)
	captureStdout(t)

	dbPath := filepath.Join(".", "shadowbuilder.db")
	sqliteArgs := func(extra ...string) []string {
		return smallRunArgs(catalogPath, append([]string{"--store", "sqlite", "--db-path", dbPath, "--quiet"}, extra...)...)
	}
	if err := run(context.Background(), sqliteArgs("--run-id", "first")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}
	if err := run(context.Background(), sqliteArgs("--run-id", "second", "--resume-from", "first", "--gens", "1")); err != nil {
		t.Fatalf("resumed run: %v", err)
	}

	entries, err := stats.ListRunIndex("runs")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "second" {
		t.Fatalf("expected resumed run first in index, got %+v", entries)
	}
	if entries[0].Generations != 3 {
		t.Fatalf("expected merged generations 3, got %d", entries[0].Generations)
	}
	stored, ok, err := stats.ReadRunConfig("runs", "second")
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%t err=%v", ok, err)
	}
	if stored.ResumeFrom != "first" {
		t.Fatalf("expected resume_from=first, got %q", stored.ResumeFrom)
	}
}
