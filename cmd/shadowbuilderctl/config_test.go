package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRunConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromConfigReadsNestedSections(t *testing.T) {
	path := writeRunConfig(t, `{
		"run_id": "cfg-run",
		"resume_from": "older-run",
		"catalog": "cards.json",
		"craft": "Runecraft",
		"format": "rotation",
		"tags": ["spellboost", "earth_rite"],
		"target_size": 30,
		"max_copies": 2,
		"ideal_curve": [2, 10, 6, 5, 3, 2, 1, 1],
		"weights": {"curve": 0.6, "tags": 0.2, "consistency": 0.2},
		"consistency_offset": 12,
		"population": 256,
		"max_generations": 40,
		"target_fitness": 0.9,
		"seed": 99,
		"selection": "tournament",
		"temperature": {"start": 50, "min": 5, "annealing": 0.5},
		"cull": {"base": 0.1, "annealing": 0.01, "cap": 0.4}
	}`)

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if req.RunID != "cfg-run" || req.ResumeFrom != "older-run" || req.CatalogPath != "cards.json" {
		t.Fatalf("unexpected identifiers: %+v", req)
	}
	if req.Craft != "Runecraft" || req.Format != "rotation" || req.Selection != "tournament" {
		t.Fatalf("unexpected strings: %+v", req)
	}
	if strings.Join(req.Tags, ",") != "spellboost,earth_rite" {
		t.Fatalf("unexpected tags: %v", req.Tags)
	}
	if req.TargetSize != 30 || req.MaxCopies != 2 || req.ConsistencyOffset != 12 {
		t.Fatalf("unexpected limits: %+v", req)
	}
	if len(req.IdealCurve) != 8 || req.IdealCurve[1] != 10 {
		t.Fatalf("unexpected curve: %v", req.IdealCurve)
	}
	if req.Weights.Curve != 0.6 || req.Weights.Tags != 0.2 || req.Weights.Consistency != 0.2 {
		t.Fatalf("unexpected weights: %+v", req.Weights)
	}
	if req.Population != 256 || req.MaxGenerations != 40 || req.TargetFitness != 0.9 || req.Seed != 99 {
		t.Fatalf("unexpected run settings: %+v", req)
	}
	if req.TemperatureStart != 50 || req.TemperatureMin != 5 || req.TemperatureAnnealing != 0.5 {
		t.Fatalf("unexpected temperature: %+v", req)
	}
	if req.CullBase != 0.1 || req.CullAnnealing != 0.01 || req.CullCap != 0.4 {
		t.Fatalf("unexpected cull: %+v", req)
	}
}

func TestLoadRunRequestFromConfigLeavesMissingKeysZero(t *testing.T) {
	req, err := loadRunRequestFromConfig(writeRunConfig(t, `{"craft": "Bloodcraft"}`))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if req.Craft != "Bloodcraft" || req.Population != 0 || req.Tags != nil || req.IdealCurve != nil {
		t.Fatalf("expected zero values for missing keys, got %+v", req)
	}
}

func TestLoadRunRequestFromConfigRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"craft": `,
		"not an object":    `[1, 2]`,
		"string number":    `{"population": "many"}`,
		"tags not array":   `{"tags": "fairy"}`,
		"curve not array":  `{"ideal_curve": 4}`,
		"curve bad entry":  `{"ideal_curve": [4, "x"]}`,
		"nested bad value": `{"temperature": {"start": true}}`,
	}
	for name, body := range cases {
		if _, err := loadRunRequestFromConfig(writeRunConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := loadRunRequestFromConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected missing file error")
	}
}
