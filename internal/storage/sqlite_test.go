//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/efinauri/shadowbuilder/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "shadowbuilder.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	for _, run := range []model.RunRecord{
		{VersionedRecord: NewVersion(), ID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z", Craft: "Forestcraft"},
		{VersionedRecord: NewVersion(), ID: "b", CreatedAtUTC: "2026-02-01T00:00:00Z", Craft: "Runecraft"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "b" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	deck := model.DeckRecord{VersionedRecord: NewVersion(), RunID: "b", Fitness: 0.77, Cards: []model.DeckCard{{Index: 1, ID: 5, Count: 2}}}
	if err := store.SaveBestDeck(ctx, deck); err != nil {
		t.Fatalf("save deck: %v", err)
	}
	loaded, ok, err := store.GetBestDeck(ctx, "b")
	if err != nil || !ok {
		t.Fatalf("get deck: ok=%t err=%v", ok, err)
	}
	if loaded.Fitness != 0.77 || len(loaded.Cards) != 1 {
		t.Fatalf("unexpected deck: %+v", loaded)
	}

	snapshot := model.PopulationSnapshot{VersionedRecord: NewVersion(), RunID: "b", Generation: 3,
		Decks: []model.ScoredDeck{{Fitness: 0.3, Entries: []model.DeckEntry{{Index: 0, Count: 1}}}}}
	if err := store.SavePopulation(ctx, snapshot); err != nil {
		t.Fatalf("save population: %v", err)
	}
	pop, ok, err := store.GetPopulation(ctx, "b")
	if err != nil || !ok || pop.Generation != 3 {
		t.Fatalf("get population: ok=%t err=%v pop=%+v", ok, err, pop)
	}

	if err := store.SaveFitnessHistory(ctx, "b", []float64{0.1, 0.4}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	if err := store.SaveFitnessHistory(ctx, "b", []float64{0.1, 0.4, 0.5}); err != nil {
		t.Fatalf("overwrite history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "b")
	if err != nil || !ok || len(history) != 3 {
		t.Fatalf("get history: ok=%t err=%v history=%v", ok, err, history)
	}

	diags := []model.GenerationDiagnostics{{Generation: 1, BestFitness: 0.4, State: "continuing"}}
	if err := store.SaveGenerationDiagnostics(ctx, "b", diags); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiags, ok, err := store.GetGenerationDiagnostics(ctx, "b")
	if err != nil || !ok || len(loadedDiags) != 1 || loadedDiags[0].State != "continuing" {
		t.Fatalf("get diagnostics: ok=%t err=%v diags=%+v", ok, err, loadedDiags)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected missing path error")
	}
}

func TestDefaultStoreKindWithTag(t *testing.T) {
	if DefaultStoreKind() != "sqlite" {
		t.Fatalf("unexpected default kind: %s", DefaultStoreKind())
	}
}
