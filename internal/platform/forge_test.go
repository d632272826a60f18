package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/efinauri/shadowbuilder/internal/catalog"
	"github.com/efinauri/shadowbuilder/internal/deck"
	"github.com/efinauri/shadowbuilder/internal/evo"
	"github.com/efinauri/shadowbuilder/internal/fitness"
	"github.com/efinauri/shadowbuilder/internal/model"
	"github.com/efinauri/shadowbuilder/internal/stats"
	"github.com/efinauri/shadowbuilder/internal/storage"
)

func testCatalog() *catalog.Catalog {
	cards := make([]catalog.Card, 0, 40)
	id := 100
	for cost := 1; cost <= 8; cost++ {
		for i := 0; i < 5; i++ {
			card := catalog.Card{ID: id, Name: "card", Craft: "Forestcraft", Cost: cost, Rotation: true}
			if i == 0 {
				card.Tags = []string{"fairy"}
			}
			cards = append(cards, card)
			id++
		}
	}
	catalog.DeepSort(cards)
	return catalog.New(cards)
}

func testEvolutionConfig(cat *catalog.Catalog) EvolutionConfig {
	return EvolutionConfig{
		Catalog: cat,
		Craft:   "Forestcraft",
		Format:  catalog.FormatRotation,
		Limits:  deck.Limits{TargetSize: 40, MaxCopies: 3},
		Fitness: fitness.Config{
			IdealCurve: fitness.DefaultIdealCurve,
			Weights:    fitness.DefaultWeights(),
			Tags:       []string{"fairy"},
		},
		PopulationSize: 16,
		MaxGenerations: 3,
		TargetFitness:  2,
		Seed:           11,
		Temperature:    deck.Temperature{Start: cat.Size(), Min: 6, AnnealingRate: 1},
		Cull:           evo.DefaultCullParams(),
	}
}

func newTestForge(t *testing.T, runsDir string) (*Forge, storage.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	forge := NewForge(Config{
		Store:   store,
		RunsDir: runsDir,
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err := forge.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return forge, store
}

func TestRunEvolutionPersistsResults(t *testing.T) {
	ctx := context.Background()
	runsDir := t.TempDir()
	forge, store := newTestForge(t, runsDir)

	cfg := testEvolutionConfig(testCatalog())
	cfg.RunID = "run-a"
	observed := 0
	cfg.Observer = func(model.GenerationDiagnostics) { observed++ }

	result, err := forge.RunEvolution(ctx, cfg)
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if result.Generations != 3 || observed != 3 || result.State != "continuing" {
		t.Fatalf("unexpected result: generations=%d observed=%d state=%s", result.Generations, observed, result.State)
	}
	if len(result.BestDeck.Cards) == 0 || result.BestDeck.Fitness <= 0 {
		t.Fatalf("expected a scored best deck, got %+v", result.BestDeck)
	}
	copies := 0
	for _, card := range result.BestDeck.Cards {
		copies += card.Count
	}
	if copies != 40 {
		t.Fatalf("expected 40 copies in the best deck, got %d", copies)
	}
	if len(result.Curve) != len(fitness.DefaultIdealCurve) {
		t.Fatalf("unexpected curve: %v", result.Curve)
	}

	run, ok, err := store.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.CreatedAtUTC != "2026-01-02T03:04:05Z" || run.Selector != "stochastic_acceptance" || run.PoolSize != 40 {
		t.Fatalf("unexpected run record: %+v", run)
	}
	if _, ok, err := store.GetBestDeck(ctx, "run-a"); err != nil || !ok {
		t.Fatalf("get best deck: ok=%t err=%v", ok, err)
	}
	snapshot, ok, err := store.GetPopulation(ctx, "run-a")
	if err != nil || !ok || len(snapshot.Decks) != 16 || snapshot.Generation != 3 {
		t.Fatalf("unexpected snapshot: ok=%t err=%v generation=%d decks=%d", ok, err, snapshot.Generation, len(snapshot.Decks))
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-a")
	if err != nil || !ok || len(history) != 3 {
		t.Fatalf("unexpected history: ok=%t err=%v history=%v", ok, err, history)
	}

	if result.ArtifactsDir != filepath.Join(runsDir, "run-a") {
		t.Fatalf("unexpected artifacts dir: %s", result.ArtifactsDir)
	}
	if _, err := os.Stat(filepath.Join(result.ArtifactsDir, "fitness.png")); err != nil {
		t.Fatalf("expected fitness plot: %v", err)
	}
	index, err := stats.ListRunIndex(runsDir)
	if err != nil || len(index) != 1 || index[0].RunID != "run-a" {
		t.Fatalf("unexpected run index: err=%v index=%+v", err, index)
	}
}

func TestRunEvolutionGeneratesRunID(t *testing.T) {
	forge, _ := newTestForge(t, "")
	cfg := testEvolutionConfig(testCatalog())
	cfg.MaxGenerations = 1

	result, err := forge.RunEvolution(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run evolution: %v", err)
	}
	if result.RunID == "" || result.ArtifactsDir != "" {
		t.Fatalf("unexpected result: id=%q dir=%q", result.RunID, result.ArtifactsDir)
	}
}

func TestRunEvolutionResumesFromSnapshot(t *testing.T) {
	ctx := context.Background()
	forge, store := newTestForge(t, "")
	cat := testCatalog()

	first := testEvolutionConfig(cat)
	first.RunID = "first"
	if _, err := forge.RunEvolution(ctx, first); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := testEvolutionConfig(cat)
	second.RunID = "second"
	second.ResumeFrom = "first"
	second.MaxGenerations = 2
	result, err := forge.RunEvolution(ctx, second)
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if result.Generations != 5 {
		t.Fatalf("expected merged history of 5 generations, got %d", result.Generations)
	}
	if result.GenerationDiagnostics[3].Generation != 4 || result.GenerationDiagnostics[4].Generation != 5 {
		t.Fatalf("unexpected generation numbering: %+v", result.GenerationDiagnostics)
	}
	run, _, _ := store.GetRun(ctx, "second")
	if run.ResumedFrom != "first" {
		t.Fatalf("expected resumed_from link, got %+v", run)
	}
}

func TestRunEvolutionResumeRejectsMismatchedLimits(t *testing.T) {
	ctx := context.Background()
	forge, _ := newTestForge(t, "")
	cat := testCatalog()

	first := testEvolutionConfig(cat)
	first.RunID = "first"
	first.MaxGenerations = 1
	if _, err := forge.RunEvolution(ctx, first); err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := testEvolutionConfig(cat)
	second.ResumeFrom = "first"
	second.Limits.MaxCopies = 2
	if _, err := forge.RunEvolution(ctx, second); err == nil {
		t.Fatal("expected limits mismatch error")
	}

	missing := testEvolutionConfig(cat)
	missing.ResumeFrom = "nope"
	if _, err := forge.RunEvolution(ctx, missing); err == nil {
		t.Fatal("expected missing snapshot error")
	}
}

func TestRunEvolutionCancelledContextPersistsInterruptedRun(t *testing.T) {
	forge, store := newTestForge(t, "")
	cfg := testEvolutionConfig(testCatalog())
	cfg.RunID = "cancelled"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := forge.RunEvolution(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	if result.State != StateInterrupted {
		t.Fatalf("unexpected state: %s", result.State)
	}
	run, ok, err := store.GetRun(context.Background(), "cancelled")
	if err != nil || !ok || run.State != StateInterrupted {
		t.Fatalf("expected persisted interrupted run: ok=%t err=%v run=%+v", ok, err, run)
	}
}

func TestRunEvolutionValidation(t *testing.T) {
	cat := testCatalog()

	uninitialized := NewForge(Config{Store: storage.NewMemoryStore()})
	if _, err := uninitialized.RunEvolution(context.Background(), testEvolutionConfig(cat)); err == nil {
		t.Fatal("expected uninitialized forge error")
	}

	forge, _ := newTestForge(t, "")
	noCatalog := testEvolutionConfig(cat)
	noCatalog.Catalog = nil
	if _, err := forge.RunEvolution(context.Background(), noCatalog); err == nil {
		t.Fatal("expected missing catalog error")
	}

	wrongPool := testEvolutionConfig(cat)
	wrongPool.Limits.PoolSize = 12
	if _, err := forge.RunEvolution(context.Background(), wrongPool); err == nil {
		t.Fatal("expected pool size mismatch error")
	}

	badCurve := testEvolutionConfig(cat)
	badCurve.Fitness.IdealCurve = []float64{0, 0}
	if _, err := forge.RunEvolution(context.Background(), badCurve); err == nil {
		t.Fatal("expected invalid curve error")
	}
}

func TestInitRequiresStore(t *testing.T) {
	if err := NewForge(Config{}).Init(context.Background()); err == nil {
		t.Fatal("expected missing store error")
	}
}

func TestStopCancelsAndResets(t *testing.T) {
	forge, _ := newTestForge(t, "")
	forge.Stop()
	if len(forge.ActiveRuns()) != 0 {
		t.Fatalf("expected no active runs")
	}
	if _, err := forge.RunEvolution(context.Background(), testEvolutionConfig(testCatalog())); err == nil {
		t.Fatal("expected stopped forge to reject runs")
	}
}
