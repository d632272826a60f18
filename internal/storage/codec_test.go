package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/efinauri/shadowbuilder/internal/model"
)

func TestDecodeDeckFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "best_deck_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	deck, err := DecodeDeck(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if deck.RunID != "run-fixture" || deck.Craft != "Forestcraft" {
		t.Fatalf("unexpected deck header: %+v", deck)
	}
	if len(deck.Cards) != 2 || deck.Cards[0].Count != 3 || deck.Cards[1].ID != 100000040 {
		t.Fatalf("unexpected deck cards: %+v", deck.Cards)
	}
}

func TestDecodeRunRejectsOldSchema(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "run_v0.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	_, err = DecodeRun(data)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestEncodeDecodePopulationSnapshot(t *testing.T) {
	snapshot := model.PopulationSnapshot{
		VersionedRecord: NewVersion(),
		RunID:           "run-1",
		Generation:      12,
		TargetSize:      40,
		MaxCopies:       3,
		PoolSize:        120,
		Decks: []model.ScoredDeck{
			{Fitness: 0.7, Entries: []model.DeckEntry{{Index: 1, Count: 3}, {Index: 9, Count: 1}}},
		},
	}
	data, err := EncodePopulation(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodePopulation(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(snapshot, decoded) {
		t.Fatalf("snapshot changed on the way through:\nwant %+v\n got %+v", snapshot, decoded)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeDeck([]byte(`{"cards":`)); err == nil {
		t.Fatal("expected malformed deck error")
	}
	if _, err := DecodeFitnessHistory([]byte(`[0.1, "x"]`)); err == nil {
		t.Fatal("expected malformed history error")
	}
	if _, err := DecodePopulation([]byte(`{"schema_version": 2, "codec_version": 1}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}
