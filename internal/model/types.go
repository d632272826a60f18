package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarizes one optimization run.
type RunRecord struct {
	VersionedRecord
	ID             string   `json:"id"`
	CreatedAtUTC   string   `json:"created_at_utc"`
	Craft          string   `json:"craft"`
	Format         string   `json:"format"`
	Tags           []string `json:"tags,omitempty"`
	Seed           int64    `json:"seed"`
	PopulationSize int      `json:"population_size"`
	PoolSize       int      `json:"pool_size"`
	Selector       string   `json:"selector"`
	State          string   `json:"state"`
	Generations    int      `json:"generations"`
	BestFitness    float64  `json:"best_fitness"`
	ResumedFrom    string   `json:"resumed_from,omitempty"`
}

type DeckCard struct {
	Index int    `json:"index"`
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	Cost  int    `json:"cost"`
	Count int    `json:"count"`
}

// DeckRecord is the best deck of a run with its score components.
type DeckRecord struct {
	VersionedRecord
	RunID       string     `json:"run_id"`
	Craft       string     `json:"craft"`
	Format      string     `json:"format"`
	Fitness     float64    `json:"fitness"`
	Curve       float64    `json:"curve_score"`
	Tags        float64    `json:"tag_score"`
	Consistency float64    `json:"consistency_score"`
	Cards       []DeckCard `json:"cards"`
}

type DeckEntry struct {
	Index int `json:"index"`
	Count int `json:"count"`
}

type ScoredDeck struct {
	Fitness float64     `json:"fitness"`
	Entries []DeckEntry `json:"entries"`
}

// PopulationSnapshot is the final population of a run, enough to resume it.
type PopulationSnapshot struct {
	VersionedRecord
	RunID      string       `json:"run_id"`
	Generation int          `json:"generation"`
	TargetSize int          `json:"target_size"`
	MaxCopies  int          `json:"max_copies"`
	PoolSize   int          `json:"pool_size"`
	Decks      []ScoredDeck `json:"decks"`
}

type GenerationDiagnostics struct {
	Generation        int     `json:"generation"`
	BestFitness       float64 `json:"best_fitness"`
	MeanFitness       float64 `json:"mean_fitness"`
	MinFitness        float64 `json:"min_fitness"`
	BestEverFitness   float64 `json:"best_ever_fitness"`
	CullThreshold     float64 `json:"cull_threshold"`
	Survivors         int     `json:"survivors"`
	DistinctDecks     int     `json:"distinct_decks"`
	MutationFallbacks int     `json:"mutation_fallbacks"`
	State             string  `json:"state"`
}
