package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Individual is one candidate weighting of the rule table, indexed by rule
// position.
type Individual struct {
	VersionedRecord
	ID      string    `json:"id"`
	Weights []float64 `json:"weights"`
}

// Clone returns a deep copy.
func (i Individual) Clone() Individual {
	out := i
	out.Weights = append([]float64(nil), i.Weights...)
	return out
}

type RunRecord struct {
	VersionedRecord
	ID          string  `json:"id"`
	Scape       string  `json:"scape"`
	Sense       string  `json:"sense"`
	Seed        uint64  `json:"seed"`
	Population  int     `json:"population"`
	Offspring   int     `json:"offspring"`
	Generations int     `json:"generations"`
	RuleCount   int     `json:"rule_count"`
	BestFitness float64 `json:"best_fitness"`
	BestOutput  float64 `json:"best_output"`
	Evaluations int     `json:"evaluations"`
	Fallbacks   int     `json:"fallbacks"`

	// BestFallback marks a best whose fitness is the no-rule-fired penalty;
	// BestOutput carries no value then.
	BestFallback bool `json:"best_fallback,omitempty"`
}

type ScapeSummary struct {
	VersionedRecord
	Name        string  `json:"name"`
	Description string  `json:"description"`
	BestFitness float64 `json:"best_fitness"`
}

type GenerationDiagnostics struct {
	Generation   int     `json:"generation"`
	BestFitness  float64 `json:"best_fitness"`
	MeanFitness  float64 `json:"mean_fitness"`
	WorstFitness float64 `json:"worst_fitness"`
	BestOutput   float64 `json:"best_output"`
	BestFallback bool    `json:"best_fallback,omitempty"`
	Evaluations  int     `json:"evaluations"`
	CacheHits    int     `json:"cache_hits"`
	Fallbacks    int     `json:"fallbacks"`
	Diversity    int     `json:"diversity"`

	// Tuning counters are zero when no tuner is configured. Accepted and
	// rejected are reported only by tuners that keep a report.
	TuneAttempts int `json:"tune_attempts"`
	TuneAccepted int `json:"tune_accepted"`
	TuneRejected int `json:"tune_rejected"`
}

type TopIndividualRecord struct {
	VersionedRecord
	Rank       int        `json:"rank"`
	Fitness    float64    `json:"fitness"`
	Output     float64    `json:"output"`
	Fallback   bool       `json:"fallback,omitempty"`
	Individual Individual `json:"individual"`
}

type LineageRecord struct {
	VersionedRecord
	IndividualID string   `json:"individual_id"`
	ParentIDs    []string `json:"parent_ids,omitempty"`
	Generation   int      `json:"generation"`
	Operation    string   `json:"operation"`
}
