package models

import "time"

// PlantState is the closed vocabulary of overall plant conditions.
type PlantState string

const (
	StateExcellent      PlantState = "excellent"
	StateHealthy        PlantState = "healthy"
	StateNeedsAttention PlantState = "needs_attention"
	StateDisease        PlantState = "disease"
	StatePest           PlantState = "pest"
	StateCritical       PlantState = "critical"
	StateUnknown        PlantState = "unknown"
)

// ValidStates lists every accepted PlantState value.
var ValidStates = []PlantState{
	StateExcellent, StateHealthy, StateNeedsAttention,
	StateDisease, StatePest, StateCritical, StateUnknown,
}

// Issue is a single problem the model identified.
type Issue struct {
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// Recommendation is a single suggested action.
type Recommendation struct {
	Kind        string `json:"kind"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// Diagnosis is the validated, repaired result of a provider reply.
type Diagnosis struct {
	State             PlantState       `json:"state"`
	Confidence        float64          `json:"confidence"`
	Summary           string           `json:"summary"`
	DetailedDiagnosis string           `json:"detailed_diagnosis"`
	Issues            []Issue          `json:"issues"`
	Recommendations   []Recommendation `json:"recommendations"`
}

// Metadata describes one gateway invocation.
type Metadata struct {
	RequestID       string        `json:"request_id"`
	Feature         string        `json:"feature"`
	Model           string        `json:"model"`
	PromptVersion   string        `json:"prompt_version"`
	CacheHit        bool          `json:"cache_hit"`
	HasImage        bool          `json:"has_image"`
	Elapsed         time.Duration `json:"elapsed"`
	EstimatedTokens int           `json:"estimated_tokens"`
	CreatedAt       time.Time     `json:"created_at"`
}
