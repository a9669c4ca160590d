package models

import "time"

// Invocation outcomes recorded in the usage log.
const (
	OutcomeOK            = "ok"
	OutcomeCacheHit      = "cache_hit"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeProviderError = "provider_error"
	OutcomeParseError    = "parse_error"
)

// InvocationRecord tracks one gateway invocation.
type InvocationRecord struct {
	ID              int64     `json:"id"`
	RequestID       string    `json:"request_id"`
	Feature         string    `json:"feature"`
	Scope           string    `json:"scope"`
	Model           string    `json:"model"`
	Outcome         string    `json:"outcome"`
	CacheHit        bool      `json:"cache_hit"`
	EstimatedTokens int       `json:"estimated_tokens"`
	LatencyMs       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// UsageSummary aggregates invocations by feature, model and outcome.
type UsageSummary struct {
	Feature         string `json:"feature"`
	Model           string `json:"model"`
	Outcome         string `json:"outcome"`
	Count           int64  `json:"count"`
	EstimatedTokens int64  `json:"estimated_tokens"`
}
