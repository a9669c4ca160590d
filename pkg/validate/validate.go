// Package validate turns an untrusted provider reply into a strictly typed
// diagnosis. Structural corruption (not JSON, required fields missing) fails
// hard; semantic drift (unknown enum values, out-of-range numbers) is
// repaired with documented defaults so the pipeline completes.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/verdia-ai/verdia/pkg/models"
)

// ParseError reports a provider reply whose structure cannot be trusted.
// No retry will help: it reflects a malformed single response.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse provider reply: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse provider reply: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options adjust the repair pass.
type Options struct {
	// HasImage reports whether image evidence accompanied the prompt.
	// Without it the result is a prediction-only guess and confidence is
	// capped at MaxConfidenceWithoutImage.
	HasImage bool
}

const (
	// MaxConfidenceWithoutImage caps confidence for image-less diagnoses.
	MaxConfidenceWithoutImage = 70

	defaultIssueKind     = "other"
	defaultIssueSeverity = "medium"
	defaultRecKind       = "care"
	defaultRecPriority   = "medium"
)

var issueSeverities = map[string]bool{
	"low": true, "medium": true, "high": true, "critical": true,
}

var recPriorities = map[string]bool{
	"low": true, "medium": true, "high": true,
}

// rawDiagnosis mirrors the provider's JSON with every field optional so the
// repair pass can distinguish missing from invalid.
type rawDiagnosis struct {
	State             *string    `json:"state"`
	Confidence        any        `json:"confidence"`
	Summary           *string    `json:"summary"`
	DetailedDiagnosis *string    `json:"detailed_diagnosis"`
	Issues            []rawItem  `json:"issues"`
	Recommendations   *[]rawItem `json:"recommendations"`
}

type rawItem struct {
	Kind        string `json:"kind"`
	Severity    string `json:"severity"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
}

// Parse validates and repairs a raw provider reply.
func Parse(raw string, opts Options) (*models.Diagnosis, error) {
	payload := StripFences(raw)
	if payload == "" {
		return nil, &ParseError{Reason: "empty reply"}
	}

	var rd rawDiagnosis
	dec := json.NewDecoder(strings.NewReader(payload))
	if err := dec.Decode(&rd); err != nil {
		return nil, &ParseError{Reason: "not valid JSON", Err: err}
	}

	// Structural requirements: state, confidence, summary and the
	// recommendations list must be present. An empty list is present.
	if rd.State == nil {
		return nil, &ParseError{Reason: "missing required field: state"}
	}
	if rd.Confidence == nil {
		return nil, &ParseError{Reason: "missing required field: confidence"}
	}
	if rd.Summary == nil || strings.TrimSpace(*rd.Summary) == "" {
		return nil, &ParseError{Reason: "missing required field: summary"}
	}
	if rd.Recommendations == nil {
		return nil, &ParseError{Reason: "missing required field: recommendations"}
	}

	d := &models.Diagnosis{
		State:      repairState(*rd.State),
		Confidence: repairConfidence(rd.Confidence, opts.HasImage),
		Summary:    strings.TrimSpace(*rd.Summary),
	}

	if rd.DetailedDiagnosis != nil && strings.TrimSpace(*rd.DetailedDiagnosis) != "" {
		d.DetailedDiagnosis = strings.TrimSpace(*rd.DetailedDiagnosis)
	} else {
		d.DetailedDiagnosis = d.Summary
	}

	if rd.Issues != nil {
		d.Issues = make([]models.Issue, 0, len(rd.Issues))
		for _, it := range rd.Issues {
			desc := strings.TrimSpace(it.Description)
			if desc == "" {
				continue
			}
			d.Issues = append(d.Issues, models.Issue{
				Kind:        orDefault(it.Kind, defaultIssueKind),
				Severity:    vocabOrDefault(it.Severity, issueSeverities, defaultIssueSeverity),
				Description: desc,
			})
		}
	}

	d.Recommendations = make([]models.Recommendation, 0, len(*rd.Recommendations))
	for _, it := range *rd.Recommendations {
		desc := strings.TrimSpace(it.Description)
		if desc == "" {
			continue
		}
		d.Recommendations = append(d.Recommendations, models.Recommendation{
			Kind:        orDefault(it.Kind, defaultRecKind),
			Priority:    vocabOrDefault(it.Priority, recPriorities, defaultRecPriority),
			Description: desc,
		})
	}

	return d, nil
}

// StripFences removes a surrounding markdown code fence, if any, the way
// providers often wrap structured output.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the opening fence line ("json", "JSON", ...).
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		first := strings.TrimSpace(s[:i])
		if len(first) <= 10 && !strings.ContainsAny(first, "{}[]") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// repairState coerces the provider's state string into the closed vocabulary.
// An unrecognized value becomes healthy; a blank one becomes unknown.
func repairState(s string) models.PlantState {
	v := models.PlantState(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return models.StateUnknown
	}
	for _, valid := range models.ValidStates {
		if v == valid {
			return v
		}
	}
	return models.StateHealthy
}

// repairConfidence coerces any confidence representation into [0,100],
// further capped when no image evidence was supplied.
func repairConfidence(v any, hasImage bool) float64 {
	var c float64
	switch n := v.(type) {
	case float64:
		c = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			c = 50
		} else {
			c = parsed
		}
	case bool:
		c = 50
	default:
		c = 50
	}

	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	if !hasImage && c > MaxConfidenceWithoutImage {
		c = MaxConfidenceWithoutImage
	}
	return c
}

func orDefault(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}

func vocabOrDefault(s string, vocab map[string]bool, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if vocab[s] {
		return s
	}
	return def
}
