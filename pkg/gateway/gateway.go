// Package gateway orchestrates rate limiting, response caching and reply
// validation around a single abstract provider call. It is the only component
// that talks to the upstream API.
package gateway

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/verdia-ai/verdia/pkg/cache"
	"github.com/verdia-ai/verdia/pkg/clock"
	"github.com/verdia-ai/verdia/pkg/models"
	"github.com/verdia-ai/verdia/pkg/ratelimit"
	"github.com/verdia-ai/verdia/pkg/tracker"
	"github.com/verdia-ai/verdia/pkg/validate"
)

// Provider is the narrow upstream contract. Invoke blocks for the network
// round trip and must honor ctx cancellation.
type Provider interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// Result is the structured outcome of one invocation.
type Result struct {
	// Raw is the provider's reply (or the cached body).
	Raw string
	// Diagnosis is set for structured requests only.
	Diagnosis *models.Diagnosis
	Meta      models.Metadata
}

// Options configures optional gateway collaborators.
type Options struct {
	// Recorder receives one usage record per invocation; nil disables the log.
	Recorder tracker.Recorder
	// Clock defaults to the system clock.
	Clock clock.Clock
	// Model is the default model name stamped into requests and metadata.
	Model string
	// PromptVersion tags results with the prompt revision that produced them.
	PromptVersion string
	// Coalesce collapses concurrent identical cacheable misses into a single
	// provider call. Off by default: two concurrent cold-cache requests for
	// the same fingerprint both invoke the provider.
	Coalesce bool
}

// Gateway coordinates the limiter, cache, validator and provider.
type Gateway struct {
	provider Provider
	limiter  *ratelimit.Limiter
	store    cache.Store
	opts     Options
	group    singleflight.Group
}

// New creates a Gateway. A nil store disables caching entirely.
func New(provider Provider, limiter *ratelimit.Limiter, store cache.Store, opts Options) *Gateway {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Gateway{
		provider: provider,
		limiter:  limiter,
		store:    store,
		opts:     opts,
	}
}

// Remaining reports quota headroom for a caller scope without recording a call.
func (g *Gateway) Remaining(ctx context.Context, scope string) (models.Remaining, error) {
	return g.limiter.Remaining(ctx, scope)
}

// Execute runs one invocation through the pipeline: cache lookup (a hit
// costs nothing upstream and skips rate limiting), quota admission, provider
// call, validation, cache store. Errors are typed: *ratelimit.QuotaError,
// *ProviderError and *validate.ParseError are all distinguishable.
func (g *Gateway) Execute(ctx context.Context, req Request) (*Result, error) {
	start := g.opts.Clock.Now()
	meta := models.Metadata{
		RequestID:     uuid.NewString(),
		Feature:       req.Feature,
		Model:         g.model(req),
		PromptVersion: g.opts.PromptVersion,
		HasImage:      req.HasImage(),
		CreatedAt:     start.UTC(),
	}

	fp := ""
	if req.Cacheable && g.store != nil {
		fp = cache.Fingerprint(g.fingerprintInput(req), req.Context)
		entry, ok, err := g.store.Lookup(ctx, fp)
		if err != nil {
			// A broken cache must not fail the request; treat as a miss.
			log.Printf("cache lookup error: %v", err)
		}
		if ok {
			meta.CacheHit = true
			meta.Elapsed = g.opts.Clock.Now().Sub(start)
			res, err := g.buildResult(string(entry.Body), req, meta)
			if err != nil {
				// A cached body that no longer validates falls through to a
				// fresh provider call.
				log.Printf("cached body invalid for %s: %v", fp, err)
			} else {
				g.record(req, meta, models.OutcomeCacheHit)
				return res, nil
			}
		}
	}

	if g.opts.Coalesce && fp != "" {
		v, err, _ := g.group.Do(fp, func() (any, error) {
			return g.invoke(ctx, req, fp, meta, start)
		})
		if err != nil {
			return nil, err
		}
		shared := *(v.(*Result))
		return &shared, nil
	}
	return g.invoke(ctx, req, fp, meta, start)
}

// invoke performs the uncached portion of the pipeline. No lock is held
// across the provider round trip: the limiter and cache lock only inside
// their own bookkeeping calls.
func (g *Gateway) invoke(ctx context.Context, req Request, fp string, meta models.Metadata, start time.Time) (*Result, error) {
	if err := g.limiter.Admit(ctx, req.Scope); err != nil {
		g.record(req, meta, models.OutcomeQuotaExceeded)
		return nil, err
	}

	raw, err := g.provider.Invoke(ctx, req)
	if err != nil {
		g.record(req, meta, models.OutcomeProviderError)
		return nil, &ProviderError{Err: err}
	}

	meta.Elapsed = g.opts.Clock.Now().Sub(start)
	meta.EstimatedTokens = estimateTokens(req.Prompt) + estimateTokens(raw)

	res, err := g.buildResult(raw, req, meta)
	if err != nil {
		g.record(req, meta, models.OutcomeParseError)
		return nil, err
	}

	if fp != "" {
		if _, err := g.store.Put(ctx, fp, []byte(raw)); err != nil {
			// Losing a cache write costs one future upstream call, nothing more.
			log.Printf("cache put error: %v", err)
		}
	}

	g.record(req, meta, models.OutcomeOK)
	return res, nil
}

// buildResult validates the reply for structured requests and rejects blank
// replies for chat.
func (g *Gateway) buildResult(raw string, req Request, meta models.Metadata) (*Result, error) {
	if req.Structured {
		d, err := validate.Parse(raw, validate.Options{HasImage: req.HasImage()})
		if err != nil {
			return nil, err
		}
		return &Result{Raw: raw, Diagnosis: d, Meta: meta}, nil
	}
	if strings.TrimSpace(raw) == "" {
		return nil, &validate.ParseError{Reason: "empty reply"}
	}
	return &Result{Raw: raw, Meta: meta}, nil
}

func (g *Gateway) model(req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return g.opts.Model
}

// fingerprintInput prefers the normalized query over the full prompt.
func (g *Gateway) fingerprintInput(req Request) string {
	if req.Query != "" {
		return req.Query
	}
	return req.Prompt
}

// record writes one usage row best-effort. A usage log failure never fails
// the invocation, and a cancelled request context must not lose the record.
func (g *Gateway) record(req Request, meta models.Metadata, outcome string) {
	if g.opts.Recorder == nil {
		return
	}
	rec := models.InvocationRecord{
		RequestID:       meta.RequestID,
		Feature:         req.Feature,
		Scope:           req.Scope,
		Model:           meta.Model,
		Outcome:         outcome,
		CacheHit:        outcome == models.OutcomeCacheHit,
		EstimatedTokens: meta.EstimatedTokens,
		LatencyMs:       meta.Elapsed.Milliseconds(),
		CreatedAt:       meta.CreatedAt,
	}
	if err := g.opts.Recorder.Record(context.Background(), rec); err != nil {
		log.Printf("usage record error: %v", err)
	}
}

// estimateTokens is the rough chars/4 heuristic; the provider contract
// returns raw text only, so exact usage is not available.
func estimateTokens(s string) int {
	return len(s) / 4
}
