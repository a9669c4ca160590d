package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/verdia-ai/verdia/pkg/clock"
)

func newTestStore(t *testing.T, ttl time.Duration) (*MemoryStore, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC))
	return NewMemoryStore(ttl, clk), clk
}

func TestFingerprintNormalization(t *testing.T) {
	a := Fingerprint("How often should I water a monstera?", "")
	b := Fingerprint("  how OFTEN should\n\ti water a MONSTERA?  ", "")
	if a != b {
		t.Error("case and whitespace variants should collide")
	}

	c := Fingerprint("how often should i water a ficus?", "")
	if a == c {
		t.Error("different queries should not collide")
	}

	d := Fingerprint("How often should I water a monstera?", "indoor, low light")
	if a == d {
		t.Error("context should participate in the key")
	}
	if d != Fingerprint("how often should i water a monstera?", "INDOOR,   low light") {
		t.Error("context normalization should match query normalization")
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := newTestStore(t, 30*24*time.Hour)
	ctx := context.Background()
	fp := Fingerprint("is my plant ok", "")
	body := []byte(`{"answer":"yes"}`)

	if _, err := s.Put(ctx, fp, body); err != nil {
		t.Fatal(err)
	}

	e, ok, err := s.Lookup(ctx, fp)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !bytes.Equal(e.Body, body) {
		t.Errorf("body changed through the cache: %q", e.Body)
	}

	// Repeated lookups return the same body.
	e2, ok, _ := s.Lookup(ctx, fp)
	if !ok || !bytes.Equal(e2.Body, body) {
		t.Error("repeated lookup should return the identical body")
	}
}

func TestLookupMiss(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	_, ok, err := s.Lookup(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected miss on cold cache")
	}
}

func TestHitCountAndLastUsed(t *testing.T) {
	s, clk := newTestStore(t, time.Hour)
	ctx := context.Background()
	fp := "fp"

	if _, err := s.Put(ctx, fp, []byte("x")); err != nil {
		t.Fatal(err)
	}

	clk.Advance(time.Minute)
	e, _, _ := s.Lookup(ctx, fp)
	if e.HitCount != 1 {
		t.Errorf("expected hit count 1, got %d", e.HitCount)
	}
	if !e.LastUsedAt.Equal(clk.Now().UTC()) {
		t.Errorf("last used not refreshed: %v", e.LastUsedAt)
	}

	clk.Advance(time.Minute)
	e, _, _ = s.Lookup(ctx, fp)
	if e.HitCount != 2 {
		t.Errorf("expected hit count 2, got %d", e.HitCount)
	}
}

func TestExpiryBoundary(t *testing.T) {
	ttl := time.Hour
	s, clk := newTestStore(t, ttl)
	ctx := context.Background()
	fp := "fp"

	if _, err := s.Put(ctx, fp, []byte("x")); err != nil {
		t.Fatal(err)
	}

	// One tick before expiry still hits.
	clk.Advance(ttl - time.Nanosecond)
	if _, ok, _ := s.Lookup(ctx, fp); !ok {
		t.Error("expected hit just before expiry")
	}

	// At exactly expires_at the entry behaves as a miss.
	clk.Advance(time.Nanosecond)
	if _, ok, _ := s.Lookup(ctx, fp); ok {
		t.Error("expected miss at expiry instant")
	}

	// Lazy eviction removed it.
	st, _ := s.Stats(ctx)
	if st.Entries != 0 {
		t.Errorf("expected expired entry removed, entries=%d", st.Entries)
	}
}

func TestPutPreservesCreatedAt(t *testing.T) {
	s, clk := newTestStore(t, time.Hour)
	ctx := context.Background()
	fp := "fp"

	first, err := s.Put(ctx, fp, []byte("v1"))
	if err != nil {
		t.Fatal(err)
	}

	clk.Advance(10 * time.Minute)
	second, err := s.Put(ctx, fp, []byte("v2"))
	if err != nil {
		t.Fatal(err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("refresh should preserve created_at")
	}
	if !second.ExpiresAt.After(first.ExpiresAt) {
		t.Error("refresh should extend expires_at")
	}
	if string(second.Body) != "v2" {
		t.Errorf("body not replaced: %q", second.Body)
	}

	// No duplicate entry.
	st, _ := s.Stats(ctx)
	if st.Entries != 1 {
		t.Errorf("expected a single entry after upsert, got %d", st.Entries)
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, _ = s.Put(ctx, "a", []byte("x"))
	s.Lookup(ctx, "a") // hit
	s.Lookup(ctx, "b") // miss

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
}

func TestClear(t *testing.T) {
	s, clk := newTestStore(t, time.Hour)
	ctx := context.Background()

	_, _ = s.Put(ctx, "old", []byte("x"))
	clk.Advance(2 * time.Hour)
	_, _ = s.Put(ctx, "fresh", []byte("y"))

	if err := s.Clear(ctx, true); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Lookup(ctx, "fresh"); !ok {
		t.Error("expired-only clear removed a live entry")
	}
	st, _ := s.Stats(ctx)
	if st.Entries != 1 {
		t.Errorf("expected 1 entry after expired-only clear, got %d", st.Entries)
	}

	if err := s.Clear(ctx, false); err != nil {
		t.Fatal(err)
	}
	st, _ = s.Stats(ctx)
	if st.Entries != 0 {
		t.Errorf("expected empty cache after full clear, got %d", st.Entries)
	}
}
