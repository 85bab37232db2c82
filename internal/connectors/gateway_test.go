package connectors

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"trendscope/internal/models"
)

type stubConnector struct {
	name       string
	configured bool
	fetchErr   error
	items      int
	fallback   int
	delay      time.Duration
	calls      atomic.Int32
}

func (s *stubConnector) Name() string        { return s.name }
func (s *stubConnector) DisplayName() string { return s.name }
func (s *stubConnector) IsConfigured() bool  { return s.configured }

func (s *stubConnector) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.SourceResult{}, ctx.Err()
		}
	}
	if s.fetchErr != nil {
		return models.SourceResult{}, s.fetchErr
	}
	items := make([]models.SourceItem, s.items)
	return models.SourceResult{ItemCount: s.items, Items: items}, nil
}

func (s *stubConnector) DegradedFallback(query string) models.SourceResult {
	if s.fallback == 0 {
		return models.SourceResult{}
	}
	return models.SourceResult{ItemCount: s.fallback, Items: make([]models.SourceItem, s.fallback)}
}

func newTestGateway(conns ...Connector) *Gateway {
	return NewGateway(NewRegistry(conns...), 4, 2*time.Second)
}

func TestCollectAllResolvesEverySource(t *testing.T) {
	conns := []Connector{
		&stubConnector{name: "ok", configured: true, items: 5},
		&stubConnector{name: "off", configured: false},
		&stubConnector{name: "broken", configured: true, fetchErr: errors.New("boom"), fallback: 2},
		&stubConnector{name: "dead", configured: true, fetchErr: errors.New("boom")},
	}
	g := newTestGateway(conns...)

	var mu sync.Mutex
	resolved := map[string]models.SourceStatus{}
	results := g.CollectAll(context.Background(), "test query", 10, func(res models.SourceResult) {
		mu.Lock()
		resolved[res.SourceName] = res.Status
		mu.Unlock()
	})

	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if len(resolved) != 4 {
		t.Fatalf("expected 4 callback resolutions, got %d", len(resolved))
	}

	want := map[string]models.SourceStatus{
		"ok":     models.SourceSuccess,
		"off":    models.SourceDisabled,
		"broken": models.SourcePartial,
		"dead":   models.SourceFailed,
	}
	for name, status := range want {
		if resolved[name] != status {
			t.Errorf("source %s: expected status %s, got %s", name, status, resolved[name])
		}
	}
}

func TestCollectAllOrderMatchesRegistry(t *testing.T) {
	g := newTestGateway(
		&stubConnector{name: "a", configured: true, items: 1, delay: 50 * time.Millisecond},
		&stubConnector{name: "b", configured: true, items: 1},
	)

	results := g.CollectAll(context.Background(), "q", 5, nil)
	if results[0].SourceName != "a" || results[1].SourceName != "b" {
		t.Fatalf("results out of registry order: %s, %s", results[0].SourceName, results[1].SourceName)
	}
}

func TestDisabledSourceIsNeverFetched(t *testing.T) {
	c := &stubConnector{name: "off", configured: false, items: 5}
	g := newTestGateway(c)

	res := g.CollectAll(context.Background(), "q", 5, nil)[0]
	if res.Status != models.SourceDisabled {
		t.Fatalf("expected disabled, got %s", res.Status)
	}
	if c.calls.Load() != 0 {
		t.Fatalf("disabled connector was fetched %d times", c.calls.Load())
	}
	if res.ItemCount != 0 {
		t.Fatalf("disabled result carries %d items", res.ItemCount)
	}
}

func TestFallbackYieldsPartialDegraded(t *testing.T) {
	g := newTestGateway(&stubConnector{
		name: "flaky", configured: true,
		fetchErr: &StatusError{Code: 500},
		fallback: 3,
	})

	res := g.CollectAll(context.Background(), "q", 5, nil)[0]
	if res.Status != models.SourcePartial {
		t.Fatalf("expected partial, got %s", res.Status)
	}
	if !res.Degraded {
		t.Fatal("fallback result not marked degraded")
	}
	if res.ErrorDetail == "" {
		t.Fatal("degraded result should retain the failure reason")
	}
	if res.ItemCount != 3 {
		t.Fatalf("expected 3 sample items, got %d", res.ItemCount)
	}
}

func TestRateLimitedSurfacesWhenFallbackEmpty(t *testing.T) {
	g := newTestGateway(&stubConnector{
		name: "limited", configured: true,
		fetchErr: &StatusError{Code: 429},
	})

	res := g.CollectAll(context.Background(), "q", 5, nil)[0]
	if res.Status != models.SourceRateLimited {
		t.Fatalf("expected rate_limited, got %s", res.Status)
	}
	if res.ItemCount != 0 {
		t.Fatalf("failed result carries %d items", res.ItemCount)
	}
}

func TestZeroResultsFallsBack(t *testing.T) {
	g := newTestGateway(&stubConnector{name: "empty", configured: true, items: 0, fallback: 2})

	res := g.CollectAll(context.Background(), "q", 5, nil)[0]
	if res.Status != models.SourcePartial || !res.Degraded {
		t.Fatalf("expected degraded partial for empty fetch, got %s degraded=%v", res.Status, res.Degraded)
	}
}

func TestSuccessfulFetchIsCached(t *testing.T) {
	c := &stubConnector{name: "cached", configured: true, items: 4}
	g := newTestGateway(c)

	g.CollectAll(context.Background(), "same query", 5, nil)
	res := g.CollectAll(context.Background(), "same query", 5, nil)[0]

	if c.calls.Load() != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", c.calls.Load())
	}
	if res.Status != models.SourceSuccess {
		t.Fatalf("cached result lost success status: %s", res.Status)
	}
}

func TestSlowSourceDoesNotBlockOthers(t *testing.T) {
	fast := &stubConnector{name: "fast", configured: true, items: 1}
	slow := &stubConnector{name: "slow", configured: true, items: 1, delay: 300 * time.Millisecond}
	g := newTestGateway(slow, fast)

	var fastResolved atomic.Bool
	start := time.Now()
	g.CollectAll(context.Background(), "q", 5, func(res models.SourceResult) {
		if res.SourceName == "fast" && time.Since(start) < 200*time.Millisecond {
			fastResolved.Store(true)
		}
	})

	if !fastResolved.Load() {
		t.Fatal("fast source waited for slow source")
	}
}

func TestTimedOutFetchDegrades(t *testing.T) {
	g := NewGateway(NewRegistry(&stubConnector{
		name: "hang", configured: true, items: 1,
		delay: 500 * time.Millisecond,
	}), 4, 50*time.Millisecond)

	res := g.CollectAll(context.Background(), "q", 5, nil)[0]
	if res.Status != models.SourceFailed {
		t.Fatalf("expected failed after per-source timeout, got %s", res.Status)
	}
}
