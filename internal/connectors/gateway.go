package connectors

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"trendscope/internal/models"
)

// Gateway fans a query out to every registered connector and resolves each
// call into a SourceResult. It never returns an error: every outcome,
// including credential failures and timeouts, becomes a resolved status.
type Gateway struct {
	registry      *Registry
	semaphore     chan struct{} // bounds concurrent outbound fetches
	limiters      sync.Map      // map[string]*rate.Limiter, one per source
	results       *cache.Cache  // short-lived cache of successful fetches
	sourceTimeout time.Duration
}

// NewGateway creates a gateway over the registry. maxConcurrent bounds
// simultaneous outbound fetches; sourceTimeout is the per-call budget.
func NewGateway(registry *Registry, maxConcurrent int, sourceTimeout time.Duration) *Gateway {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Gateway{
		registry:      registry,
		semaphore:     make(chan struct{}, maxConcurrent),
		results:       cache.New(5*time.Minute, 10*time.Minute),
		sourceTimeout: sourceTimeout,
	}
}

// SourceCount returns how many connectors the gateway fans out to.
func (g *Gateway) SourceCount() int {
	return g.registry.Len()
}

// CollectAll queries every connector concurrently and blocks until all of
// them have resolved. onResolve, if non-nil, is invoked once per connector
// as its result lands, from the resolving goroutine.
func (g *Gateway) CollectAll(ctx context.Context, query string, limit int, onResolve func(models.SourceResult)) []models.SourceResult {
	conns := g.registry.All()
	results := make([]models.SourceResult, len(conns))

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c Connector) {
			defer wg.Done()
			res := g.collectOne(ctx, c, query, limit)
			results[i] = res
			if onResolve != nil {
				onResolve(res)
			}
		}(i, c)
	}
	wg.Wait()

	return results
}

// collectOne applies the per-source resolution policy:
// unconfigured → DISABLED; live fetch with items → SUCCESS; fetch error →
// classify, then fallback sample → PARTIAL (degraded) or the classified
// terminal status with zero items.
func (g *Gateway) collectOne(ctx context.Context, c Connector, query string, limit int) models.SourceResult {
	name, display := c.Name(), c.DisplayName()

	if !c.IsConfigured() {
		return models.SourceResult{
			SourceName:  name,
			DisplayName: display,
			Status:      models.SourceDisabled,
			Message:     display + " is not configured - missing API credentials",
		}
	}

	cacheKey := fmt.Sprintf("%s|%s|%d", name, query, limit)
	if cached, found := g.results.Get(cacheKey); found {
		res := cached.(models.SourceResult)
		res.Message = res.Message + " (cached)"
		return res
	}

	if err := g.acquire(ctx); err != nil {
		return g.degrade(c, query, models.SourceFailed, "collection cancelled before fetch")
	}
	defer g.release()

	if err := g.limiter(name).Wait(ctx); err != nil {
		return g.degrade(c, query, models.SourceFailed, "collection cancelled before fetch")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, g.sourceTimeout)
	defer cancel()

	res, err := c.Fetch(fetchCtx, query, limit)
	if err == nil && res.ItemCount > 0 {
		res.SourceName = name
		res.DisplayName = display
		res.Status = models.SourceSuccess
		if res.Message == "" {
			res.Message = fmt.Sprintf("collected %d items from %s", res.ItemCount, display)
		}
		g.results.Set(cacheKey, res, cache.DefaultExpiration)
		return res
	}

	var status models.SourceStatus
	var reason string
	if err != nil {
		status, reason = Classify(err, display)
	} else {
		status, reason = models.SourceFailed, "no results found for this query"
	}
	log.Printf("⚠️ [GATEWAY] %s fetch failed: %s", name, reason)

	return g.degrade(c, query, status, reason)
}

// degrade attempts the connector's sample fallback. A usable sample yields
// PARTIAL with the degraded flag set; otherwise the classified status is
// surfaced with zero items.
func (g *Gateway) degrade(c Connector, query string, status models.SourceStatus, reason string) models.SourceResult {
	fb := c.DegradedFallback(query)
	if fb.ItemCount > 0 {
		fb.SourceName = c.Name()
		fb.DisplayName = c.DisplayName()
		fb.Status = models.SourcePartial
		fb.Degraded = true
		fb.ErrorDetail = reason
		if fb.Message == "" {
			fb.Message = "sample data - reduced confidence"
		}
		return fb
	}
	return models.SourceResult{
		SourceName:  c.Name(),
		DisplayName: c.DisplayName(),
		Status:      status,
		Message:     reason,
		ErrorDetail: reason,
	}
}

func (g *Gateway) acquire(ctx context.Context) error {
	select {
	case g.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) release() {
	<-g.semaphore
}

// limiter returns the per-source rate limiter, creating it on first use.
func (g *Gateway) limiter(source string) *rate.Limiter {
	if l, ok := g.limiters.Load(source); ok {
		return l.(*rate.Limiter)
	}
	newLimiter := rate.NewLimiter(rate.Limit(2.0), 4)
	actual, _ := g.limiters.LoadOrStore(source, newLimiter)
	return actual.(*rate.Limiter)
}
