package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"trendscope/internal/config"
	"trendscope/internal/connectors"
	"trendscope/internal/models"
	"trendscope/internal/services"
)

type fakeSource struct {
	name  string
	items int
}

func (f *fakeSource) Name() string        { return f.name }
func (f *fakeSource) DisplayName() string { return f.name }
func (f *fakeSource) IsConfigured() bool  { return true }

func (f *fakeSource) Fetch(ctx context.Context, query string, limit int) (models.SourceResult, error) {
	return models.SourceResult{ItemCount: f.items, Items: make([]models.SourceItem, f.items)}, nil
}

func (f *fakeSource) DegradedFallback(query string) models.SourceResult {
	return models.SourceResult{}
}

type fakeAnalyzer struct{}

func (f *fakeAnalyzer) Name() string    { return "stub" }
func (f *fakeAnalyzer) Available() bool { return true }
func (f *fakeAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	return "## EXECUTIVE SUMMARY\n\nAll good.\n\n## KEY FINDINGS\n\n- one\n\n## RECOMMENDATIONS\n\n- act\n", nil
}

func testMetrics() *services.Metrics {
	return &services.Metrics{
		SessionsStarted:     prometheus.NewCounter(prometheus.CounterOpts{Name: "h_started"}),
		SessionsCompleted:   prometheus.NewCounter(prometheus.CounterOpts{Name: "h_completed"}),
		SessionsFailed:      prometheus.NewCounter(prometheus.CounterOpts{Name: "h_failed"}),
		AdmissionRejections: prometheus.NewCounter(prometheus.CounterOpts{Name: "h_rejected"}),
		SourceOutcomes:      prometheus.NewCounterVec(prometheus.CounterOpts{Name: "h_sources"}, []string{"source", "status"}),
		ResearchDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Name: "h_duration"}),
	}
}

func newTestApp(t *testing.T, maxSessions int) (*fiber.App, *services.SessionStore) {
	t.Helper()

	cfg := &config.Config{
		MaxSessions:              maxSessions,
		SessionTimeout:           time.Hour,
		TerminalRetention:        30 * time.Minute,
		MinSuccessfulSources:     1,
		SourceTimeout:            time.Second,
		ResearchTimeout:          5 * time.Second,
		DefaultMaxResults:        10,
		MaxConcurrentFetches:     4,
		AllowPlaceholderAnalysis: true,
	}

	registry := connectors.NewRegistry(&fakeSource{name: "src", items: 3})
	gateway := connectors.NewGateway(registry, 4, time.Second)
	store := services.NewSessionStore(maxSessions)
	admission := services.NewAdmissionController(maxSessions)
	catalog, err := services.NewQuestionCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	research := services.NewResearchService(cfg, store, admission, gateway, catalog, services.NewAnalyzerChain(&fakeAnalyzer{}), testMetrics())

	handler := NewResearchHandler(research, store, catalog)
	health := NewHealthHandler(store)

	app := fiber.New()
	app.Get("/health", health.Handle)
	rsch := app.Group("/api/research")
	rsch.Post("/start", handler.Start)
	rsch.Get("/questions", handler.Questions)
	rsch.Get("/sessions", handler.List)
	rsch.Get("/statistics", handler.Stats)
	rsch.Get("/:id/status", handler.Status)
	rsch.Get("/:id/result", handler.Result)
	rsch.Delete("/:id", handler.Delete)
	return app, store
}

func startSession(t *testing.T, app *fiber.App, body string) models.StartResearchResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/research/start", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 2000)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("start returned %d", resp.StatusCode)
	}

	var out models.StartResearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return out
}

func waitTerminal(t *testing.T, store *services.SessionStore, id string) models.Session {
	t.Helper()
	deadline := time.Now().Add(4 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := store.Get(id)
		if err == nil && sess.Phase.Terminal() {
			return sess
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("session never reached a terminal phase")
	return models.Session{}
}

func TestStartStatusResultLifecycle(t *testing.T) {
	app, store := newTestApp(t, 5)

	started := startSession(t, app, `{"question":"what is trending"}`)
	if started.SessionID == "" || started.StatusURL == "" {
		t.Fatalf("incomplete start response: %+v", started)
	}

	// Result before completion is a conflict
	req := httptest.NewRequest(http.MethodGet, "/api/research/"+started.SessionID+"/result", nil)
	resp, _ := app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusConflict && resp.StatusCode != fiber.StatusOK {
		t.Fatalf("early result returned %d", resp.StatusCode)
	}

	waitTerminal(t, store, started.SessionID)

	req = httptest.NewRequest(http.MethodGet, "/api/research/"+started.SessionID+"/status", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status returned %d", resp.StatusCode)
	}
	var status models.StatusResponse
	json.NewDecoder(resp.Body).Decode(&status)
	if status.Phase != models.PhaseCompleted || status.ProgressPercent != 100 {
		t.Fatalf("unexpected status: %+v", status)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/"+started.SessionID+"/result", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("result returned %d", resp.StatusCode)
	}
}

func TestStartValidationErrors(t *testing.T) {
	app, _ := newTestApp(t, 5)

	req := httptest.NewRequest(http.MethodPost, "/api/research/start", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("malformed body returned %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/research/start", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("empty request returned %d", resp.StatusCode)
	}
}

func TestStartAtCapacityReturns503(t *testing.T) {
	app, _ := newTestApp(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/research/start", bytes.NewBufferString(`{"question":"q"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 at capacity, got %d", resp.StatusCode)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	app, _ := newTestApp(t, 5)

	for _, path := range []string{
		"/api/research/nope/status",
		"/api/research/nope/result",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp, _ := app.Test(req, 2000)
		if resp.StatusCode != fiber.StatusNotFound {
			t.Errorf("%s returned %d", path, resp.StatusCode)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/research/nope", nil)
	resp, _ := app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("delete unknown returned %d", resp.StatusCode)
	}
}

func TestDeleteRemovesSession(t *testing.T) {
	app, store := newTestApp(t, 5)
	started := startSession(t, app, `{"question":"q"}`)
	waitTerminal(t, store, started.SessionID)

	req := httptest.NewRequest(http.MethodDelete, "/api/research/"+started.SessionID, nil)
	resp, _ := app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("delete returned %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/"+started.SessionID+"/status", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status after delete returned %d", resp.StatusCode)
	}
}

func TestListStatsQuestionsHealth(t *testing.T) {
	app, store := newTestApp(t, 5)
	started := startSession(t, app, `{"question":"q"}`)
	waitTerminal(t, store, started.SessionID)

	req := httptest.NewRequest(http.MethodGet, "/api/research/sessions", nil)
	resp, _ := app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("sessions returned %d", resp.StatusCode)
	}
	var listBody struct {
		Count    int                     `json:"count"`
		Sessions []models.SessionSummary `json:"sessions"`
	}
	json.NewDecoder(resp.Body).Decode(&listBody)
	if listBody.Count != 1 || len(listBody.Sessions) != 1 {
		t.Fatalf("unexpected list: %+v", listBody)
	}
	if !listBody.Sessions[0].HasResult {
		t.Fatal("summary missing has_result")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/sessions?phase=bogus", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("invalid phase filter returned %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/sessions?phase=completed", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("phase filter returned %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/statistics", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("statistics returned %d", resp.StatusCode)
	}
	var stats models.StatsResponse
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats.ActiveSessions != 1 || stats.MaxSessions != 5 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/questions", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("questions returned %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, _ = app.Test(req, 2000)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
}
