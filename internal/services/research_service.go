package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"trendscope/internal/config"
	"trendscope/internal/connectors"
	"trendscope/internal/logging"
	"trendscope/internal/models"
)

// ErrInvalidRequest is returned when a start request names no question
// and no known catalog id.
var ErrInvalidRequest = errors.New("invalid research request")

const (
	agentCollection = "data_collection"
	agentAnalysis   = "analysis"
	agentReporting  = "report_generation"
)

// ResearchService orchestrates research sessions: admission, the
// collection fan-out, the analysis chain and report assembly. All session
// state flows through the store; the service keeps none of its own.
type ResearchService struct {
	cfg       *config.Config
	store     *SessionStore
	admission *AdmissionController
	gateway   *connectors.Gateway
	catalog   *QuestionCatalog
	analyzers *AnalyzerChain
	metrics   *Metrics
}

// NewResearchService wires the orchestrator.
func NewResearchService(cfg *config.Config, store *SessionStore, admission *AdmissionController, gateway *connectors.Gateway, catalog *QuestionCatalog, analyzers *AnalyzerChain, metrics *Metrics) *ResearchService {
	return &ResearchService{
		cfg:       cfg,
		store:     store,
		admission: admission,
		gateway:   gateway,
		catalog:   catalog,
		analyzers: analyzers,
		metrics:   metrics,
	}
}

// Start validates the request, admits it against capacity and launches
// the orchestration in the background. It returns as soon as the session
// exists; progress is observed by polling.
func (s *ResearchService) Start(req models.StartResearchRequest) (models.StartResearchResponse, error) {
	question := strings.TrimSpace(req.Question)
	searchQuery := strings.TrimSpace(req.SearchQuery)

	if req.QuestionID != "" {
		preset, ok := s.catalog.Get(req.QuestionID)
		if !ok {
			return models.StartResearchResponse{}, fmt.Errorf("%w: unknown question_id %q", ErrInvalidRequest, req.QuestionID)
		}
		question = preset.Question
		if searchQuery == "" {
			searchQuery = strings.Join(preset.SearchTerms, " ")
		}
	}
	if question == "" {
		return models.StartResearchResponse{}, fmt.Errorf("%w: question or question_id is required", ErrInvalidRequest)
	}
	if searchQuery == "" {
		searchQuery = question
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = s.cfg.DefaultMaxResults
	}

	slot, err := s.admission.TryAdmit()
	if err != nil {
		s.metrics.AdmissionRejections.Inc()
		return models.StartResearchResponse{}, err
	}

	session := s.store.Create(question, searchQuery, req.ConversationID, slot)
	s.metrics.SessionsStarted.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ResearchTimeout)
	if err := s.store.BindCancel(session.ID, cancel); err != nil {
		// Deleted between Create and BindCancel; the slot is already released.
		cancel()
		return models.StartResearchResponse{}, err
	}

	go s.run(ctx, cancel, session.ID, session.ConversationID, question, searchQuery, maxResults)

	return models.StartResearchResponse{
		SessionID:   session.ID,
		Question:    question,
		SearchQuery: searchQuery,
		StatusURL:   "/api/research/" + session.ID + "/status",
		ResultURL:   "/api/research/" + session.ID + "/result",
	}, nil
}

// run drives one session through the phase machine. Every store write
// tolerates ErrSessionNotFound (deleted mid-run) and ErrSessionTerminal
// (late writes after a failure race); both mean stop quietly.
func (s *ResearchService) run(ctx context.Context, cancel context.CancelFunc, id, conversationID, question, searchQuery string, maxResults int) {
	defer cancel()
	logger := logging.WithSession(id, conversationID)
	started := time.Now()

	total := s.gateway.SourceCount()
	logger.Info("research started", "sources", total, "query", searchQuery)

	if !s.apply(id, phaseMutation(models.PhaseCollecting, 0, agentCollection,
		fmt.Sprintf("starting data collection across %d sources", total))) {
		return
	}

	var resolved atomic.Int64
	results := s.gateway.CollectAll(ctx, searchQuery, maxResults, func(res models.SourceResult) {
		s.metrics.SourceOutcomes.WithLabelValues(res.SourceName, string(res.Status)).Inc()
		logging.WithSource(logger, res.SourceName).Debug("source resolved",
			"status", res.Status, "items", res.ItemCount)

		n := int(resolved.Add(1))
		progress := 0
		if total > 0 {
			progress = n * 50 / total
		}
		status := models.EventSucceeded
		if !res.Status.Usable() {
			status = models.EventFailed
		}
		s.apply(id, Mutation{
			ProgressPercent: &progress,
			Event: &models.ProgressEvent{
				Phase:      models.PhaseCollecting,
				SourceName: res.SourceName,
				Status:     status,
				Message:    res.Message,
				Detail:     map[string]any{"status": res.Status, "items": res.ItemCount},
			},
		})
	})

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.fail(id, logger, started, "research timed out before data collection finished")
		}
		return
	}

	usable := countUsable(results)
	if usable < s.cfg.MinSuccessfulSources {
		s.fail(id, logger, started, fmt.Sprintf(
			"insufficient data collected: %d of %d sources returned data (minimum %d)",
			usable, total, s.cfg.MinSuccessfulSources))
		return
	}

	if !s.apply(id, phaseMutation(models.PhaseAnalyzing, 55, agentAnalysis,
		fmt.Sprintf("analyzing data from %d sources", usable))) {
		return
	}

	analysis, provider, degraded, err := s.analyze(ctx, question, searchQuery, results)
	if err != nil {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.fail(id, logger, started, "research timed out during analysis")
			}
			return
		}
		s.fail(id, logger, started, "analysis failed: "+err.Error())
		return
	}

	if !s.apply(id, phaseMutation(models.PhaseReporting, 75, agentReporting, "generating final report")) {
		return
	}

	report := analysis
	if !degraded {
		text, _, rerr := s.analyzers.Generate(ctx, BuildReportPrompt(question, analysis))
		switch {
		case rerr == nil:
			report = text
		case ctx.Err() != nil:
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.fail(id, logger, started, "research timed out during report generation")
			}
			return
		case s.cfg.AllowPlaceholderAnalysis:
			logger.Warn("report generation degraded to raw analysis", "error", rerr)
			degraded = true
		default:
			s.fail(id, logger, started, "report generation failed: "+rerr.Error())
			return
		}
	}

	result := BuildResult(question, searchQuery, results, analysis, provider, degraded, report, time.Since(started))

	completed := models.PhaseCompleted
	progress := 100
	agent := ""
	s.apply(id, Mutation{
		Phase:           &completed,
		ProgressPercent: &progress,
		CurrentAgent:    &agent,
		Result:          result,
		Event: &models.ProgressEvent{
			Phase:   models.PhaseCompleted,
			Status:  models.EventSucceeded,
			Message: fmt.Sprintf("research completed: %d items from %d sources", result.TotalItems, usable),
		},
	})

	s.metrics.SessionsCompleted.Inc()
	s.metrics.ResearchDuration.Observe(time.Since(started).Seconds())
	logger.Info("research completed", "items", result.TotalItems, "seconds", result.ExecutionSeconds)
}

// analyze runs the provider chain, falling back to the deterministic
// placeholder when allowed. Returns (text, provider, degraded, error).
func (s *ResearchService) analyze(ctx context.Context, question, searchQuery string, results []models.SourceResult) (string, string, bool, error) {
	prompt := BuildAnalysisPrompt(question, searchQuery, results)
	text, provider, err := s.analyzers.Generate(ctx, prompt)
	if err == nil {
		return text, provider, false, nil
	}
	if ctx.Err() != nil {
		return "", "", false, err
	}
	if s.cfg.AllowPlaceholderAnalysis {
		return PlaceholderAnalysis(question, results), "placeholder", true, nil
	}
	return "", "", false, err
}

// apply writes a mutation, reporting whether the run should continue.
func (s *ResearchService) apply(id string, m Mutation) bool {
	err := s.store.Update(id, m)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionTerminal):
		return false
	default:
		return false
	}
}

// fail moves the session to FAILED with the given reason.
func (s *ResearchService) fail(id string, logger *slog.Logger, started time.Time, reason string) {
	failed := models.PhaseFailed
	agent := ""
	s.apply(id, Mutation{
		Phase:        &failed,
		CurrentAgent: &agent,
		Error:        &reason,
		Event: &models.ProgressEvent{
			Phase:   models.PhaseFailed,
			Status:  models.EventFailed,
			Message: reason,
		},
	})
	s.metrics.SessionsFailed.Inc()
	s.metrics.ResearchDuration.Observe(time.Since(started).Seconds())
	logger.Warn("research failed", "reason", reason)
}

func phaseMutation(phase models.Phase, progress int, agent, message string) Mutation {
	return Mutation{
		Phase:           &phase,
		ProgressPercent: &progress,
		CurrentAgent:    &agent,
		Event: &models.ProgressEvent{
			Phase:   phase,
			Status:  models.EventRunning,
			Message: message,
		},
	}
}
