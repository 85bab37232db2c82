package models

import (
	"time"
)

// Phase represents a stage of the research session state machine.
// Transitions are monotonic except for the collapse to PhaseFailed,
// which is allowed from any non-terminal phase.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseCollecting Phase = "collecting"
	PhaseAnalyzing  Phase = "analyzing"
	PhaseReporting  Phase = "reporting"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase accepts no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// Valid reports whether the string is a known phase value.
func (p Phase) Valid() bool {
	switch p {
	case PhasePending, PhaseCollecting, PhaseAnalyzing, PhaseReporting, PhaseCompleted, PhaseFailed:
		return true
	}
	return false
}

// EventStatus is the status carried by a single progress event.
type EventStatus string

const (
	EventRunning   EventStatus = "running"
	EventSucceeded EventStatus = "succeeded"
	EventFailed    EventStatus = "failed"
)

// SourceStatus is the resolved outcome of one connector call.
type SourceStatus string

const (
	SourceSuccess     SourceStatus = "success"
	SourcePartial     SourceStatus = "partial"
	SourceFailed      SourceStatus = "failed"
	SourceRateLimited SourceStatus = "rate_limited"
	SourceDisabled    SourceStatus = "disabled"
)

// Usable reports whether the outcome produced data the analysis phase can
// work with.
func (s SourceStatus) Usable() bool {
	return s == SourceSuccess || s == SourcePartial
}

// ProgressEvent is one immutable entry in a session's progress log.
// SourceName is empty for orchestrator-level events.
type ProgressEvent struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Phase      Phase          `json:"phase"`
	SourceName string         `json:"source_name,omitempty"`
	Status     EventStatus    `json:"status"`
	Message    string         `json:"message"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// SourceResult is the always-resolved outcome of one connector call.
// Never mutated after creation.
type SourceResult struct {
	SourceName  string         `json:"source_name"`
	DisplayName string         `json:"display_name"`
	Status      SourceStatus   `json:"status"`
	ItemCount   int            `json:"item_count"`
	Message     string         `json:"message"`
	ErrorDetail string         `json:"error_detail,omitempty"`
	Degraded    bool           `json:"degraded,omitempty"`
	Items       []SourceItem   `json:"items,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

// SourceItem is a single normalized data point from a connector
// (a tweet, a post, a search hit, a trend entry).
type SourceItem struct {
	Title string         `json:"title,omitempty"`
	Text  string         `json:"text,omitempty"`
	URL   string         `json:"url,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// ResearchResult is the final structured report of a completed session.
type ResearchResult struct {
	Question         string                  `json:"question"`
	SearchQuery      string                  `json:"search_query"`
	ExecutiveSummary string                  `json:"executive_summary,omitempty"`
	KeyFindings      []string                `json:"key_findings,omitempty"`
	Recommendations  []string                `json:"recommendations,omitempty"`
	Analysis         string                  `json:"analysis,omitempty"`
	AnalysisDegraded bool                    `json:"analysis_degraded"`
	AnalysisProvider string                  `json:"analysis_provider,omitempty"`
	Report           string                  `json:"report,omitempty"`
	Disclaimer       string                  `json:"disclaimer"`
	BySource         map[string]SourceResult `json:"by_source"`
	FailedSources    []string                `json:"failed_sources"`
	TotalItems       int                     `json:"total_items"`
	ExecutionSeconds float64                 `json:"execution_time_seconds"`
}

// Session is one research job with its own phase, progress log and
// eventual result. The session store owns the authoritative record;
// everything handed outside the store is a snapshot copy.
type Session struct {
	ID              string          `json:"session_id"`
	ConversationID  string          `json:"conversation_id,omitempty"`
	Question        string          `json:"question"`
	SearchQuery     string          `json:"search_query"`
	Phase           Phase           `json:"phase"`
	ProgressPercent int             `json:"progress_percentage"`
	CurrentAgent    string          `json:"current_agent,omitempty"`
	ProgressLog     []ProgressEvent `json:"progress_log"`
	CreatedAt       time.Time       `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Result          *ResearchResult `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// SessionSummary is the read-only projection returned by list queries.
type SessionSummary struct {
	ID              string    `json:"session_id"`
	ConversationID  string    `json:"conversation_id,omitempty"`
	Question        string    `json:"question"`
	SearchQuery     string    `json:"search_query"`
	Phase           Phase     `json:"phase"`
	ProgressPercent int       `json:"progress_percentage"`
	CreatedAt       time.Time `json:"created_at"`
	ProgressCount   int       `json:"progress_count"`
	HasResult       bool      `json:"has_result"`
}

// ResearchQuestion is a preconfigured question from the catalog.
type ResearchQuestion struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Question    string   `json:"question" yaml:"question"`
	Focus       string   `json:"focus" yaml:"focus"`
	SearchTerms []string `json:"search_terms" yaml:"search_terms"`
}

// StartResearchRequest is the payload for POST /api/research/start.
// Either Question or QuestionID must be set.
type StartResearchRequest struct {
	Question       string `json:"question"`
	SearchQuery    string `json:"search_query"`
	QuestionID     string `json:"question_id"`
	ConversationID string `json:"conversation_id"`
	MaxResults     int    `json:"max_results"`
}

// StartResearchResponse is returned once a session has been admitted.
type StartResearchResponse struct {
	SessionID   string `json:"session_id"`
	Question    string `json:"question"`
	SearchQuery string `json:"search_query"`
	StatusURL   string `json:"status_url"`
	ResultURL   string `json:"result_url"`
}

// StatusResponse is the polling payload for GET /api/research/:id/status.
type StatusResponse struct {
	SessionID       string          `json:"session_id"`
	Phase           Phase           `json:"phase"`
	ProgressPercent int             `json:"progress_percentage"`
	CurrentAgent    string          `json:"current_agent,omitempty"`
	ProgressLog     []ProgressEvent `json:"progress_log"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// StatsResponse reports store occupancy for GET /api/research/statistics.
type StatsResponse struct {
	ActiveSessions  int           `json:"active_sessions"`
	MaxSessions     int           `json:"max_sessions"`
	ByPhase         map[Phase]int `json:"by_phase"`
	CapacityPercent float64       `json:"capacity_percentage"`
}
