package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trendscope/internal/models"
)

var (
	// ErrSessionNotFound is returned for ids the store does not hold.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionTerminal is returned for writes against a completed or
	// failed session. Terminal records are immutable until evicted.
	ErrSessionTerminal = errors.New("session is in a terminal phase")
)

// sessionRecord is the authoritative state for one session. The store is
// its only writer; everything handed out is a snapshot copy.
type sessionRecord struct {
	session models.Session
	cancel  context.CancelFunc
	slot    *Slot
}

// SessionStore is the single source of truth for research sessions.
// All state is in memory and lost on restart.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionRecord
	maxSessions int
}

// NewSessionStore creates an empty store. maxSessions is reported in
// Stats; admission itself is the AdmissionController's job.
func NewSessionStore(maxSessions int) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*sessionRecord),
		maxSessions: maxSessions,
	}
}

// Create registers a new pending session and returns its snapshot.
// The slot is held until Delete releases it.
func (s *SessionStore) Create(question, searchQuery, conversationID string, slot *Slot) models.Session {
	session := models.Session{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Question:       question,
		SearchQuery:    searchQuery,
		Phase:          models.PhasePending,
		CreatedAt:      time.Now().UTC(),
		ProgressLog:    []models.ProgressEvent{},
	}

	s.mu.Lock()
	s.sessions[session.ID] = &sessionRecord{session: session, slot: slot}
	count := len(s.sessions)
	s.mu.Unlock()

	log.Printf("✅ [STORE] session %s created (%d held)", session.ID, count)
	return cloneSession(&session)
}

// BindCancel attaches the orchestration cancel function to the session so
// Delete can stop an in-flight run.
func (s *SessionStore) BindCancel(id string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	rec.cancel = cancel
	return nil
}

// Mutation describes one transactional update. Nil fields are untouched.
type Mutation struct {
	Phase           *models.Phase
	ProgressPercent *int
	CurrentAgent    *string
	Event           *models.ProgressEvent
	Result          *models.ResearchResult
	Error           *string
}

// Update applies the mutation atomically. Writes against a terminal
// session return ErrSessionTerminal and change nothing. Progress is
// clamped monotonic non-decreasing; a transition into a terminal phase
// stamps CompletedAt exactly once.
func (s *SessionStore) Update(id string, m Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if rec.session.Phase.Terminal() {
		return ErrSessionTerminal
	}

	sess := &rec.session
	if m.Phase != nil {
		sess.Phase = *m.Phase
		if sess.Phase.Terminal() && sess.CompletedAt == nil {
			now := time.Now().UTC()
			sess.CompletedAt = &now
		}
	}
	if m.ProgressPercent != nil && *m.ProgressPercent > sess.ProgressPercent {
		p := *m.ProgressPercent
		if p > 100 {
			p = 100
		}
		sess.ProgressPercent = p
	}
	if m.CurrentAgent != nil {
		sess.CurrentAgent = *m.CurrentAgent
	}
	if m.Event != nil {
		ev := *m.Event
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		if ev.Phase == "" {
			ev.Phase = sess.Phase
		}
		sess.ProgressLog = append(sess.ProgressLog, ev)
	}
	if m.Result != nil {
		sess.Result = m.Result
	}
	if m.Error != nil {
		sess.Error = *m.Error
	}
	return nil
}

// Get returns a snapshot copy of the session. Later store writes never
// show through a snapshot already handed out.
func (s *SessionStore) Get(id string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return cloneSession(&rec.session), nil
}

// Delete removes the session, cancels any in-flight orchestration and
// releases the admission slot. This is the only path that frees capacity.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	rec, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	if rec.slot != nil {
		rec.slot.Release()
	}
	log.Printf("🗑️ [STORE] session %s deleted (%d held)", id, count)
	return nil
}

// List returns summaries of held sessions, newest first. Empty filter
// values match everything.
func (s *SessionStore) List(conversationID string, phase models.Phase) []models.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(s.sessions))
	for _, rec := range s.sessions {
		sess := &rec.session
		if conversationID != "" && sess.ConversationID != conversationID {
			continue
		}
		if phase != "" && sess.Phase != phase {
			continue
		}
		out = append(out, models.SessionSummary{
			ID:              sess.ID,
			ConversationID:  sess.ConversationID,
			Question:        sess.Question,
			SearchQuery:     sess.SearchQuery,
			Phase:           sess.Phase,
			ProgressPercent: sess.ProgressPercent,
			CreatedAt:       sess.CreatedAt,
			ProgressCount:   len(sess.ProgressLog),
			HasResult:       sess.Result != nil,
		})
	}
	sortSummaries(out)
	return out
}

// Stats reports occupancy against the configured maximum.
func (s *SessionStore) Stats() models.StatsResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPhase := make(map[models.Phase]int)
	for _, rec := range s.sessions {
		byPhase[rec.session.Phase]++
	}

	capacity := 0.0
	if s.maxSessions > 0 {
		capacity = float64(len(s.sessions)) / float64(s.maxSessions) * 100
	}
	return models.StatsResponse{
		ActiveSessions:  len(s.sessions),
		MaxSessions:     s.maxSessions,
		ByPhase:         byPhase,
		CapacityPercent: capacity,
	}
}

// Count returns the number of held sessions (active plus retained terminal).
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Expired returns ids eligible for eviction: any session older than
// maxAge, and terminal sessions completed longer than retention ago.
func (s *SessionStore) Expired(now time.Time, maxAge, retention time.Duration) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, rec := range s.sessions {
		sess := &rec.session
		if now.Sub(sess.CreatedAt) > maxAge {
			ids = append(ids, id)
			continue
		}
		if sess.Phase.Terminal() && sess.CompletedAt != nil && now.Sub(*sess.CompletedAt) > retention {
			ids = append(ids, id)
		}
	}
	return ids
}

func sortSummaries(out []models.SessionSummary) {
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
}

// cloneSession deep-copies the fields a caller could observe mutating.
func cloneSession(src *models.Session) models.Session {
	out := *src
	out.ProgressLog = make([]models.ProgressEvent, len(src.ProgressLog))
	copy(out.ProgressLog, src.ProgressLog)
	if src.CompletedAt != nil {
		t := *src.CompletedAt
		out.CompletedAt = &t
	}
	if src.Result != nil {
		r := *src.Result
		r.KeyFindings = append([]string(nil), src.Result.KeyFindings...)
		r.Recommendations = append([]string(nil), src.Result.Recommendations...)
		r.FailedSources = append([]string(nil), src.Result.FailedSources...)
		r.BySource = make(map[string]models.SourceResult, len(src.Result.BySource))
		for k, v := range src.Result.BySource {
			r.BySource[k] = v
		}
		out.Result = &r
	}
	return out
}
