// Package store provides storage backends for the commitAI autopilot.
//
// It includes an in-memory store for tests and single-process use, plus
// SQLite and PostgreSQL backends with embedded migrations.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Store is the persistence surface consumed by the API, preference and job
// layers. Implementations must be safe for concurrent use.
type Store interface {
	Close() error

	SaveGoal(g models.Goal) error
	GetGoal(id string) (*models.Goal, error)
	ListGoals(userID string) ([]models.Goal, error)

	SaveCheckin(c models.Checkin) error
	ListCheckins(userID, goalID string, limit int) ([]models.Checkin, error)

	SaveAgentRun(run models.AgentRun) error
	GetAgentRun(id string) (*models.AgentRun, error)
	ListAgentRuns(userID, goalID string, limit int) ([]models.AgentRun, error)
	ListRecentRuns(userID string, limit int) ([]models.AgentRun, error)

	SaveTasks(tasks []models.Task) error
	ListTasks(agentRunID string) ([]models.Task, error)

	SaveFeedback(fb models.Feedback) error
	ListFeedback(userID string, limit int) ([]models.Feedback, error)
	LatestFeedbackByRun(runIDs []string) (map[string]models.Feedback, error)
	ListUserGoalsWithFeedbackSince(since time.Time) ([]models.UserGoal, error)

	GetUserPrefs(userID, goalID string) (*models.UserPrefs, error)
	UpsertUserPrefs(p models.UserPrefs) error

	SaveAction(a models.Action) error
	SaveIntervention(iv models.Intervention) error

	SaveOAuthState(st models.OAuthState) error
	ConsumeOAuthState(state, provider string) (*models.OAuthState, error)

	GetCalendarIntegration(userID, provider string) (*models.CalendarIntegration, error)
	UpsertCalendarIntegration(ci models.CalendarIntegration) error
}

// InMemoryStore is a mutex-guarded in-memory Store implementation.
type InMemoryStore struct {
	mu            sync.RWMutex
	goals         map[string]models.Goal
	checkins      []models.Checkin
	runs          []models.AgentRun
	tasks         []models.Task
	feedback      []models.Feedback
	prefs         map[string]models.UserPrefs
	actions       []models.Action
	interventions []models.Intervention
	oauthStates   map[string]models.OAuthState
	integrations  map[string]models.CalendarIntegration
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		goals:        make(map[string]models.Goal),
		prefs:        make(map[string]models.UserPrefs),
		oauthStates:  make(map[string]models.OAuthState),
		integrations: make(map[string]models.CalendarIntegration),
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) SaveGoal(g models.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[g.ID] = g
	return nil
}

func (s *InMemoryStore) GetGoal(id string) (*models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *InMemoryStore) ListGoals(userID string) ([]models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Goal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) SaveCheckin(c models.Checkin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkins = append(s.checkins, c)
	return nil
}

func (s *InMemoryStore) ListCheckins(userID, goalID string, limit int) ([]models.Checkin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Checkin
	for i := len(s.checkins) - 1; i >= 0 && len(out) < limit; i-- {
		c := s.checkins[i]
		if c.UserID == userID && c.GoalID == goalID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveAgentRun(run models.AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *InMemoryStore) GetAgentRun(id string) (*models.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.ID == id {
			run := r
			return &run, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListAgentRuns(userID, goalID string, limit int) ([]models.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRuns(s.runs, func(r models.AgentRun) bool {
		return r.UserID == userID && r.GoalID == goalID
	}, limit), nil
}

func (s *InMemoryStore) ListRecentRuns(userID string, limit int) ([]models.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRuns(s.runs, func(r models.AgentRun) bool {
		return r.UserID == userID
	}, limit), nil
}

// filterRuns returns matching runs newest-first, bounded by limit.
func filterRuns(runs []models.AgentRun, match func(models.AgentRun) bool, limit int) []models.AgentRun {
	out := make([]models.AgentRun, 0, limit)
	sorted := make([]models.AgentRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	for _, r := range sorted {
		if len(out) >= limit {
			break
		}
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *InMemoryStore) SaveTasks(tasks []models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, tasks...)
	return nil
}

func (s *InMemoryStore) ListTasks(agentRunID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.AgentRunID == agentRunID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveFeedback(fb models.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
	return nil
}

func (s *InMemoryStore) ListFeedback(userID string, limit int) ([]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sorted := make([]models.Feedback, 0, len(s.feedback))
	for _, f := range s.feedback {
		if f.UserID == userID {
			sorted = append(sorted, f)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (s *InMemoryStore) LatestFeedbackByRun(runIDs []string) (map[string]models.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(runIDs))
	for _, id := range runIDs {
		wanted[id] = true
	}
	latest := make(map[string]models.Feedback)
	for _, f := range s.feedback {
		if !wanted[f.AgentRunID] {
			continue
		}
		cur, ok := latest[f.AgentRunID]
		if !ok || f.CreatedAt.After(cur.CreatedAt) {
			latest[f.AgentRunID] = f
		}
	}
	return latest, nil
}

func (s *InMemoryStore) ListUserGoalsWithFeedbackSince(since time.Time) ([]models.UserGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runGoal := make(map[string]models.AgentRun, len(s.runs))
	for _, r := range s.runs {
		runGoal[r.ID] = r
	}
	seen := make(map[models.UserGoal]bool)
	var out []models.UserGoal
	for _, f := range s.feedback {
		if f.CreatedAt.Before(since) {
			continue
		}
		run, ok := runGoal[f.AgentRunID]
		if !ok {
			continue
		}
		ug := models.UserGoal{UserID: f.UserID, GoalID: run.GoalID}
		if !seen[ug] {
			seen[ug] = true
			out = append(out, ug)
		}
	}
	return out, nil
}

func prefsKey(userID, goalID string) string {
	return userID + "\x00" + goalID
}

func (s *InMemoryStore) GetUserPrefs(userID, goalID string) (*models.UserPrefs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[prefsKey(userID, goalID)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) UpsertUserPrefs(p models.UserPrefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[prefsKey(p.UserID, p.GoalID)] = p
	return nil
}

func (s *InMemoryStore) SaveAction(a models.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
	return nil
}

func (s *InMemoryStore) SaveIntervention(iv models.Intervention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interventions = append(s.interventions, iv)
	return nil
}

func (s *InMemoryStore) SaveOAuthState(st models.OAuthState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthStates[st.State] = st
	return nil
}

// ConsumeOAuthState returns the stored state row and marks it used.
// Already-used or unknown states yield an error.
func (s *InMemoryStore) ConsumeOAuthState(state, provider string) (*models.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.oauthStates[state]
	if !ok || st.Provider != provider {
		return nil, fmt.Errorf("oauth state not found")
	}
	if !st.UsedAt.IsZero() {
		return nil, fmt.Errorf("oauth state already used")
	}
	st.UsedAt = time.Now().UTC()
	s.oauthStates[state] = st
	return &st, nil
}

func (s *InMemoryStore) GetCalendarIntegration(userID, provider string) (*models.CalendarIntegration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ci, ok := s.integrations[prefsKey(userID, provider)]
	if !ok {
		return nil, nil
	}
	return &ci, nil
}

func (s *InMemoryStore) UpsertCalendarIntegration(ci models.CalendarIntegration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.integrations[prefsKey(ci.UserID, ci.Provider)]
	if ok {
		// keep fields the caller left empty
		if ci.RefreshToken == "" {
			ci.RefreshToken = existing.RefreshToken
		}
		if ci.CalendarID == "" {
			ci.CalendarID = existing.CalendarID
		}
	}
	s.integrations[prefsKey(ci.UserID, ci.Provider)] = ci
	return nil
}
