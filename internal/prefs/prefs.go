// Package prefs learns per-user planning preferences from historical
// feedback and derives the policy caps consumed by the policy engine.
package prefs

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
)

// Lookback limits for profile computation.
const (
	feedbackLookback = 30
	runLookback      = 20
	// avoidAgentThreshold marks agents whose helpful rate falls below it.
	avoidAgentThreshold = 0.40
)

// Profile summarizes how a user has reacted to past plans.
type Profile struct {
	HelpfulRateLast30      *float64           `json:"helpful_rate_last30,omitempty"`
	AgentHelpfulRate       map[string]float64 `json:"agent_helpful_rate"`
	PrefersShortPlans      bool               `json:"prefers_short_plans"`
	WantsMoreSpecificSteps bool               `json:"wants_more_specific_steps"`
	PrefersBlockerFirst    bool               `json:"prefers_blocker_first"`
}

// keyword groups scanned in feedback comments
var (
	shortKeywords    = []string{"too long", "shorter", "too much", "long plan"}
	specificKeywords = []string{"generic", "more specific", "too vague", "concrete"}
	blockerKeywords  = []string{"blocker", "blockers", "stuck", "can't start", "unblocked"}
)

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// ComputeProfile derives a preference profile from recent feedback and the
// runs that feedback refers to.
func ComputeProfile(feedback []models.Feedback, runs []models.AgentRun) Profile {
	runByID := make(map[string]models.AgentRun, len(runs))
	for _, r := range runs {
		runByID[r.ID] = r
	}

	var helpfulCount, ratedCount int
	agentHelpful := make(map[string][]bool)
	var comments strings.Builder
	for _, f := range feedback {
		ratedCount++
		if f.Helpful {
			helpfulCount++
		}
		if run, ok := runByID[f.AgentRunID]; ok {
			agent := string(run.SelectedAgent)
			agentHelpful[agent] = append(agentHelpful[agent], f.Helpful)
		}
		comments.WriteString(strings.ToLower(f.Comment))
		comments.WriteByte(' ')
	}

	p := Profile{AgentHelpfulRate: make(map[string]float64)}
	if ratedCount > 0 {
		rate := float64(helpfulCount) / float64(ratedCount)
		p.HelpfulRateLast30 = &rate
	}
	for agent, vals := range agentHelpful {
		helpful := 0
		for _, v := range vals {
			if v {
				helpful++
			}
		}
		p.AgentHelpfulRate[agent] = float64(helpful) / float64(len(vals))
	}

	text := comments.String()
	p.PrefersShortPlans = containsAny(text, shortKeywords)
	p.WantsMoreSpecificSteps = containsAny(text, specificKeywords)
	p.PrefersBlockerFirst = containsAny(text, blockerKeywords)
	return p
}

// DerivePrefs turns a profile into the stored preference row.
func DerivePrefs(userID, goalID string, p Profile) models.UserPrefs {
	maxTotal := 60
	maxSteps := 5
	if p.PrefersShortPlans {
		maxTotal = 40
		maxSteps = 4
	}

	var avoid []string
	for agent, rate := range p.AgentHelpfulRate {
		if rate < avoidAgentThreshold {
			avoid = append(avoid, agent)
		}
	}

	return models.UserPrefs{
		UserID:              userID,
		GoalID:              goalID,
		PrefMaxTotalMinutes: &maxTotal,
		PrefMaxSteps:        &maxSteps,
		PrefBlockerFirst:    p.PrefersBlockerFirst,
		PrefMoreSpecific:    p.WantsMoreSpecificSteps,
		HelpfulRateLast30:   p.HelpfulRateLast30,
		AgentHelpfulRate:    p.AgentHelpfulRate,
		AvoidAgents:         avoid,
		UpdatedAt:           time.Now().UTC(),
	}
}

// Service computes and persists learned preferences through the store.
type Service struct {
	st store.Store
}

// NewService creates a preference service over the given store.
func NewService(st store.Store) *Service {
	return &Service{st: st}
}

// Upsert recomputes the user's profile for a goal and persists the derived
// preference row, returning it.
func (s *Service) Upsert(userID, goalID string) (*models.UserPrefs, error) {
	feedback, err := s.st.ListFeedback(userID, feedbackLookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback: %w", err)
	}
	runs, err := s.st.ListAgentRuns(userID, goalID, runLookback)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	derived := DerivePrefs(userID, goalID, ComputeProfile(feedback, runs))
	if err := s.st.UpsertUserPrefs(derived); err != nil {
		return nil, fmt.Errorf("failed to store prefs: %w", err)
	}
	slog.Debug("Service.Upsert: preferences recomputed", "user_id", userID, "goal_id", goalID)
	return &derived, nil
}

// LoadOrInit returns the stored preferences for a user and goal, computing
// and persisting them on first use.
func (s *Service) LoadOrInit(userID, goalID string) (*models.UserPrefs, error) {
	stored, err := s.st.GetUserPrefs(userID, goalID)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}
	return s.Upsert(userID, goalID)
}
