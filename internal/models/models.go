// Package models defines the core data structures for the commitAI autopilot.
//
// It includes plan, scheduling, policy, and persistence types shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// ItemKind defines how a plan item is placed on the timeline.
type ItemKind string

const (
	// ItemKindFocus is a single contiguous work block.
	ItemKindFocus ItemKind = "focus"
	// ItemKindHabit is a short recurring check-in spread across the day.
	ItemKindHabit ItemKind = "habit"
)

// WindowName names a coarse day-part used to bound candidate placement.
type WindowName string

const (
	WindowMorning   WindowName = "morning"
	WindowMidday    WindowName = "midday"
	WindowAfternoon WindowName = "afternoon"
	WindowEvening   WindowName = "evening"
	WindowAny       WindowName = "any"
)

// AgentState classifies the user's current situation.
type AgentState string

const (
	StateNormal   AgentState = "NORMAL"
	StateRecovery AgentState = "RECOVERY"
	StateAtRisk   AgentState = "AT_RISK"
	StateIncident AgentState = "INCIDENT"
)

// AgentName selects which planning agent handles a check-in.
type AgentName string

const (
	AgentDeepWork    AgentName = "deep_work"
	AgentMaintenance AgentName = "maintenance"
	AgentRecovery    AgentName = "recovery"
	AgentTriage      AgentName = "triage"
)

// Validation constants for plan content.
const (
	// MinPlanSteps is the minimum number of steps an acceptable plan must have.
	MinPlanSteps = 2
	// MinStepMinutes is the smallest duration a normalized step may carry.
	MinStepMinutes = 1
	// MaxStepMinutes is the largest duration a normalized step may carry.
	MaxStepMinutes = 90
	// DefaultStepMinutes is assigned to steps whose duration cannot be recovered.
	DefaultStepMinutes = 10
	// MaxStepTitleLength bounds titles derived from free-form generator output.
	MaxStepTitleLength = 80
)

// Error variables for better error handling and testability
var (
	ErrMissingSteps       = errors.New("plan candidate has no step list")
	ErrEmptyUserID        = errors.New("user_id cannot be empty")
	ErrEmptyGoalID        = errors.New("goal_id cannot be empty")
	ErrInvalidEnergy      = errors.New("energy must be between 1 and 5")
	ErrInvalidWorkload    = errors.New("workload must be between 1 and 5")
	ErrInvalidMinutes     = errors.New("item minutes must be positive")
	ErrMissingGoalIDs     = errors.New("item must reference at least one goal")
	ErrInvalidWindow      = errors.New("invalid placement window")
	ErrFocusOccurrences   = errors.New("focus items must have exactly one occurrence")
	ErrInvalidOccurrences = errors.New("occurrences must be at least 1")
	ErrNegativeGap        = errors.New("min_gap_minutes cannot be negative")
	ErrEndBeforeStart     = errors.New("end must be after start")
)

// IsValidWindow checks if the given window name is supported.
func IsValidWindow(w WindowName) bool {
	switch w {
	case WindowMorning, WindowMidday, WindowAfternoon, WindowEvening, WindowAny:
		return true
	default:
		return false
	}
}

// PlanStep is one step of a candidate plan as produced by the generator.
type PlanStep struct {
	Title   string `json:"title"`
	Minutes int    `json:"minutes"`
	Details string `json:"details"`
}

// PlanCandidate is a structurally validated plan returned by the generator
// or reviser. TotalMinutes is always recomputed as the sum of step minutes;
// the generator's own figure is never trusted.
type PlanCandidate struct {
	Summary      string     `json:"summary"`
	Steps        []PlanStep `json:"steps"`
	TotalMinutes int        `json:"total_minutes"`
}

// RecomputeTotal overwrites TotalMinutes with the sum of step minutes.
func (p *PlanCandidate) RecomputeTotal() {
	total := 0
	for _, s := range p.Steps {
		total += s.Minutes
	}
	p.TotalMinutes = total
}

// CriticVerdict is the outcome of a rule-based or external plan critique.
type CriticVerdict struct {
	OK             bool     `json:"ok"`
	Issues         []string `json:"issues"`
	SuggestedEdits []string `json:"suggested_edits"`
}

// PolicyConstraints are the hard numeric bounds a plan must satisfy.
// MinTotalMinutes never exceeds MaxTotalMinutes.
type PolicyConstraints struct {
	MaxSteps        int `json:"max_steps"`
	MinTotalMinutes int `json:"min_total_minutes"`
	MaxTotalMinutes int `json:"max_total_minutes"`
}

// RouteDecision selects the agent and state for a check-in. It is a pure
// function of the check-in signal and is recomputed per request.
type RouteDecision struct {
	State         AgentState `json:"state"`
	SelectedAgent AgentName  `json:"selected_agent"`
}

// CheckinSignal is the per-request snapshot of the user's day.
type CheckinSignal struct {
	Energy    int    `json:"energy"`
	Workload  int    `json:"workload"`
	Blockers  string `json:"blockers,omitempty"`
	Completed bool   `json:"completed"`
}

// Validate checks the check-in signal bounds.
func (c CheckinSignal) Validate() error {
	if c.Energy < 1 || c.Energy > 5 {
		return ErrInvalidEnergy
	}
	if c.Workload < 1 || c.Workload > 5 {
		return ErrInvalidWorkload
	}
	return nil
}

// PlanItem is a time-boxed activity tied to one or more goals, placed on the
// timeline by the deterministic scheduler. Items are immutable once produced.
type PlanItem struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Minutes       int        `json:"minutes"`
	Details       string     `json:"details"`
	GoalIDs       []string   `json:"goal_ids"`
	Kind          ItemKind   `json:"kind"`
	Window        WindowName `json:"window"`
	Occurrences   int        `json:"occurrences,omitempty"`
	MinGapMinutes int        `json:"min_gap_minutes,omitempty"`
}

/// Validate checks the item invariants: positive duration, at least one goal,
// a known window, and focus implying a single occurrence.
func (i PlanItem) Validate() error {
	if i.Minutes <= 0 {
		return ErrInvalidMinutes
	}
	if len(i.GoalIDs) == 0 {
		return ErrMissingGoalIDs
	}
	if !IsValidWindow(i.Window) {
		return ErrInvalidWindow
	}
	if i.Occurrences < 1 {
		return ErrInvalidOccurrences
	}
	if i.Kind == ItemKindFocus && i.Occurrences != 1 {
		return ErrFocusOccurrences
	}
	if i.MinGapMinutes < 0 {
		return ErrNegativeGap
	}
	return nil
}

// ScheduledBlock is one placed occurrence of a plan item. A habit item with
// N occurrences yields N blocks sharing ItemID and Title.
type ScheduledBlock struct {
	ItemID  string    `json:"item_id"`
	Title   string    `json:"title"`
	Details string    `json:"details"`
	GoalIDs []string  `json:"goal_ids"`
	Kind    ItemKind  `json:"kind"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// RawEvent is an externally owned calendar entry. Timed events carry Start
// and End; all-day events carry Date instead. Private carries the provider's
// private extended properties used to recognize self-created events.
type RawEvent struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Start   time.Time         `json:"start,omitempty"`
	End     time.Time         `json:"end,omitempty"`
	AllDay  bool              `json:"all_day,omitempty"`
	Date    string            `json:"date,omitempty"`
	Private map[string]string `json:"private,omitempty"`
	Link    string            `json:"html_link,omitempty"`
}

// OwnershipTagKey marks calendar events created by this system.
const OwnershipTagKey = "commitai"

// OwnedTitlePrefix is the reserved title prefix for self-created events,
// kept for events created before private tagging existed.
const OwnedTitlePrefix = "commitAI:"

// OwnedBySelf reports whether the event was created by this system.
func (e RawEvent) OwnedBySelf() bool {
	if e.Private != nil && e.Private[OwnershipTagKey] == "1" {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(e.Title), OwnedTitlePrefix)
}

// EventRef identifies a created calendar event.
type EventRef struct {
	ID   string `json:"id"`
	Link string `json:"html_link,omitempty"`
}

// PrefSnapshot is the learned-preference input to the policy engine.
// Caps are pointers so "no learned cap" is distinguishable from zero.
type PrefSnapshot struct {
	PrefersShortPlans      bool `json:"prefers_short_plans"`
	PrefersBlockerFirst    bool `json:"prefers_blocker_first"`
	WantsMoreSpecificSteps bool `json:"wants_more_specific_steps"`
	PrefMaxSteps           *int `json:"pref_max_steps,omitempty"`
	PrefMaxTotalMinutes    *int `json:"pref_max_total_minutes,omitempty"`
}

// Goal is a user goal the autopilot plans against.
type Goal struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id,omitempty"`
	Title         string `json:"title"`
	CadencePerDay int    `json:"cadence_per_day,omitempty"`
}

// Checkin is one persisted daily check-in row.
type Checkin struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	GoalID      string `json:"goal_id"`
	CheckinDate string `json:"checkin_date"`
	Energy      int    `json:"energy"`
	Workload    int    `json:"workload"`
	Blockers    string `json:"blockers,omitempty"`
	Completed   bool   `json:"completed"`
}

// AgentRun records one completed refinement run.
type AgentRun struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	GoalID        string     `json:"goal_id"`
	CheckinID     string     `json:"checkin_id,omitempty"`
	State         AgentState `json:"state"`
	SelectedAgent AgentName  `json:"selected_agent"`
	Summary       string     `json:"summary"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Task is one actionable step persisted from an accepted plan.
type Task struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	GoalID     string    `json:"goal_id"`
	AgentRunID string    `json:"agent_run_id"`
	Title      string    `json:"title"`
	Details    string    `json:"details"`
	EstMinutes int       `json:"est_minutes"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Feedback is a thumbs-up/down on an agent run, optionally with a comment.
type Feedback struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AgentRunID string    `json:"agent_run_id"`
	Helpful    bool      `json:"helpful"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserPrefs is the stored, learned preference row per user and goal.
type UserPrefs struct {
	UserID              string             `json:"user_id"`
	GoalID              string             `json:"goal_id"`
	PrefMaxTotalMinutes *int               `json:"pref_max_total_minutes,omitempty"`
	PrefMaxSteps        *int               `json:"pref_max_steps,omitempty"`
	PrefBlockerFirst    bool               `json:"pref_blocker_first"`
	PrefMoreSpecific    bool               `json:"pref_more_specific"`
	HelpfulRateLast30   *float64           `json:"helpful_rate_last30,omitempty"`
	AgentHelpfulRate    map[string]float64 `json:"agent_helpful_rate,omitempty"`
	AvoidAgents         []string           `json:"avoid_agents,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Snapshot derives the policy-engine view of the stored preferences.
func (p UserPrefs) Snapshot() PrefSnapshot {
	short := p.PrefMaxTotalMinutes != nil && *p.PrefMaxTotalMinutes <= 40
	return PrefSnapshot{
		PrefersShortPlans:      short,
		PrefersBlockerFirst:    p.PrefBlockerFirst,
		WantsMoreSpecificSteps: p.PrefMoreSpecific,
		PrefMaxSteps:           p.PrefMaxSteps,
		PrefMaxTotalMinutes:    p.PrefMaxTotalMinutes,
	}
}

// Action is one row in the side-effect ledger. Payload and Result hold
// JSON-encoded detail blobs.
type Action struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	GoalID     string    `json:"goal_id"`
	AgentRunID string    `json:"agent_run_id"`
	Kind       string    `json:"kind"`
	Payload    string    `json:"payload,omitempty"`
	Status     string    `json:"status"`
	Result     string    `json:"result,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Intervention records the accepted plan attached to a run.
type Intervention struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	GoalID       string     `json:"goal_id"`
	AgentRunID   string     `json:"agent_run_id"`
	Steps        []PlanStep `json:"steps"`
	TotalMinutes int        `json:"total_minutes"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CalendarIntegration stores provider OAuth credentials per user.
type CalendarIntegration struct {
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	CalendarID   string    `json:"calendar_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OAuthState is a single-use token for the OAuth authorization flow.
type OAuthState struct {
	State     string    `json:"state"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	UsedAt    time.Time `json:"used_at,omitempty"`
}

// UserGoal pairs a user with one of their goals.
type UserGoal struct {
	UserID string `json:"user_id"`
	GoalID string `json:"goal_id"`
}

// RunAutopilotRequest is the payload for the run_autopilot endpoint.
type RunAutopilotRequest struct {
	UserID           string `json:"user_id"`
	GoalID           string `json:"goal_id"`
	CheckinID        string `json:"checkin_id,omitempty"`
	Energy           int    `json:"energy"`
	Workload         int    `json:"workload"`
	Blockers         string `json:"blockers,omitempty"`
	Completed        bool   `json:"completed"`
	ScheduleCalendar bool   `json:"schedule_calendar"`
	StartInMinutes   int    `json:"start_in_minutes"`
}

// Validate checks required fields and signal bounds.
func (r RunAutopilotRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.GoalID) == "" {
		return ErrEmptyGoalID
	}
	if r.StartInMinutes < 0 || r.StartInMinutes > 180 {
		return errors.New("start_in_minutes must be between 0 and 180")
	}
	return r.Signal().Validate()
}

// Signal extracts the check-in signal from the request.
func (r RunAutopilotRequest) Signal() CheckinSignal {
	return CheckinSignal{
		Energy:    r.Energy,
		Workload:  r.Workload,
		Blockers:  r.Blockers,
		Completed: r.Completed,
	}
}

// PlanDayRequest is the payload for the plan_day endpoint. It plans several
// goals at once and merges the accepted plans into one day plan.
type PlanDayRequest struct {
	UserID           string   `json:"user_id"`
	GoalIDs          []string `json:"goal_ids"`
	Energy           int      `json:"energy"`
	Workload         int      `json:"workload"`
	Blockers         string   `json:"blockers,omitempty"`
	Completed        bool     `json:"completed"`
	ScheduleCalendar bool     `json:"schedule_calendar"`
	StartInMinutes   int      `json:"start_in_minutes"`
}

// Validate checks required fields and signal bounds.
func (r PlanDayRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if len(r.GoalIDs) == 0 {
		return errors.New("goal_ids cannot be empty")
	}
	if r.StartInMinutes < 0 || r.StartInMinutes > 180 {
		return errors.New("start_in_minutes must be between 0 and 180")
	}
	return r.Signal().Validate()
}

// Signal extracts the check-in signal from the request.
func (r PlanDayRequest) Signal() CheckinSignal {
	return CheckinSignal{
		Energy:    r.Energy,
		Workload:  r.Workload,
		Blockers:  r.Blockers,
		Completed: r.Completed,
	}
}

// FeedbackRequest is the payload for the feedback endpoint.
type FeedbackRequest struct {
	UserID     string `json:"user_id"`
	AgentRunID string `json:"agent_run_id"`
	Helpful    bool   `json:"helpful"`
	Comment    string `json:"comment,omitempty"`
}

// Validate checks required feedback fields.
func (r FeedbackRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	if strings.TrimSpace(r.AgentRunID) == "" {
		return errors.New("agent_run_id cannot be empty")
	}
	return nil
}
