// Autopilot composition: policy routing, the refinement loop, persistence
// and the deterministic scheduling of accepted plans.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/calendar"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/loop"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/policy"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/prefs"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/scheduler"
)

// Habit placement defaults for goals with a daily cadence above one.
const (
	habitMinutes    = 10
	habitMinGapMins = 90
)

// runOutcome is one goal's trip through routing, refinement and persistence.
type runOutcome struct {
	Run    models.AgentRun `json:"run"`
	Policy policy.Policy   `json:"policy"`
	Result loop.Result     `json:"result"`
	Tasks  []models.Task   `json:"tasks"`
}

// runGoal routes the check-in, derives the policy, runs the refinement loop
// for one goal and persists the run with its tasks. The returned outcome
// carries the full critic trail for the response body.
func (s *Server) runGoal(ctx context.Context, userID, goalID, checkinID string, sig models.CheckinSignal) (runOutcome, error) {
	goal, err := s.st.GetGoal(goalID)
	if err != nil {
		return runOutcome{}, fmt.Errorf("failed to load goal: %w", err)
	}
	if goal == nil {
		// First contact with this goal; keep a minimal row so later
		// listings and feedback sweeps can find it.
		goal = &models.Goal{ID: goalID, UserID: userID, Title: goalID}
		if err := s.st.SaveGoal(*goal); err != nil {
			return runOutcome{}, fmt.Errorf("failed to save goal: %w", err)
		}
	}

	userPrefs, err := s.prefs.LoadOrInit(userID, goalID)
	if err != nil {
		return runOutcome{}, fmt.Errorf("failed to load preferences: %w", err)
	}

	route := policy.Route(sig)
	pol := policy.Apply(sig, route, userPrefs.Snapshot())

	memory, err := prefs.BuildMemory(s.st, userID, goalID)
	if err != nil {
		slog.Warn("Server.runGoal: memory build failed, planning without history",
			"userID", userID, "goalID", goalID, "error", err)
		memory = ""
	}

	res, err := s.loop.Run(ctx, pol, loop.Context{Goal: goal, Today: sig, Memory: memory})
	if err != nil {
		return runOutcome{}, fmt.Errorf("refinement loop failed: %w", err)
	}

	now := time.Now().UTC()
	if checkinID == "" {
		checkinID = uuid.NewString()
		err = s.st.SaveCheckin(models.Checkin{
			ID:          checkinID,
			UserID:      userID,
			GoalID:      goalID,
			CheckinDate: now.Format("2006-01-02"),
			Energy:      sig.Energy,
			Workload:    sig.Workload,
			Blockers:    sig.Blockers,
			Completed:   sig.Completed,
		})
		if err != nil {
			return runOutcome{}, fmt.Errorf("failed to save checkin: %w", err)
		}
	}

	run := models.AgentRun{
		ID:            uuid.NewString(),
		UserID:        userID,
		GoalID:        goalID,
		CheckinID:     checkinID,
		State:         pol.State,
		SelectedAgent: pol.SelectedAgent,
		Summary:       res.Plan.Summary,
		CreatedAt:     now,
	}
	if err := s.st.SaveAgentRun(run); err != nil {
		return runOutcome{}, fmt.Errorf("failed to save agent run: %w", err)
	}

	tasks := make([]models.Task, 0, len(res.Plan.Steps))
	for _, step := range res.Plan.Steps {
		tasks = append(tasks, models.Task{
			ID:         uuid.NewString(),
			UserID:     userID,
			GoalID:     goalID,
			AgentRunID: run.ID,
			Title:      step.Title,
			Details:    step.Details,
			EstMinutes: step.Minutes,
			Status:     "todo",
			CreatedAt:  now,
		})
	}
	if err := s.st.SaveTasks(tasks); err != nil {
		return runOutcome{}, fmt.Errorf("failed to save tasks: %w", err)
	}

	if res.Accepted {
		err = s.st.SaveIntervention(models.Intervention{
			ID:           uuid.NewString(),
			UserID:       userID,
			GoalID:       goalID,
			AgentRunID:   run.ID,
			Steps:        res.Plan.Steps,
			TotalMinutes: res.Plan.TotalMinutes,
			CreatedAt:    now,
		})
		if err != nil {
			return runOutcome{}, fmt.Errorf("failed to save intervention: %w", err)
		}
	}

	slog.Info("Server.runGoal: refinement complete",
		"userID", userID, "goalID", goalID, "runID", run.ID,
		"state", pol.State, "agent", pol.SelectedAgent,
		"accepted", res.Accepted, "iterations", res.Iterations)

	return runOutcome{Run: run, Policy: pol, Result: res, Tasks: tasks}, nil
}

// focusItems converts accepted plan steps into schedulable focus items.
func focusItems(goalID string, plan models.PlanCandidate) []models.PlanItem {
	items := make([]models.PlanItem, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		items = append(items, models.PlanItem{
			ID:          fmt.Sprintf("%s-step-%d", goalID, i+1),
			Title:       step.Title,
			Minutes:     step.Minutes,
			Details:     step.Details,
			GoalIDs:     []string{goalID},
			Kind:        models.ItemKindFocus,
			Window:      models.WindowAny,
			Occurrences: 1,
		})
	}
	return items
}

// habitItems builds recurring check-in items for goals whose cadence asks
// for more than one touch per day.
func habitItems(goals []models.Goal) []models.PlanItem {
	var items []models.PlanItem
	for _, g := range goals {
		if g.CadencePerDay < 2 {
			continue
		}
		items = append(items, models.PlanItem{
			ID:            g.ID + "-habit",
			Title:         "Check in: " + g.Title,
			Minutes:       habitMinutes,
			Details:       "Short recurring touch to keep the goal moving.",
			GoalIDs:       []string{g.ID},
			Kind:          models.ItemKindHabit,
			Window:        models.WindowAny,
			Occurrences:   g.CadencePerDay,
			MinGapMinutes: habitMinGapMins,
		})
	}
	return items
}

// buildSchedule lays the items on the timeline around the user's calendar.
// An unreachable or unconnected calendar degrades to an empty busy set so
// planning still succeeds offline.
func (s *Server) buildSchedule(ctx context.Context, userID string, items []models.PlanItem, startAt time.Time) []models.ScheduledBlock {
	loc := s.sched.Location()
	dayStart, dayEnd := scheduler.DayBounds(startAt, loc)
	events, err := s.cal.ListEvents(ctx, userID, dayStart, dayEnd)
	if err != nil {
		if err != calendar.ErrNotConnected {
			slog.Warn("Server.buildSchedule: calendar unavailable, scheduling against empty busy set",
				"userID", userID, "error", err)
		}
		events = nil
	}
	busy := scheduler.NewBusyBuilder(scheduler.DefaultBuffer, loc).Build(events, startAt)
	return s.sched.Schedule(startAt, items, busy)
}

// pushToCalendar clears previously created blocks for the day and writes the
// new ones. Event creation failures are logged per block; the schedule
// itself is already final.
func (s *Server) pushToCalendar(ctx context.Context, userID, goalID, runID string, blocks []models.ScheduledBlock) []models.EventRef {
	if len(blocks) == 0 {
		return nil
	}
	loc := s.sched.Location()
	dayStart, dayEnd := scheduler.DayBounds(blocks[0].Start, loc)
	if _, err := s.cal.DeleteOwnedEventsInRange(ctx, userID, dayStart, dayEnd); err != nil {
		slog.Warn("Server.pushToCalendar: cleanup failed", "userID", userID, "error", err)
	}

	refs := make([]models.EventRef, 0, len(blocks))
	for _, block := range blocks {
		ref, err := s.cal.CreateEvent(ctx, userID, block)
		if err != nil {
			slog.Warn("Server.pushToCalendar: event creation failed",
				"userID", userID, "title", block.Title, "error", err)
			continue
		}
		refs = append(refs, ref)
	}

	payload := fmt.Sprintf(`{"blocks":%d,"created":%d}`, len(blocks), len(refs))
	err := s.st.SaveAction(models.Action{
		ID:         uuid.NewString(),
		UserID:     userID,
		GoalID:     goalID,
		AgentRunID: runID,
		Kind:       "calendar_schedule",
		Payload:    payload,
		Status:     "done",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("Server.pushToCalendar: failed to record action", "userID", userID, "error", err)
	}
	return refs
}
