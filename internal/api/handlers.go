// Package api provides HTTP handlers for commitAI endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/loop"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// DefaultRecentRunsLimit bounds the recent runs listing when no limit is given.
const DefaultRecentRunsLimit = 10

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "ok"}))
}

func (s *Server) runAutopilotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.runAutopilotHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.runAutopilotHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.RunAutopilotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.runAutopilotHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.runAutopilotHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	outcome, err := s.runGoal(r.Context(), req.UserID, req.GoalID, req.CheckinID, req.Signal())
	if err != nil {
		slog.Error("Server.runAutopilotHandler: run failed", "error", err, "userID", req.UserID, "goalID", req.GoalID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Autopilot run failed"))
		return
	}

	startAt := time.Now().In(s.sched.Location()).Add(time.Duration(req.StartInMinutes) * time.Minute)
	items := focusItems(req.GoalID, outcome.Result.Plan)
	blocks := s.buildSchedule(r.Context(), req.UserID, items, startAt)

	var events []models.EventRef
	if req.ScheduleCalendar {
		events = s.pushToCalendar(r.Context(), req.UserID, req.GoalID, outcome.Run.ID, blocks)
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"run_id":         outcome.Run.ID,
		"state":          outcome.Policy.State,
		"selected_agent": outcome.Policy.SelectedAgent,
		"constraints":    outcome.Policy.Constraints,
		"plan":           outcome.Result.Plan,
		"accepted":       outcome.Result.Accepted,
		"iterations":     outcome.Result.Iterations,
		"critic_trail":   outcome.Result.Trail,
		"tasks":          outcome.Tasks,
		"schedule":       blocks,
		"calendar":       events,
	}))
}

func (s *Server) planDayHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.planDayHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.planDayHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.PlanDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.planDayHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.planDayHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	sig := req.Signal()
	var goalPlans []loop.GoalPlan
	var goals []models.Goal
	var outcomes []runOutcome
	for _, goalID := range req.GoalIDs {
		outcome, err := s.runGoal(r.Context(), req.UserID, goalID, "", sig)
		if err != nil {
			slog.Error("Server.planDayHandler: goal run failed", "error", err, "userID", req.UserID, "goalID", goalID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Day planning failed"))
			return
		}
		outcomes = append(outcomes, outcome)
		goal, err := s.st.GetGoal(goalID)
		if err != nil || goal == nil {
			goal = &models.Goal{ID: goalID, Title: goalID}
		}
		goals = append(goals, *goal)
		goalPlans = append(goalPlans, loop.GoalPlan{Goal: *goal, Steps: outcome.Result.Plan.Steps})
	}

	items := loop.MergeGoalPlans(goalPlans, loop.DefaultMergeConfig())
	items = append(items, habitItems(goals)...)

	startAt := time.Now().In(s.sched.Location()).Add(time.Duration(req.StartInMinutes) * time.Minute)
	blocks := s.buildSchedule(r.Context(), req.UserID, items, startAt)

	var events []models.EventRef
	if req.ScheduleCalendar && len(outcomes) > 0 {
		events = s.pushToCalendar(r.Context(), req.UserID, req.GoalIDs[0], outcomes[0].Run.ID, blocks)
	}

	runs := make([]map[string]interface{}, 0, len(outcomes))
	for _, o := range outcomes {
		runs = append(runs, map[string]interface{}{
			"run_id":         o.Run.ID,
			"goal_id":        o.Run.GoalID,
			"state":          o.Policy.State,
			"selected_agent": o.Policy.SelectedAgent,
			"plan":           o.Result.Plan,
			"accepted":       o.Result.Accepted,
			"iterations":     o.Result.Iterations,
		})
	}

	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"runs":     runs,
		"items":    items,
		"schedule": blocks,
		"calendar": events,
	}))
}

func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.feedbackHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.feedbackHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.feedbackHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.feedbackHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	run, err := s.st.GetAgentRun(req.AgentRunID)
	if err != nil {
		slog.Error("Server.feedbackHandler: run lookup failed", "error", err, "runID", req.AgentRunID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record feedback"))
		return
	}
	if run == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Agent run not found"))
		return
	}

	fb := models.Feedback{
		ID:         uuid.NewString(),
		UserID:     req.UserID,
		AgentRunID: req.AgentRunID,
		Helpful:    req.Helpful,
		Comment:    req.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.st.SaveFeedback(fb); err != nil {
		slog.Error("Server.feedbackHandler: save failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record feedback"))
		return
	}

	// Refresh learned preferences right away so the next run sees them.
	updated, err := s.prefs.Upsert(req.UserID, run.GoalID)
	if err != nil {
		slog.Warn("Server.feedbackHandler: preference refresh failed", "error", err, "userID", req.UserID)
	}

	slog.Info("Server.feedbackHandler: feedback recorded", "userID", req.UserID, "runID", req.AgentRunID, "helpful", req.Helpful)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Feedback recorded", map[string]interface{}{
		"feedback_id": fb.ID,
		"prefs":       updated,
	}))
}

func (s *Server) recentRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	limit := DefaultRecentRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	runs, err := s.st.ListRecentRuns(userID, limit)
	if err != nil {
		slog.Error("Server.recentRunsHandler: listing failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list runs"))
		return
	}
	runIDs := make([]string, 0, len(runs))
	for _, run := range runs {
		runIDs = append(runIDs, run.ID)
	}
	latest, err := s.st.LatestFeedbackByRun(runIDs)
	if err != nil {
		slog.Warn("Server.recentRunsHandler: feedback join failed", "error", err, "userID", userID)
		latest = nil
	}
	entries := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		entry := map[string]interface{}{"run": run}
		if fb, ok := latest[run.ID]; ok {
			entry["feedback"] = fb
		}
		entries = append(entries, entry)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

func (s *Server) googleStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	connected, err := s.cal.Status(userID)
	if err != nil {
		slog.Error("Server.googleStatusHandler: status lookup failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check integration status"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"provider":  "google",
		"connected": connected,
	}))
}

func (s *Server) googleStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	authURL, err := s.cal.AuthURL(r.Context(), userID)
	if err != nil {
		slog.Error("Server.googleStartHandler: auth url failed", "error", err, "userID", userID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start Google authorization"))
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) googleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("state and code are required"))
		return
	}
	userID, err := s.cal.HandleCallback(r.Context(), state, code)
	if err != nil {
		slog.Error("Server.googleCallbackHandler: callback failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Google authorization failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Google Calendar connected", map[string]string{
		"user_id": userID,
	}))
}

func (s *Server) googleTestEventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("user_id is required"))
		return
	}
	start := time.Now().In(s.sched.Location()).Add(10 * time.Minute).Truncate(time.Minute)
	ref, err := s.cal.CreateEvent(r.Context(), req.UserID, models.ScheduledBlock{
		ItemID:  "test-event",
		Title:   "Test block",
		Details: "Connectivity check event.",
		Kind:    models.ItemKindFocus,
		Start:   start,
		End:     start.Add(15 * time.Minute),
	})
	if err != nil {
		slog.Error("Server.googleTestEventHandler: event creation failed", "error", err, "userID", req.UserID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create test event"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Test event created", ref))
}
