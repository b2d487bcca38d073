// Package store provides storage backends for the commitAI autopilot.
//
// This file implements the Store interface over database/sql. The same
// query set serves both the SQLite and PostgreSQL backends; the postgres
// driver gets its positional placeholders rewritten at call time.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// sqlStore is the shared database/sql implementation behind SQLiteStore and
// PostgresStore.
type sqlStore struct {
	db       *sql.DB
	postgres bool
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *sqlStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) exec(query string, args ...interface{}) error {
	_, err := s.db.Exec(s.rebind(query), args...)
	return err
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) SaveGoal(g models.Goal) error {
	if s.postgres {
		return s.exec(`INSERT INTO goals (id, user_id, title, cadence_per_day) VALUES (?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, cadence_per_day = EXCLUDED.cadence_per_day`,
			g.ID, g.UserID, g.Title, g.CadencePerDay)
	}
	return s.exec(`INSERT OR REPLACE INTO goals (id, user_id, title, cadence_per_day) VALUES (?, ?, ?, ?)`,
		g.ID, g.UserID, g.Title, g.CadencePerDay)
}

func (s *sqlStore) GetGoal(id string) (*models.Goal, error) {
	row := s.db.QueryRow(s.rebind(`SELECT id, user_id, title, cadence_per_day FROM goals WHERE id = ?`), id)
	var g models.Goal
	if err := row.Scan(&g.ID, &g.UserID, &g.Title, &g.CadencePerDay); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return &g, nil
}

func (s *sqlStore) ListGoals(userID string) ([]models.Goal, error) {
	rows, err := s.db.Query(s.rebind(`SELECT id, user_id, title, cadence_per_day FROM goals WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()
	var out []models.Goal
	for rows.Next() {
		var g models.Goal
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &g.CadencePerDay); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveCheckin(c models.Checkin) error {
	return s.exec(`INSERT INTO checkins (id, user_id, goal_id, checkin_date, energy, workload, blockers, completed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.GoalID, c.CheckinDate, c.Energy, c.Workload, c.Blockers, c.Completed)
}

func (s *sqlStore) ListCheckins(userID, goalID string, limit int) ([]models.Checkin, error) {
	rows, err := s.db.Query(s.rebind(`SELECT id, user_id, goal_id, checkin_date, energy, workload, blockers, completed
		FROM checkins WHERE user_id = ? AND goal_id = ? ORDER BY checkin_date DESC LIMIT ?`), userID, goalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkins: %w", err)
	}
	defer rows.Close()
	var out []models.Checkin
	for rows.Next() {
		var c models.Checkin
		var blockers sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.GoalID, &c.CheckinDate, &c.Energy, &c.Workload, &blockers, &c.Completed); err != nil {
			return nil, err
		}
		c.Blockers = blockers.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveAgentRun(run models.AgentRun) error {
	return s.exec(`INSERT INTO agent_runs (id, user_id, goal_id, checkin_id, state, selected_agent, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.GoalID, run.CheckinID, run.State, run.SelectedAgent, run.Summary, run.CreatedAt)
}

func scanRuns(rows *sql.Rows) ([]models.AgentRun, error) {
	var out []models.AgentRun
	for rows.Next() {
		var r models.AgentRun
		var checkinID, summary sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.GoalID, &checkinID, &r.State, &r.SelectedAgent, &summary, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CheckinID = checkinID.String
		r.Summary = summary.String
		out = append(out, r)
	}
	return out, rows.Err()
}

const runColumns = `id, user_id, goal_id, checkin_id, state, selected_agent, summary, created_at`

func (s *sqlStore) GetAgentRun(id string) (*models.AgentRun, error) {
	rows, err := s.db.Query(s.rebind(`SELECT `+runColumns+` FROM agent_runs WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent run: %w", err)
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (s *sqlStore) ListAgentRuns(userID, goalID string, limit int) ([]models.AgentRun, error) {
	rows, err := s.db.Query(s.rebind(`SELECT `+runColumns+` FROM agent_runs
		WHERE user_id = ? AND goal_id = ? ORDER BY created_at DESC LIMIT ?`), userID, goalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *sqlStore) ListRecentRuns(userID string, limit int) ([]models.AgentRun, error) {
	rows, err := s.db.Query(s.rebind(`SELECT `+runColumns+` FROM agent_runs
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *sqlStore) SaveTasks(tasks []models.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin task insert: %w", err)
	}
	defer tx.Rollback()
	stmt := s.rebind(`INSERT INTO tasks (id, user_id, goal_id, agent_run_id, title, details, est_minutes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, t := range tasks {
		if _, err := tx.Exec(stmt, t.ID, t.UserID, t.GoalID, t.AgentRunID, t.Title, t.Details, t.EstMinutes, t.Status, t.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqlStore) ListTasks(agentRunID string) ([]models.Task, error) {
	rows, err := s.db.Query(s.rebind(`SELECT id, user_id, goal_id, agent_run_id, title, details, est_minutes, status, created_at
		FROM tasks WHERE agent_run_id = ? ORDER BY created_at`), agentRunID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()
	var out []models.Task
	for rows.Next() {
		var t models.Task
		var details sql.NullString
		var est sql.NullInt64
		if err := rows.Scan(&t.ID, &t.UserID, &t.GoalID, &t.AgentRunID, &t.Title, &details, &est, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Details = details.String
		t.EstMinutes = int(est.Int64)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqlStore) SaveFeedback(fb models.Feedback) error {
	return s.exec(`INSERT INTO feedback (id, user_id, agent_run_id, helpful, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fb.ID, fb.UserID, fb.AgentRunID, fb.Helpful, fb.Comment, fb.CreatedAt)
}

func scanFeedback(rows *sql.Rows) ([]models.Feedback, error) {
	var out []models.Feedback
	for rows.Next() {
		var f models.Feedback
		var comment sql.NullString
		if err := rows.Scan(&f.ID, &f.UserID, &f.AgentRunID, &f.Helpful, &comment, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Comment = comment.String
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListFeedback(userID string, limit int) ([]models.Feedback, error) {
	rows, err := s.db.Query(s.rebind(`SELECT id, user_id, agent_run_id, helpful, comment, created_at
		FROM feedback WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()
	return scanFeedback(rows)
}

func (s *sqlStore) LatestFeedbackByRun(runIDs []string) (map[string]models.Feedback, error) {
	latest := make(map[string]models.Feedback)
	if len(runIDs) == 0 {
		return latest, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(runIDs)), ", ")
	args := make([]interface{}, len(runIDs))
	for i, id := range runIDs {
		args[i] = id
	}
	rows, err := s.db.Query(s.rebind(`SELECT id, user_id, agent_run_id, helpful, comment, created_at
		FROM feedback WHERE agent_run_id IN (`+placeholders+`) ORDER BY created_at DESC`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback by run: %w", err)
	}
	defer rows.Close()
	all, err := scanFeedback(rows)
	if err != nil {
		return nil, err
	}
	for _, f := range all {
		if _, ok := latest[f.AgentRunID]; !ok {
			latest[f.AgentRunID] = f
		}
	}
	return latest, nil
}

func (s *sqlStore) ListUserGoalsWithFeedbackSince(since time.Time) ([]models.UserGoal, error) {
	rows, err := s.db.Query(s.rebind(`SELECT DISTINCT f.user_id, r.goal_id
		FROM feedback f JOIN agent_runs r ON r.id = f.agent_run_id
		WHERE f.created_at >= ?`), since)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback users: %w", err)
	}
	defer rows.Close()
	var out []models.UserGoal
	for rows.Next() {
		var ug models.UserGoal
		if err := rows.Scan(&ug.UserID, &ug.GoalID); err != nil {
			return nil, err
		}
		out = append(out, ug)
	}
	return out, rows.Err()
}

func (s *sqlStore) GetUserPrefs(userID, goalID string) (*models.UserPrefs, error) {
	row := s.db.QueryRow(s.rebind(`SELECT user_id, goal_id, pref_max_total_minutes, pref_max_steps,
		pref_blocker_first, pref_more_specific, helpful_rate_last30, agent_helpful_rate, avoid_agents, updated_at
		FROM user_prefs WHERE user_id = ? AND goal_id = ?`), userID, goalID)
	var p models.UserPrefs
	var maxTotal, maxSteps sql.NullInt64
	var helpfulRate sql.NullFloat64
	var agentRate, avoid sql.NullString
	err := row.Scan(&p.UserID, &p.GoalID, &maxTotal, &maxSteps, &p.PrefBlockerFirst, &p.PrefMoreSpecific,
		&helpfulRate, &agentRate, &avoid, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user prefs: %w", err)
	}
	if maxTotal.Valid {
		v := int(maxTotal.Int64)
		p.PrefMaxTotalMinutes = &v
	}
	if maxSteps.Valid {
		v := int(maxSteps.Int64)
		p.PrefMaxSteps = &v
	}
	if helpfulRate.Valid {
		v := helpfulRate.Float64
		p.HelpfulRateLast30 = &v
	}
	if agentRate.Valid && agentRate.String != "" {
		if err := json.Unmarshal([]byte(agentRate.String), &p.AgentHelpfulRate); err != nil {
			slog.Warn("sqlStore.GetUserPrefs: malformed agent_helpful_rate, ignoring", "error", err)
		}
	}
	if avoid.Valid && avoid.String != "" {
		if err := json.Unmarshal([]byte(avoid.String), &p.AvoidAgents); err != nil {
			slog.Warn("sqlStore.GetUserPrefs: malformed avoid_agents, ignoring", "error", err)
		}
	}
	return &p, nil
}

func (s *sqlStore) UpsertUserPrefs(p models.UserPrefs) error {
	agentRate, err := json.Marshal(p.AgentHelpfulRate)
	if err != nil {
		return fmt.Errorf("failed to encode agent_helpful_rate: %w", err)
	}
	avoid, err := json.Marshal(p.AvoidAgents)
	if err != nil {
		return fmt.Errorf("failed to encode avoid_agents: %w", err)
	}
	var maxTotal, maxSteps interface{}
	if p.PrefMaxTotalMinutes != nil {
		maxTotal = *p.PrefMaxTotalMinutes
	}
	if p.PrefMaxSteps != nil {
		maxSteps = *p.PrefMaxSteps
	}
	var helpfulRate interface{}
	if p.HelpfulRateLast30 != nil {
		helpfulRate = *p.HelpfulRateLast30
	}
	if s.postgres {
		return s.exec(`INSERT INTO user_prefs (user_id, goal_id, pref_max_total_minutes, pref_max_steps,
			pref_blocker_first, pref_more_specific, helpful_rate_last30, agent_helpful_rate, avoid_agents, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, goal_id) DO UPDATE SET
				pref_max_total_minutes = EXCLUDED.pref_max_total_minutes,
				pref_max_steps = EXCLUDED.pref_max_steps,
				pref_blocker_first = EXCLUDED.pref_blocker_first,
				pref_more_specific = EXCLUDED.pref_more_specific,
				helpful_rate_last30 = EXCLUDED.helpful_rate_last30,
				agent_helpful_rate = EXCLUDED.agent_helpful_rate,
				avoid_agents = EXCLUDED.avoid_agents,
				updated_at = EXCLUDED.updated_at`,
			p.UserID, p.GoalID, maxTotal, maxSteps, p.PrefBlockerFirst, p.PrefMoreSpecific,
			helpfulRate, string(agentRate), string(avoid), p.UpdatedAt)
	}
	return s.exec(`INSERT OR REPLACE INTO user_prefs (user_id, goal_id, pref_max_total_minutes, pref_max_steps,
		pref_blocker_first, pref_more_specific, helpful_rate_last30, agent_helpful_rate, avoid_agents, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.GoalID, maxTotal, maxSteps, p.PrefBlockerFirst, p.PrefMoreSpecific,
		helpfulRate, string(agentRate), string(avoid), p.UpdatedAt)
}

func (s *sqlStore) SaveAction(a models.Action) error {
	return s.exec(`INSERT INTO actions (id, user_id, goal_id, agent_run_id, kind, payload, status, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.GoalID, a.AgentRunID, a.Kind, a.Payload, a.Status, a.Result, a.CreatedAt)
}

func (s *sqlStore) SaveIntervention(iv models.Intervention) error {
	steps, err := json.Marshal(iv.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode intervention steps: %w", err)
	}
	return s.exec(`INSERT INTO interventions (id, user_id, goal_id, agent_run_id, steps, total_minutes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iv.ID, iv.UserID, iv.GoalID, iv.AgentRunID, string(steps), iv.TotalMinutes, iv.CreatedAt)
}

func (s *sqlStore) SaveOAuthState(st models.OAuthState) error {
	return s.exec(`INSERT INTO oauth_states (state, user_id, provider, created_at) VALUES (?, ?, ?, ?)`,
		st.State, st.UserID, st.Provider, st.CreatedAt)
}

// ConsumeOAuthState returns the stored state row and marks it used.
// Already-used or unknown states yield an error.
func (s *sqlStore) ConsumeOAuthState(state, provider string) (*models.OAuthState, error) {
	row := s.db.QueryRow(s.rebind(`SELECT state, user_id, provider, created_at, used_at
		FROM oauth_states WHERE state = ? AND provider = ?`), state, provider)
	var st models.OAuthState
	var usedAt sql.NullTime
	if err := row.Scan(&st.State, &st.UserID, &st.Provider, &st.CreatedAt, &usedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("oauth state not found")
		}
		return nil, fmt.Errorf("failed to look up oauth state: %w", err)
	}
	if usedAt.Valid {
		return nil, fmt.Errorf("oauth state already used")
	}
	if err := s.exec(`UPDATE oauth_states SET used_at = ? WHERE state = ? AND provider = ?`,
		time.Now().UTC(), state, provider); err != nil {
		return nil, fmt.Errorf("failed to mark oauth state used: %w", err)
	}
	return &st, nil
}

func (s *sqlStore) GetCalendarIntegration(userID, provider string) (*models.CalendarIntegration, error) {
	row := s.db.QueryRow(s.rebind(`SELECT user_id, provider, access_token, refresh_token, expires_at, calendar_id, updated_at
		FROM calendar_integrations WHERE user_id = ? AND provider = ?`), userID, provider)
	var ci models.CalendarIntegration
	var access, refresh, calID sql.NullString
	var expires sql.NullTime
	err := row.Scan(&ci.UserID, &ci.Provider, &access, &refresh, &expires, &calID, &ci.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar integration: %w", err)
	}
	ci.AccessToken = access.String
	ci.RefreshToken = refresh.String
	ci.CalendarID = calID.String
	ci.ExpiresAt = expires.Time
	return &ci, nil
}

func (s *sqlStore) UpsertCalendarIntegration(ci models.CalendarIntegration) error {
	existing, err := s.GetCalendarIntegration(ci.UserID, ci.Provider)
	if err != nil {
		return err
	}
	if existing != nil {
		// refresh tokens are only returned on first consent; keep the stored one
		if ci.RefreshToken == "" {
			ci.RefreshToken = existing.RefreshToken
		}
		if ci.CalendarID == "" {
			ci.CalendarID = existing.CalendarID
		}
	}
	if s.postgres {
		return s.exec(`INSERT INTO calendar_integrations (user_id, provider, access_token, refresh_token, expires_at, calendar_id, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_id, provider) DO UPDATE SET
				access_token = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				expires_at = EXCLUDED.expires_at,
				calendar_id = EXCLUDED.calendar_id,
				updated_at = EXCLUDED.updated_at`,
			ci.UserID, ci.Provider, ci.AccessToken, ci.RefreshToken, ci.ExpiresAt, ci.CalendarID, ci.UpdatedAt)
	}
	return s.exec(`INSERT OR REPLACE INTO calendar_integrations (user_id, provider, access_token, refresh_token, expires_at, calendar_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ci.UserID, ci.Provider, ci.AccessToken, ci.RefreshToken, ci.ExpiresAt, ci.CalendarID, ci.UpdatedAt)
}
