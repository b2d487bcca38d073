package jobs

import (
	"testing"
	"time"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/prefs"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/store"
)

func TestRefreshPreferencesSweep(t *testing.T) {
	st := store.NewInMemoryStore()
	now := time.Now().UTC()
	st.SaveAgentRun(models.AgentRun{
		ID: "r1", UserID: "u1", GoalID: "g1",
		SelectedAgent: models.AgentDeepWork, CreatedAt: now,
	})
	st.SaveFeedback(models.Feedback{
		ID: "f1", UserID: "u1", AgentRunID: "r1",
		Helpful: false, Comment: "too long", CreatedAt: now,
	})

	r := NewRunner(st, prefs.NewService(st))
	r.RefreshPreferences()

	p, err := st.GetUserPrefs("u1", "g1")
	if err != nil || p == nil {
		t.Fatalf("prefs not refreshed: %v", err)
	}
	if *p.PrefMaxTotalMinutes != 40 {
		t.Errorf("learned cap = %d, want 40", *p.PrefMaxTotalMinutes)
	}
}

func TestRefreshPreferencesIgnoresOldFeedback(t *testing.T) {
	st := store.NewInMemoryStore()
	old := time.Now().UTC().Add(-30 * 24 * time.Hour)
	st.SaveAgentRun(models.AgentRun{ID: "r1", UserID: "u1", GoalID: "g1", CreatedAt: old})
	st.SaveFeedback(models.Feedback{ID: "f1", UserID: "u1", AgentRunID: "r1", CreatedAt: old})

	r := NewRunner(st, prefs.NewService(st))
	r.RefreshPreferences()

	p, err := st.GetUserPrefs("u1", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Errorf("stale feedback should not trigger refresh: %+v", p)
	}
}

func TestRunnerStartRejectsBadSpec(t *testing.T) {
	st := store.NewInMemoryStore()
	r := NewRunner(st, prefs.NewService(st), WithRefreshSpec("not a cron spec"))
	if err := r.Start(); err == nil {
		t.Error("invalid cron spec should fail")
		r.Stop()
	}
}

func TestRunnerStartAndStop(t *testing.T) {
	st := store.NewInMemoryStore()
	r := NewRunner(st, prefs.NewService(st))
	if err := r.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Stop()
}
