package loop

import (
	"testing"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

func goalPlan(id string, minutes ...int) GoalPlan {
	gp := GoalPlan{Goal: models.Goal{ID: id, Title: "Goal " + id}}
	for i, m := range minutes {
		gp.Steps = append(gp.Steps, models.PlanStep{
			Title:   id + "-title-" + string(rune('1'+i)),
			Minutes: m,
			Details: "details",
		})
	}
	return gp
}

func TestMergeGoalPlansRoundRobinBudget(t *testing.T) {
	// A has steps of 25 and 30 minutes, B has 10 and 15, budget 60:
	// pass one takes A1 and B1, pass two rejects A2 (would exceed the
	// budget without consuming it) and takes B2, pass three appends
	// nothing and terminates.
	plans := []GoalPlan{goalPlan("A", 25, 30), goalPlan("B", 10, 15)}
	cfg := MergeConfig{PerGoalCap: 2, MaxTotalMinutes: 60, HardMaxSteps: 10}
	items := MergeGoalPlans(plans, cfg)

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	wantIDs := []string{"A-step-1", "B-step-1", "B-step-2"}
	total := 0
	for i, item := range items {
		if item.ID != wantIDs[i] {
			t.Errorf("position %d: got %s, want %s", i, item.ID, wantIDs[i])
		}
		total += item.Minutes
	}
	if total != 50 {
		t.Errorf("merged total = %d, want 50", total)
	}
}

func TestMergeGoalPlansPerGoalCap(t *testing.T) {
	plans := []GoalPlan{goalPlan("A", 5, 5, 5, 5)}
	items := MergeGoalPlans(plans, DefaultMergeConfig())
	if len(items) != DefaultPerGoalCap {
		t.Errorf("per-goal cap not applied: got %d items", len(items))
	}
}

func TestMergeGoalPlansHardMax(t *testing.T) {
	var plans []GoalPlan
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		plans = append(plans, goalPlan(id, 1, 1))
	}
	cfg := MergeConfig{PerGoalCap: 2, MaxTotalMinutes: 1000, HardMaxSteps: 10}
	items := MergeGoalPlans(plans, cfg)
	if len(items) != 10 {
		t.Errorf("hard max not enforced: got %d items", len(items))
	}
}

func TestMergeGoalPlansItemShape(t *testing.T) {
	items := MergeGoalPlans([]GoalPlan{goalPlan("A", 20)}, DefaultMergeConfig())
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.Kind != models.ItemKindFocus {
		t.Errorf("merged items must be focus, got %s", item.Kind)
	}
	if item.Window != models.WindowAny {
		t.Errorf("merged items default to any window, got %s", item.Window)
	}
	if len(item.GoalIDs) != 1 || item.GoalIDs[0] != "A" {
		t.Errorf("goal attribution lost: %v", item.GoalIDs)
	}
	if err := item.Validate(); err != nil {
		t.Errorf("merged item invalid: %v", err)
	}
}

func TestMergeGoalPlansStable(t *testing.T) {
	plans := []GoalPlan{goalPlan("A", 10, 10), goalPlan("B", 10, 10)}
	first := MergeGoalPlans(plans, DefaultMergeConfig())
	second := MergeGoalPlans(plans, DefaultMergeConfig())
	if len(first) != len(second) {
		t.Fatalf("non-deterministic length")
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("ordering differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestMergeGoalPlansEmptyInput(t *testing.T) {
	if items := MergeGoalPlans(nil, DefaultMergeConfig()); len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}
