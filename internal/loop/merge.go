package loop

import (
	"fmt"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// Defaults for merging independent per-goal plans into one day plan.
const (
	DefaultPerGoalCap      = 2
	DefaultMergeBudgetMins = 90
	DefaultHardMaxSteps    = 10
)

// GoalPlan pairs a goal with its accepted plan steps.
type GoalPlan struct {
	Goal  models.Goal       `json:"goal"`
	Steps []models.PlanStep `json:"steps"`
}

// MergeConfig bounds the merged day plan.
type MergeConfig struct {
	PerGoalCap      int
	MaxTotalMinutes int
	HardMaxSteps    int
}

// DefaultMergeConfig returns the standard merge bounds.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		PerGoalCap:      DefaultPerGoalCap,
		MaxTotalMinutes: DefaultMergeBudgetMins,
		HardMaxSteps:    DefaultHardMaxSteps,
	}
}

// MergeGoalPlans interleaves per-goal step lists round-robin in original
// goal order into a single bounded list of focus items. Each bucket is
// first truncated to PerGoalCap steps; a step is appended only when its
// minutes fit the total budget and the hard step ceiling is not reached.
// A pass that appends nothing terminates the merge. Buckets are never
// mutated; order is stable for identical input ordering.
func MergeGoalPlans(plans []GoalPlan, cfg MergeConfig) []models.PlanItem {
	buckets := make([][]models.PlanStep, len(plans))
	for i, p := range plans {
		steps := p.Steps
		if len(steps) > cfg.PerGoalCap {
			steps = steps[:cfg.PerGoalCap]
		}
		buckets[i] = steps
	}

	taken := make([]int, len(plans))
	var items []models.PlanItem
	total := 0

	for {
		appended := false
		for i, bucket := range buckets {
			if taken[i] >= len(bucket) {
				continue
			}
			if len(items) >= cfg.HardMaxSteps {
				return items
			}
			step := bucket[taken[i]]
			if total+step.Minutes > cfg.MaxTotalMinutes {
				continue
			}
			taken[i]++
			total += step.Minutes
			items = append(items, models.PlanItem{
				ID:          fmt.Sprintf("%s-step-%d", plans[i].Goal.ID, taken[i]),
				Title:       step.Title,
				Minutes:     step.Minutes,
				Details:     step.Details,
				GoalIDs:     []string{plans[i].Goal.ID},
				Kind:        models.ItemKindFocus,
				Window:      models.WindowAny,
				Occurrences: 1,
			})
			appended = true
		}
		if !appended {
			return items
		}
	}
}
