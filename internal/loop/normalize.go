// Package loop drives candidate plans through rule-based and external
// critique until the policy constraints are satisfied or the revision
// budget is exhausted.
//
// This file is the schema boundary for generator output: the accepted
// candidate shapes are enumerated here, and everything else is either
// coerced in one explicit normalization stage or rejected as a decode
// error.
package loop

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
)

// Defaults applied during step coercion.
const (
	defaultStepTitle   = "Step"
	defaultStepDetails = "Do the step."
	defaultSummary     = "Quick plan to move the goal forward."
)

// rawCandidate is the top-level candidate shape. A single "plan" wrapper
// is the only other accepted variant.
type rawCandidate struct {
	Summary string            `json:"summary"`
	Steps   []json.RawMessage `json:"steps"`
	Plan    *struct {
		Summary string            `json:"summary"`
		Steps   []json.RawMessage `json:"steps"`
	} `json:"plan"`
}

// idealStep is the contract shape for a step.
type idealStep struct {
	Title   *string `json:"title"`
	Minutes *int    `json:"minutes"`
	Details *string `json:"details"`
}

// actionStep is the common wrong shape {"step": 1, "action": "..."}.
type actionStep struct {
	Action  *string `json:"action"`
	Minutes *int    `json:"minutes"`
}

// NormalizeCandidate decodes generator output into a PlanCandidate.
// Unknown step shapes are coerced to a default title/duration; a payload
// with no step list at all is a hard error. TotalMinutes is always
// recomputed from the steps, never taken from the generator.
func NormalizeCandidate(raw []byte) (models.PlanCandidate, error) {
	var rc rawCandidate
	if err := json.Unmarshal(raw, &rc); err != nil {
		return models.PlanCandidate{}, fmt.Errorf("planner/reviser: invalid JSON: %w", err)
	}

	summary := rc.Summary
	steps := rc.Steps
	if steps == nil && rc.Plan != nil {
		summary = rc.Plan.Summary
		steps = rc.Plan.Steps
	}
	if steps == nil {
		return models.PlanCandidate{}, models.ErrMissingSteps
	}

	out := models.PlanCandidate{Summary: strings.TrimSpace(summary)}
	if out.Summary == "" {
		out.Summary = defaultSummary
	}
	for _, rs := range steps {
		out.Steps = append(out.Steps, normalizeStep(rs))
	}
	out.RecomputeTotal()
	return out, nil
}

// normalizeStep coerces one raw step into the contract shape.
func normalizeStep(raw json.RawMessage) models.PlanStep {
	var ideal idealStep
	if err := json.Unmarshal(raw, &ideal); err == nil &&
		ideal.Title != nil && ideal.Minutes != nil && ideal.Details != nil {
		return models.PlanStep{
			Title:   clampTitle(*ideal.Title),
			Minutes: clampMinutes(*ideal.Minutes),
			Details: *ideal.Details,
		}
	}

	var action actionStep
	if err := json.Unmarshal(raw, &action); err == nil && action.Action != nil {
		text := strings.TrimSpace(*action.Action)
		minutes := models.DefaultStepMinutes
		if action.Minutes != nil {
			minutes = *action.Minutes
		}
		return models.PlanStep{
			Title:   clampTitle(text),
			Minutes: clampMinutes(minutes),
			Details: orDefault(text, defaultStepDetails),
		}
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		// fallback for anything else: use the raw JSON as text
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	return models.PlanStep{
		Title:   clampTitle(text),
		Minutes: models.DefaultStepMinutes,
		Details: orDefault(text, defaultStepDetails),
	}
}

// NormalizeVerdict decodes critic output, requiring all contract keys.
func NormalizeVerdict(raw []byte) (models.CriticVerdict, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return models.CriticVerdict{}, fmt.Errorf("critic: invalid JSON: %w", err)
	}
	for _, k := range []string{"ok", "issues", "suggested_edits"} {
		if _, present := keys[k]; !present {
			return models.CriticVerdict{}, fmt.Errorf("critic: missing %q", k)
		}
	}
	var v models.CriticVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return models.CriticVerdict{}, fmt.Errorf("critic: malformed verdict: %w", err)
	}
	return v, nil
}

func clampTitle(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultStepTitle
	}
	if len(s) > models.MaxStepTitleLength {
		return s[:models.MaxStepTitleLength]
	}
	return s
}

func clampMinutes(m int) int {
	if m < models.MinStepMinutes {
		return models.MinStepMinutes
	}
	if m > models.MaxStepMinutes {
		return models.MaxStepMinutes
	}
	return m
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
