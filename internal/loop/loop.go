package loop

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/policy"
)

// MaxRevisions bounds the number of revise calls per run. This is a
// correctness bound, not a resilience retry policy.
const MaxRevisions = 3

// Context is the planning context handed to the generator collaborator.
type Context struct {
	Goal   *models.Goal         `json:"goal,omitempty"`
	Today  models.CheckinSignal `json:"today"`
	Memory string               `json:"memory,omitempty"`
}

// Generator is the external plan generator/critic/reviser collaborator.
// Implementations must return structurally normalized candidates; their
// total_minutes is still never trusted.
type Generator interface {
	GeneratePlan(ctx context.Context, pol policy.Policy, pctx Context) (models.PlanCandidate, error)
	CritiquePlan(ctx context.Context, pol policy.Policy, pctx Context, plan models.PlanCandidate) (models.CriticVerdict, error)
	RevisePlan(ctx context.Context, pol policy.Policy, pctx Context, issues []string) (models.PlanCandidate, error)
}

// Iteration records one critique round for the critic trail.
type Iteration struct {
	Revision        int                  `json:"revision"`
	RuleVerdict     models.CriticVerdict `json:"rule_verdict"`
	ExternalVerdict models.CriticVerdict `json:"external_verdict"`
	MergedIssues    []string             `json:"merged_issues,omitempty"`
}

// Result is the outcome of one refinement run. When Accepted is false the
// plan is the last candidate with its failing verdicts intact; the caller
// decides whether to surface partial failure.
type Result struct {
	Plan            models.PlanCandidate `json:"plan"`
	Accepted        bool                 `json:"accepted"`
	Iterations      int                  `json:"iterations"`
	RuleVerdict     models.CriticVerdict `json:"rule_verdict"`
	ExternalVerdict models.CriticVerdict `json:"external_verdict"`
	MergedIssues    []string             `json:"merged_issues,omitempty"`
	Trail           []Iteration          `json:"trail"`
}

// Loop is the bounded critic/revise refinement loop.
type Loop struct {
	gen          Generator
	maxRevisions int
}

// New creates a refinement loop over the given generator collaborator.
func New(gen Generator) *Loop {
	return &Loop{gen: gen, maxRevisions: MaxRevisions}
}

// RuleCritic is the deterministic constraint check applied to every
// candidate. Constraint violations are issues, not errors.
func RuleCritic(plan models.PlanCandidate, c models.PolicyConstraints) models.CriticVerdict {
	var issues []string
	if len(plan.Steps) == 0 {
		issues = append(issues, "No steps produced.")
	}
	if len(plan.Steps) < models.MinPlanSteps {
		issues = append(issues, fmt.Sprintf("Plan must have at least %d steps.", models.MinPlanSteps))
	}
	if len(plan.Steps) > c.MaxSteps {
		issues = append(issues, fmt.Sprintf("Too many steps (%d). Max %d.", len(plan.Steps), c.MaxSteps))
	}
	if plan.TotalMinutes < c.MinTotalMinutes {
		issues = append(issues, fmt.Sprintf("Plan too short (%d min). Target >= %d.", plan.TotalMinutes, c.MinTotalMinutes))
	}
	if plan.TotalMinutes > c.MaxTotalMinutes {
		issues = append(issues, fmt.Sprintf("Plan too long (%d min). Target <= %d.", plan.TotalMinutes, c.MaxTotalMinutes))
	}
	return models.CriticVerdict{OK: len(issues) == 0, Issues: issues}
}

// MergeIssues unions issue lists preserving first-seen order.
func MergeIssues(lists ...[]string) []string {
	var merged []string
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, issue := range list {
			if !seen[issue] {
				seen[issue] = true
				merged = append(merged, issue)
			}
		}
	}
	return merged
}

// Run generates a candidate and refines it until both critics accept or
// the revision budget is exhausted. The returned iteration count equals
// the number of revise calls actually made.
func (l *Loop) Run(ctx context.Context, pol policy.Policy, pctx Context) (Result, error) {
	plan, err := l.gen.GeneratePlan(ctx, pol, pctx)
	if err != nil {
		return Result{}, fmt.Errorf("plan generation failed: %w", err)
	}
	plan.RecomputeTotal()

	res := Result{Plan: plan}
	rule, external, issues, err := l.critique(ctx, pol, pctx, plan)
	if err != nil {
		return Result{}, err
	}
	res.RuleVerdict, res.ExternalVerdict, res.MergedIssues = rule, external, issues
	res.Trail = append(res.Trail, Iteration{Revision: 0, RuleVerdict: rule, ExternalVerdict: external, MergedIssues: issues})

	for !(res.RuleVerdict.OK && res.ExternalVerdict.OK) && res.Iterations < l.maxRevisions {
		slog.Debug("Loop.Run: revising plan", "revision", res.Iterations+1, "issues", len(res.MergedIssues))
		plan, err = l.gen.RevisePlan(ctx, pol, pctx, res.MergedIssues)
		if err != nil {
			return Result{}, fmt.Errorf("plan revision failed: %w", err)
		}
		plan.RecomputeTotal()
		res.Plan = plan
		res.Iterations++

		rule, external, issues, err = l.critique(ctx, pol, pctx, plan)
		if err != nil {
			return Result{}, err
		}
		res.RuleVerdict, res.ExternalVerdict, res.MergedIssues = rule, external, issues
		res.Trail = append(res.Trail, Iteration{Revision: res.Iterations, RuleVerdict: rule, ExternalVerdict: external, MergedIssues: issues})
	}

	res.Accepted = res.RuleVerdict.OK && res.ExternalVerdict.OK
	if !res.Accepted {
		slog.Warn("Loop.Run: revision budget exhausted, returning last candidate",
			"iterations", res.Iterations, "issues", len(res.MergedIssues))
	}
	return res, nil
}

// critique runs both critics and merges their issues with stable de-dup.
func (l *Loop) critique(ctx context.Context, pol policy.Policy, pctx Context, plan models.PlanCandidate) (rule, external models.CriticVerdict, issues []string, err error) {
	rule = RuleCritic(plan, pol.Constraints)
	external, err = l.gen.CritiquePlan(ctx, pol, pctx, plan)
	if err != nil {
		return rule, external, nil, fmt.Errorf("plan critique failed: %w", err)
	}
	issues = MergeIssues(rule.Issues, external.Issues)
	return rule, external, issues, nil
}
