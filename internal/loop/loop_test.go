package loop

import (
	"context"
	"strings"
	"testing"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/policy"
)

// fakeGenerator returns scripted plans and verdicts.
type fakeGenerator struct {
	plans       []models.PlanCandidate
	verdicts    []models.CriticVerdict
	planCalls   int
	critCalls   int
	reviseCalls int
	seenIssues  [][]string
}

func (f *fakeGenerator) GeneratePlan(ctx context.Context, pol policy.Policy, pctx Context) (models.PlanCandidate, error) {
	f.planCalls++
	return f.plans[0], nil
}

func (f *fakeGenerator) RevisePlan(ctx context.Context, pol policy.Policy, pctx Context, issues []string) (models.PlanCandidate, error) {
	f.reviseCalls++
	f.seenIssues = append(f.seenIssues, issues)
	idx := f.reviseCalls
	if idx >= len(f.plans) {
		idx = len(f.plans) - 1
	}
	return f.plans[idx], nil
}

func (f *fakeGenerator) CritiquePlan(ctx context.Context, pol policy.Policy, pctx Context, plan models.PlanCandidate) (models.CriticVerdict, error) {
	v := models.CriticVerdict{OK: true}
	if f.critCalls < len(f.verdicts) {
		v = f.verdicts[f.critCalls]
	}
	f.critCalls++
	return v, nil
}

func testPolicy() policy.Policy {
	sig := models.CheckinSignal{Energy: 3, Workload: 3}
	return policy.Apply(sig, policy.Route(sig), models.PrefSnapshot{})
}

func goodPlan() models.PlanCandidate {
	p := models.PlanCandidate{
		Summary: "Two solid blocks.",
		Steps: []models.PlanStep{
			{Title: "Draft outline", Minutes: 20, Details: "Open the doc and write headings."},
			{Title: "Fill section one", Minutes: 25, Details: "Write the first section."},
		},
	}
	p.RecomputeTotal()
	return p
}

func TestRuleCriticAcceptsGoodPlan(t *testing.T) {
	v := RuleCritic(goodPlan(), testPolicy().Constraints)
	if !v.OK {
		t.Errorf("expected OK verdict, got issues %v", v.Issues)
	}
}

func TestRuleCriticEmptyPlan(t *testing.T) {
	v := RuleCritic(models.PlanCandidate{}, testPolicy().Constraints)
	if v.OK {
		t.Fatal("empty plan should not pass")
	}
	found := map[string]bool{}
	for _, issue := range v.Issues {
		found[issue] = true
	}
	if !found["No steps produced."] {
		t.Errorf("missing no-steps issue: %v", v.Issues)
	}
	if !found["Plan must have at least 2 steps."] {
		t.Errorf("missing min-steps issue: %v", v.Issues)
	}
}

func TestRuleCriticBounds(t *testing.T) {
	c := models.PolicyConstraints{MaxSteps: 3, MinTotalMinutes: 15, MaxTotalMinutes: 60}

	long := models.PlanCandidate{Steps: []models.PlanStep{
		{Title: "a", Minutes: 30}, {Title: "b", Minutes: 30}, {Title: "c", Minutes: 30}, {Title: "d", Minutes: 30},
	}}
	long.RecomputeTotal()
	v := RuleCritic(long, c)
	wantSteps := "Too many steps (4). Max 3."
	wantLong := "Plan too long (120 min). Target <= 60."
	joined := strings.Join(v.Issues, "|")
	if !strings.Contains(joined, wantSteps) {
		t.Errorf("missing %q in %v", wantSteps, v.Issues)
	}
	if !strings.Contains(joined, wantLong) {
		t.Errorf("missing %q in %v", wantLong, v.Issues)
	}

	short := models.PlanCandidate{Steps: []models.PlanStep{
		{Title: "a", Minutes: 5}, {Title: "b", Minutes: 5},
	}}
	short.RecomputeTotal()
	v = RuleCritic(short, c)
	wantShort := "Plan too short (10 min). Target >= 15."
	if !strings.Contains(strings.Join(v.Issues, "|"), wantShort) {
		t.Errorf("missing %q in %v", wantShort, v.Issues)
	}
}

func TestMergeIssuesStableDedup(t *testing.T) {
	got := MergeIssues([]string{"a", "b"}, []string{"b", "c", "a"}, []string{"d"})
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRunAcceptsFirstCandidate(t *testing.T) {
	gen := &fakeGenerator{plans: []models.PlanCandidate{goodPlan()}}
	res, err := New(gen).Run(context.Background(), testPolicy(), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Errorf("expected acceptance, issues %v", res.MergedIssues)
	}
	if res.Iterations != 0 {
		t.Errorf("expected 0 revise calls, got %d", res.Iterations)
	}
	if len(res.Trail) != 1 {
		t.Errorf("expected 1 trail entry, got %d", len(res.Trail))
	}
}

func TestRunRevisesUntilAccepted(t *testing.T) {
	bad := models.PlanCandidate{Steps: []models.PlanStep{{Title: "only one", Minutes: 30}}}
	bad.RecomputeTotal()
	gen := &fakeGenerator{plans: []models.PlanCandidate{bad, bad, goodPlan()}}
	res, err := New(gen).Run(context.Background(), testPolicy(), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Accepted {
		t.Fatalf("expected acceptance after revisions, issues %v", res.MergedIssues)
	}
	if res.Iterations != 2 {
		t.Errorf("expected 2 revise calls, got %d", res.Iterations)
	}
	if gen.reviseCalls != 2 {
		t.Errorf("generator saw %d revise calls", gen.reviseCalls)
	}
	// The reviser must receive the merged issue list from the prior round.
	if len(gen.seenIssues) == 0 || len(gen.seenIssues[0]) == 0 {
		t.Error("reviser received no issues")
	}
}

func TestRunNeverForcePasses(t *testing.T) {
	bad := models.PlanCandidate{Steps: []models.PlanStep{{Title: "one", Minutes: 2}}}
	bad.RecomputeTotal()
	gen := &fakeGenerator{plans: []models.PlanCandidate{bad}}
	res, err := New(gen).Run(context.Background(), testPolicy(), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted {
		t.Fatal("unfixable plan must not be accepted")
	}
	if res.Iterations != MaxRevisions {
		t.Errorf("expected %d revisions, got %d", MaxRevisions, res.Iterations)
	}
	if len(res.Trail) != MaxRevisions+1 {
		t.Errorf("expected %d trail entries, got %d", MaxRevisions+1, len(res.Trail))
	}
	if len(res.Plan.Steps) != 1 {
		t.Errorf("last candidate should be returned as-is")
	}
}

func TestRunRejectsWhenOnlyExternalCriticFails(t *testing.T) {
	gen := &fakeGenerator{
		plans: []models.PlanCandidate{goodPlan()},
		verdicts: []models.CriticVerdict{
			{OK: false, Issues: []string{"Steps are vague."}},
			{OK: false, Issues: []string{"Steps are vague."}},
			{OK: false, Issues: []string{"Steps are vague."}},
			{OK: false, Issues: []string{"Steps are vague."}},
		},
	}
	res, err := New(gen).Run(context.Background(), testPolicy(), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accepted {
		t.Fatal("acceptance requires both critics to pass")
	}
	if res.RuleVerdict.OK != true {
		t.Errorf("rule critic should pass this plan")
	}
}

func TestRunRecomputesTotals(t *testing.T) {
	lying := goodPlan()
	lying.TotalMinutes = 999
	gen := &fakeGenerator{plans: []models.PlanCandidate{lying}}
	res, err := New(gen).Run(context.Background(), testPolicy(), Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Plan.TotalMinutes != 45 {
		t.Errorf("total not recomputed: got %d, want 45", res.Plan.TotalMinutes)
	}
}
