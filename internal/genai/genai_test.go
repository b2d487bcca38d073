package genai

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/loop"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/policy"
)

// fakeChat returns canned completion bodies and records request params.
type fakeChat struct {
	bodies []string
	calls  int
	params []openai.ChatCompletionNewParams
}

func (f *fakeChat) New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error) {
	f.params = append(f.params, params)
	body := f.bodies[f.calls]
	if f.calls < len(f.bodies)-1 {
		f.calls++
	}
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: body}},
		},
	}, nil
}

func testClient(bodies ...string) (*Client, *fakeChat) {
	fake := &fakeChat{bodies: bodies}
	return &Client{chat: fake, model: DefaultModel}, fake
}

func testPolicy() policy.Policy {
	sig := models.CheckinSignal{Energy: 3, Workload: 3}
	return policy.Apply(sig, policy.Route(sig), models.PrefSnapshot{})
}

func TestGeneratePlanNormalizes(t *testing.T) {
	cli, fake := testClient(`{"summary":"Plan","steps":[{"title":"Write","minutes":25,"details":"d"},{"title":"Review","minutes":15,"details":"d"}],"total_minutes":999}`)
	plan, err := cli.GeneratePlan(context.Background(), testPolicy(), loop.Context{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.TotalMinutes != 40 {
		t.Errorf("total not recomputed: %d", plan.TotalMinutes)
	}
	p := fake.params[0]
	if p.Temperature.Value != 0.4 {
		t.Errorf("planner temperature = %v, want 0.4", p.Temperature.Value)
	}
	if p.ResponseFormat.OfJSONObject == nil {
		t.Error("planner must request JSON object responses")
	}
	if len(p.Messages) != 2 {
		t.Errorf("expected system+user messages, got %d", len(p.Messages))
	}
}

func TestCritiquePlanTemperatureAndParsing(t *testing.T) {
	cli, fake := testClient(`{"ok":false,"issues":["too vague"],"suggested_edits":["name the file"]}`)
	v, err := cli.CritiquePlan(context.Background(), testPolicy(), loop.Context{}, models.PlanCandidate{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.OK || len(v.Issues) != 1 {
		t.Errorf("verdict = %+v", v)
	}
	if fake.params[0].Temperature.Value != 0.2 {
		t.Errorf("critic temperature = %v, want 0.2", fake.params[0].Temperature.Value)
	}
}

func TestRevisePlanIncludesIssues(t *testing.T) {
	cli, fake := testClient(`{"summary":"Fixed","steps":[{"title":"A","minutes":10,"details":"d"},{"title":"B","minutes":10,"details":"d"}]}`)
	_, err := cli.RevisePlan(context.Background(), testPolicy(), loop.Context{}, []string{"Plan too long (120 min). Target <= 60."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.params[0].Temperature.Value != 0.3 {
		t.Errorf("reviser temperature = %v, want 0.3", fake.params[0].Temperature.Value)
	}
}

func TestCritiquePlanRejectsIncompleteVerdict(t *testing.T) {
	cli, _ := testClient(`{"ok":true}`)
	if _, err := cli.CritiquePlan(context.Background(), testPolicy(), loop.Context{}, models.PlanCandidate{}); err == nil {
		t.Error("verdict missing keys must be rejected")
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("missing API key should fail")
	}
}

func TestNewClientModelFallback(t *testing.T) {
	t.Setenv("LLM_MODEL", "")
	t.Setenv("OPENAI_MODEL", "")
	cli, err := NewClient(WithAPIKey("k"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cli.Model() != DefaultModel {
		t.Errorf("model = %s, want %s", cli.Model(), DefaultModel)
	}

	t.Setenv("OPENAI_MODEL", "gpt-4o")
	cli, _ = NewClient(WithAPIKey("k"))
	if cli.Model() != "gpt-4o" {
		t.Errorf("model = %s, want gpt-4o", cli.Model())
	}

	t.Setenv("LLM_MODEL", "gpt-4.1-mini")
	cli, _ = NewClient(WithAPIKey("k"))
	if cli.Model() != "gpt-4.1-mini" {
		t.Errorf("model = %s, want gpt-4.1-mini (LLM_MODEL wins)", cli.Model())
	}

	cli, _ = NewClient(WithAPIKey("k"), WithModel("explicit"))
	if cli.Model() != "explicit" {
		t.Errorf("model = %s, want explicit", cli.Model())
	}
}
