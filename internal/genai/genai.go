// Package genai implements the plan generator/critic/reviser collaborator
// using the OpenAI API.
//
// The client is never trusted for total_minutes accuracy: every response
// passes through the loop package's normalization boundary.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/loop"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/models"
	"github.com/LaxmiVatsalyaDaita/Commit-to-Change-hackathon/internal/policy"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Sampling temperatures per role, matching the planning pipeline.
const (
	plannerTemperature = 0.4
	criticTemperature  = 0.2
	reviserTemperature = 0.3
)

// chatService defines the minimal interface for chat completions,
// satisfied by the OpenAI client and by fakes in tests.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// Client wraps the OpenAI chat completion service for plan generation,
// critique, and revision. It implements loop.Generator.
type Client struct {
	chat  chatService
	model string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable, the model to LLM_MODEL then
// OPENAI_MODEL then the default.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("LLM_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model)
	return &Client{chat: &cli.Chat.Completions, model: cfg.Model}, nil
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.model
}

// completeJSON runs one JSON-mode chat completion and returns the raw body.
func (c *Client) completeJSON(ctx context.Context, system, user string, temperature float64) ([]byte, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}

// GeneratePlan asks the planner for a fresh candidate under the policy
// constraints and normalizes the result.
func (c *Client) GeneratePlan(ctx context.Context, pol policy.Policy, pctx loop.Context) (models.PlanCandidate, error) {
	system := "You are CommitAI Planner.\n" +
		"Return ONLY valid JSON.\n" +
		"The ROOT JSON object MUST contain ONLY these keys: steps, total_minutes, summary.\n" +
		"Each step MUST be an object with keys: title, minutes, details.\n" +
		"No wrapper keys like plan/output/result.\n" +
		"No extra keys. No markdown."
	raw, err := c.completeJSON(ctx, system, plannerUserPrompt(pol, pctx, nil), plannerTemperature)
	if err != nil {
		return models.PlanCandidate{}, err
	}
	return loop.NormalizeCandidate(raw)
}

// RevisePlan asks the reviser to fix the plan given the merged issue list.
func (c *Client) RevisePlan(ctx context.Context, pol policy.Policy, pctx loop.Context, issues []string) (models.PlanCandidate, error) {
	system := "You are CommitAI Reviser.\n" +
		"Fix the plan based on critic issues.\n" +
		"Return ONLY valid JSON.\n" +
		"The ROOT JSON object MUST contain ONLY these keys: steps, total_minutes, summary.\n" +
		"Each step MUST be an object with keys: title, minutes, details.\n" +
		"No wrapper keys. No extra keys. No markdown."
	raw, err := c.completeJSON(ctx, system, plannerUserPrompt(pol, pctx, issues), reviserTemperature)
	if err != nil {
		return models.PlanCandidate{}, err
	}
	return loop.NormalizeCandidate(raw)
}

// CritiquePlan asks the external critic for a verdict on a candidate.
func (c *Client) CritiquePlan(ctx context.Context, pol policy.Policy, pctx loop.Context, plan models.PlanCandidate) (models.CriticVerdict, error) {
	system := "You are a strict planning critic for a productivity autopilot.\n" +
		"Return ONLY valid JSON with keys: ok, issues, suggested_edits.\n" +
		"Be concrete and actionable. No markdown."
	payload := map[string]interface{}{
		"state":          pol.State,
		"selected_agent": pol.SelectedAgent,
		"constraints":    pol.Constraints,
		"requirements":   pol.Requirements,
		"context": map[string]interface{}{
			"goal":   pctx.Goal,
			"memory": pctx.Memory,
		},
		"plan": plan,
		"rubric": []string{
			"Steps must be specific and actionable.",
			"Time must be realistic for the state/agent.",
			"If blockers exist, plan should address them.",
			"Avoid vague fluff. Avoid unsafe advice.",
		},
		"schema": map[string]interface{}{"ok": true, "issues": []string{"string"}, "suggested_edits": []string{"string"}},
	}
	user, err := json.Marshal(payload)
	if err != nil {
		return models.CriticVerdict{}, fmt.Errorf("failed to encode critic payload: %w", err)
	}
	raw, err := c.completeJSON(ctx, system, string(user), criticTemperature)
	if err != nil {
		return models.CriticVerdict{}, err
	}
	return loop.NormalizeVerdict(raw)
}

// plannerUserPrompt renders the shared planner/reviser user prompt.
func plannerUserPrompt(pol policy.Policy, pctx loop.Context, issues []string) string {
	goalJSON, _ := json.Marshal(pctx.Goal)
	prompt := ""
	if len(issues) > 0 {
		issuesJSON, _ := json.Marshal(issues)
		prompt += fmt.Sprintf("Critic issues:\n%s\n\n", issuesJSON)
	}
	prompt += fmt.Sprintf(`Schema:
{
  "steps": [{"title": "string", "minutes": 25, "details": "string"}],
  "total_minutes": 50,
  "summary": "string"
}

Constraints:
- steps count: 2..%d
- total_minutes between %d and %d
- must obey requirements: %v

Context:
goal=%s
memory=%s

Today:
energy=%d
workload=%d
blockers=%s
completed=%t
`,
		pol.Constraints.MaxSteps,
		pol.Constraints.MinTotalMinutes,
		pol.Constraints.MaxTotalMinutes,
		pol.Requirements,
		goalJSON,
		pctx.Memory,
		pctx.Today.Energy,
		pctx.Today.Workload,
		pctx.Today.Blockers,
		pctx.Today.Completed,
	)
	return prompt
}
