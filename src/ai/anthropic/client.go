package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stake-plus/govagent/src/ai/core"
	"github.com/stake-plus/govagent/src/webclient"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"
	jsonInstruction  = "Respond with a single JSON object and nothing else."
)

func init() {
	core.RegisterProvider("anthropic", newClient, "claude")
}

type client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	defaults   core.Options
	log        *zap.Logger
	retryDelay time.Duration
}

func newClient(cfg core.FactoryConfig) (core.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key not configured")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(valueOrDefault(cfg.BaseURL, defaultBaseURL), "/"),
		httpClient: webclient.NewDefault(60 * time.Second),
		defaults: core.Options{
			Model:               valueOrDefault(cfg.Model, core.DefaultModelForProvider("anthropic")),
			Temperature:         orFloat(cfg.Temperature, 0.7),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, defaultMaxTokens),
		},
		log:        log.Named("anthropic"),
		retryDelay: 2 * time.Second,
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicContent struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
}

func (c *client) Complete(ctx context.Context, messages []core.Message, tools []core.Tool, opts core.Options) (core.Reply, error) {
	merged := c.merge(opts)
	system, turns := splitMessages(messages)
	if merged.JSONMode {
		system = strings.TrimSpace(system + "\n\n" + jsonInstruction)
	}
	req := anthropicRequest{
		Model:       merged.Model,
		System:      system,
		MaxTokens:   merged.MaxCompletionTokens,
		Temperature: merged.Temperature,
		Messages:    turns,
	}
	for _, t := range tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}
		req.Tools = append(req.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}

	body, err := webclient.DoJSON(ctx, c.httpClient, 3, c.retryDelay, webclient.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/messages",
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": apiVersion,
		},
		Body: req,
	})
	if err != nil {
		return core.Reply{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return core.Reply{}, fmt.Errorf("anthropic: decode response: %w", err)
	}

	reply := core.Reply{Content: extractText(result.Content)}
	for _, chunk := range result.Content {
		if chunk.Type == "tool_use" {
			reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{Name: chunk.Name, Arguments: string(chunk.Input)})
		}
	}
	if reply.Content == "" && len(reply.ToolCalls) == 0 {
		return core.Reply{}, fmt.Errorf("anthropic: empty response")
	}
	c.log.Debug("completion",
		zap.String("model", merged.Model),
		zap.String("stop", result.StopReason),
		zap.Int("toolCalls", len(reply.ToolCalls)))
	return reply, nil
}

// splitMessages lifts system turns into the top-level prompt and folds
// consecutive same-role turns together; the API requires alternating roles
// starting with the user.
func splitMessages(messages []core.Message) (string, []anthropicMessage) {
	var (
		system []string
		turns  []anthropicMessage
	)
	for _, m := range messages {
		if m.Role == core.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := core.RoleUser
		if m.Role == core.RoleAssistant {
			role = core.RoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n\n" + m.Content
			continue
		}
		if len(turns) == 0 && role == core.RoleAssistant {
			turns = append(turns, anthropicMessage{Role: core.RoleUser, Content: "(conversation start)"})
		}
		turns = append(turns, anthropicMessage{Role: role, Content: m.Content})
	}
	return strings.Join(system, "\n\n"), turns
}

func (c *client) merge(opts core.Options) core.Options {
	out := c.defaults
	if opts.Model != "" {
		out.Model = opts.Model
	}
	if opts.Temperature != 0 {
		out.Temperature = opts.Temperature
	}
	if opts.MaxCompletionTokens != 0 {
		out.MaxCompletionTokens = opts.MaxCompletionTokens
	}
	out.JSONMode = opts.JSONMode
	return out
}

func extractText(chunks []anthropicContent) string {
	var b strings.Builder
	for _, chunk := range chunks {
		if chunk.Type != "text" || chunk.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(chunk.Text)
	}
	return strings.TrimSpace(b.String())
}

func valueOrDefault(val, def string) string {
	if strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
