package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

func init() {
	core.RegisterProvider("openai", newClient, "gpt4o")
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
		return nil, fmt.Errorf("openai: API key not configured")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(valueOrDefault(cfg.BaseURL, defaultBaseURL), "/"),
		httpClient: webclient.NewDefault(240 * time.Second),
		defaults: core.Options{
			Model:               valueOrDefault(cfg.Model, "gpt-4o"),
			Temperature:         orFloat(cfg.Temperature, 0.7),
			MaxCompletionTokens: orInt(cfg.MaxCompletionTokens, 1024),
		},
		log:        log.Named("openai"),
		retryDelay: 2 * time.Second,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Tools          []chatTool        `json:"tools,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *client) Complete(ctx context.Context, messages []core.Message, tools []core.Tool, opts core.Options) (core.Reply, error) {
	merged := c.merge(opts)
	req := chatRequest{
		Model:       merged.Model,
		Temperature: merged.Temperature,
		MaxTokens:   merged.MaxCompletionTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, chatTool{
			Type:     "function",
			Function: chatFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}
	if merged.JSONMode {
		req.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, err := webclient.DoJSON(ctx, c.httpClient, 3, c.retryDelay, webclient.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/chat/completions",
		Headers: map[string]string{"Authorization": "Bearer " + c.apiKey},
		Body:    req,
	})
	if err != nil {
		return core.Reply{}, fmt.Errorf("openai API error: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.log.Warn("failed to decode response", zap.ByteString("body", truncatePayload(body, 1024)))
		return core.Reply{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return core.Reply{}, fmt.Errorf("openai: no response choices")
	}

	choice := result.Choices[0]
	var reply core.Reply
	if choice.Message.Content != nil {
		reply.Content = *choice.Message.Content
	}
	for _, call := range choice.Message.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, core.ToolCall{
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	c.log.Debug("completion",
		zap.String("model", merged.Model),
		zap.String("finish", choice.FinishReason),
		zap.Int("toolCalls", len(reply.ToolCalls)))
	return reply, nil
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

func valueOrDefault(val, def string) string {
	if val != "" {
		return val
	}
	return def
}
func orInt(v, d int) int {
	if v != 0 {
		return v
	}
	return d
}
func orFloat(v, d float64) float64 {
	if v != 0 {
		return v
	}
	return d
}

func truncatePayload(b []byte, limit int) []byte {
	if len(b) <= limit {
		return b
	}
	return b[:limit]
}
