package core

import "context"

// Message represents a single chat turn.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Tool describes a function the model may call. Parameters is a JSON schema.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is one function invocation returned by the model. Arguments is
// the raw JSON argument object.
type ToolCall struct {
	Name      string
	Arguments string
}

// Reply is a provider-neutral completion result.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	// JSONMode asks the provider for a single JSON object.
	JSONMode bool
}

// Client is a provider-agnostic interface for LLM operations we need.
type Client interface {
	Complete(ctx context.Context, messages []Message, tools []Tool, opts Options) (Reply, error)
}
