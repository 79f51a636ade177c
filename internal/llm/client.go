package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by providers constructed without
// credentials. Callers turn it into a spoken apology rather than a
// crash.
var ErrNotConfigured = errors.New("llm: provider not configured")

// Client is the narrow surface the agent and the phrasing engine need
// from a language model provider.
type Client interface {
	// Chat sends a multi-turn conversation with tool definitions and
	// returns the model's next turn.
	Chat(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (*ChatResponse, error)

	// Complete sends a single prompt with no tools and returns plain
	// text. Used for one-shot generation like reminder phrasing.
	Complete(ctx context.Context, prompt string) (string, error)
}
