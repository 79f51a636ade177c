package llm

// Role of a conversation message. Providers translate these to their
// own wire roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a request from the model to run a registered tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// Message is a provider-neutral conversation turn.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCall // assistant turns only
	ToolName  string     // tool turns: which tool produced Content
}

// ToolDefinition describes a callable tool to the model. Parameters is
// a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatResponse is the model's reply to one Chat call. Either Text,
// ToolCalls, or both may be set.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}
