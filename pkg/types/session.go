package types

// SessionInfo describes a session known to the agent.
type SessionInfo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Cwd   string `json:"cwd,omitempty"`
}

// Mode is a named, agent-defined operational setting (legacy mechanism;
// superseded by config options when the agent advertises them).
type Mode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ConfigOption is the general negotiation mechanism that supersedes modes.
type ConfigOption struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Type        string              `json:"type,omitempty"` // "select" | "boolean" | ...
	Value       string              `json:"value,omitempty"`
	Options     []ConfigOptionValue `json:"options,omitempty"`
}

// ConfigOptionValue is one selectable value of a config option.
type ConfigOptionValue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StopReason explains why a prompt turn ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopMaxTokens StopReason = "max_tokens"
	StopCancelled StopReason = "cancelled"
	StopRefusal   StopReason = "refusal"
)

// StopInfo is delivered when a prompt turn completes.
type StopInfo struct {
	Reason StopReason `json:"stopReason"`
}

// CommandInfo describes a slash command the agent advertises dynamically.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Input       string `json:"input,omitempty"` // hint for expected argument
}

// MCPServerConfig is forwarded opaquely to the agent at session setup;
// the client never speaks MCP itself.
type MCPServerConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}
