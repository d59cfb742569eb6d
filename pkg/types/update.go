package types

import "encoding/json"

// UpdateKind tags an inbound session update. Kinds the engine does not
// recognize are ignored, never errored.
type UpdateKind string

const (
	UpdateAgentMessageChunk UpdateKind = "agent_message_chunk"
	UpdateAgentThoughtChunk UpdateKind = "agent_thought_chunk"
	UpdatePlan              UpdateKind = "plan"
	UpdateToolCall          UpdateKind = "tool_call"
	UpdateToolCallUpdate    UpdateKind = "tool_call_update"
	UpdateAvailableCommands UpdateKind = "available_commands_update"
	UpdateCurrentMode       UpdateKind = "current_mode_update"
	UpdateConfigOptions     UpdateKind = "config_options_update"
)

// SessionUpdate is one protocol update streamed from the agent. Exactly
// the fields relevant to Kind are populated.
type SessionUpdate struct {
	Kind UpdateKind `json:"sessionUpdate"`

	// agent_message_chunk / agent_thought_chunk
	Text string `json:"text,omitempty"`

	// plan
	Plan []PlanEntry `json:"entries,omitempty"`

	// tool_call / tool_call_update
	ToolCall *ToolCallUpdate `json:"toolCall,omitempty"`

	// available_commands_update
	Commands []CommandInfo `json:"availableCommands,omitempty"`

	// current_mode_update
	ModeID string `json:"currentModeId,omitempty"`

	// config_options_update
	ConfigOptions []ConfigOption `json:"configOptions,omitempty"`
}

// UnmarshalJSON decodes the wire shape, where tool call fields sit flat
// next to the kind tag and chunk text arrives as a content block.
func (u *SessionUpdate) UnmarshalJSON(data []byte) error {
	type plain SessionUpdate
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = SessionUpdate(raw)

	switch u.Kind {
	case UpdateToolCall, UpdateToolCallUpdate:
		if u.ToolCall == nil {
			var tc ToolCallUpdate
			if err := json.Unmarshal(data, &tc); err != nil {
				return err
			}
			u.ToolCall = &tc
		}
	case UpdateAgentMessageChunk, UpdateAgentThoughtChunk:
		if u.Text == "" {
			var chunk struct {
				Content struct {
					Text string `json:"text"`
				} `json:"content"`
			}
			if err := json.Unmarshal(data, &chunk); err != nil {
				return err
			}
			u.Text = chunk.Content.Text
		}
	}
	return nil
}
