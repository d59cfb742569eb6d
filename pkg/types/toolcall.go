package types

import "encoding/json"

// ToolStatus is the lifecycle status of a tool call.
type ToolStatus string

const (
	ToolStatusPending    ToolStatus = "pending"
	ToolStatusInProgress ToolStatus = "in_progress"
	ToolStatusCompleted  ToolStatus = "completed"
	ToolStatusFailed     ToolStatus = "failed"
	ToolStatusCancelled  ToolStatus = "cancelled"
)

// Terminal reports whether the status ends the tool call's lifecycle.
func (s ToolStatus) Terminal() bool {
	switch s {
	case ToolStatusCompleted, ToolStatusFailed, ToolStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the tool call is still being executed.
func (s ToolStatus) Active() bool {
	return s == ToolStatusPending || s == ToolStatusInProgress
}

// ToolCallRecord tracks one tool invocation from creation through its
// terminal status. It is embedded in the Message that announced the call.
type ToolCallRecord struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind,omitempty"`
	Title     string          `json:"title,omitempty"`
	Status    ToolStatus      `json:"status"`
	RawInput  json.RawMessage `json:"rawInput,omitempty"`
	Locations []Location      `json:"locations,omitempty"`
	Logs      []string        `json:"logs,omitempty"`
}

// Location is a file/line hint attached to a tool call.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *ToolCallRecord) Clone() *ToolCallRecord {
	out := *r
	if r.RawInput != nil {
		out.RawInput = append(json.RawMessage(nil), r.RawInput...)
	}
	out.Locations = append([]Location(nil), r.Locations...)
	out.Logs = append([]string(nil), r.Logs...)
	return &out
}

// ToolCallUpdate is the inbound protocol shape for tool_call and
// tool_call_update events. Zero-valued fields mean "not present".
type ToolCallUpdate struct {
	ID        string            `json:"toolCallId"`
	Kind      string            `json:"kind,omitempty"`
	Title     string            `json:"title,omitempty"`
	Status    ToolStatus        `json:"status,omitempty"`
	RawInput  json.RawMessage   `json:"rawInput,omitempty"`
	Locations []Location        `json:"locations,omitempty"`
	Content   []ToolCallContent `json:"content,omitempty"`
}

// ToolCallContent is one chunk of tool output attached to an update.
type ToolCallContent struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}
