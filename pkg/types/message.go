// Package types provides the core data types for the acpthread engine.
package types

import "encoding/json"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a thread's history: a user turn, an
// assistant turn, or a tool-call record. The engine owns every Message;
// observers receive clones.
type Message struct {
	ID     string      `json:"id"`
	Role   Role        `json:"role"`
	Blocks []Block     `json:"blocks"`
	Time   MessageTime `json:"time"`

	// ToolCall is set when this message records a tool invocation. The
	// same record is reachable through the engine's tool-call index.
	ToolCall *ToolCallRecord `json:"toolCall,omitempty"`
}

// MessageTime contains timestamps for a message.
type MessageTime struct {
	Created int64  `json:"created"`
	Updated *int64 `json:"updated,omitempty"`
}

// Text returns the concatenated text content of the message, if any.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		switch blk := b.(type) {
		case *TextBlock:
			out += blk.Text
		case *ThinkingBlock:
			out += blk.Text
		}
	}
	return out
}

// TextBlock returns the message's text block, or nil.
func (m *Message) TextBlock() *TextBlock {
	for _, b := range m.Blocks {
		if tb, ok := b.(*TextBlock); ok {
			return tb
		}
	}
	return nil
}

// ThinkingBlock returns the message's thinking block, or nil.
func (m *Message) ThinkingBlock() *ThinkingBlock {
	for _, b := range m.Blocks {
		if tb, ok := b.(*ThinkingBlock); ok {
			return tb
		}
	}
	return nil
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := *m
	out.Blocks = make([]Block, len(m.Blocks))
	for i, b := range m.Blocks {
		out.Blocks[i] = b.CloneBlock()
	}
	if m.ToolCall != nil {
		out.ToolCall = m.ToolCall.Clone()
	}
	if m.Time.Updated != nil {
		u := *m.Time.Updated
		out.Time.Updated = &u
	}
	return &out
}

// MarshalJSON emits blocks with their type tags intact.
func (m Message) MarshalJSON() ([]byte, error) {
	type Alias Message
	return json.Marshal(Alias(m))
}

// UnmarshalJSON decodes blocks through their type tags.
func (m *Message) UnmarshalJSON(data []byte) error {
	type Alias Message
	aux := struct {
		*Alias
		Blocks []json.RawMessage `json:"blocks"`
	}{Alias: (*Alias)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Blocks = make([]Block, 0, len(aux.Blocks))
	for _, raw := range aux.Blocks {
		b, err := UnmarshalBlock(raw)
		if err != nil {
			return err
		}
		m.Blocks = append(m.Blocks, b)
	}
	return nil
}
