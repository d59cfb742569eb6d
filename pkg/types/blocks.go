package types

import "encoding/json"

// Block represents one component of a message's content.
type Block interface {
	BlockType() string
	CloneBlock() Block
}

// TextBlock holds streamed assistant or user text.
type TextBlock struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (b *TextBlock) BlockType() string { return "text" }
func (b *TextBlock) CloneBlock() Block { c := *b; return &c }

// ThinkingBlock holds streamed reasoning content. Text carries any plain
// text the agent attached alongside the thought.
type ThinkingBlock struct {
	Type     string `json:"type"` // always "thinking"
	Thinking string `json:"thinking"`
	Text     string `json:"text,omitempty"`
}

func (b *ThinkingBlock) BlockType() string { return "thinking" }
func (b *ThinkingBlock) CloneBlock() Block { c := *b; return &c }

// ToolUseBlock marks a message as the record of a tool invocation.
type ToolUseBlock struct {
	Type  string          `json:"type"` // always "tool_use"
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

func (b *ToolUseBlock) BlockType() string { return "tool_use" }
func (b *ToolUseBlock) CloneBlock() Block {
	c := *b
	if b.Input != nil {
		c.Input = append(json.RawMessage(nil), b.Input...)
	}
	return &c
}

// ToolResultBlock is the synthetic record appended when a tool call
// reaches a terminal status.
type ToolResultBlock struct {
	Type           string `json:"type"` // always "tool_result"
	ToolUseID      string `json:"toolUseID"`
	IsError        bool   `json:"isError"`
	IsUserDeclined bool   `json:"isUserDeclined,omitempty"`
}

func (b *ToolResultBlock) BlockType() string { return "tool_result" }
func (b *ToolResultBlock) CloneBlock() Block { c := *b; return &c }

// UnmarshalBlock decodes a JSON block into the appropriate type.
func UnmarshalBlock(data []byte) (Block, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case "thinking":
		var b ThinkingBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	case "tool_use":
		var b ToolUseBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	case "tool_result":
		var b ToolResultBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	default:
		// Unknown block types degrade to text so history stays renderable.
		var b TextBlock
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, nil
	}
}
