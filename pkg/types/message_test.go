package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Text(t *testing.T) {
	msg := &Message{
		Blocks: []Block{
			&ThinkingBlock{Type: "thinking", Thinking: "hmm", Text: "aside"},
			&TextBlock{Type: "text", Text: "answer"},
		},
	}
	assert.Equal(t, "asideanswer", msg.Text())
}

func TestMessage_Clone_IsDeep(t *testing.T) {
	now := int64(1700000000123)
	msg := &Message{
		ID:   "m1",
		Role: RoleAssistant,
		Blocks: []Block{
			&TextBlock{Type: "text", Text: "original"},
			&ToolUseBlock{Type: "tool_use", ID: "t1", Name: "edit", Input: json.RawMessage(`{"a":1}`)},
		},
		Time: MessageTime{Created: 100, Updated: &now},
		ToolCall: &ToolCallRecord{
			ID:        "t1",
			Status:    ToolStatusInProgress,
			Locations: []Location{{Path: "a.go", Line: 2}},
			Logs:      []string{"started"},
		},
	}

	clone := msg.Clone()

	clone.Blocks[0].(*TextBlock).Text = "mutated"
	clone.Blocks[1].(*ToolUseBlock).Input[2] = 'x'
	clone.ToolCall.Status = ToolStatusCompleted
	clone.ToolCall.Locations[0].Line = 99
	clone.ToolCall.Logs[0] = "mutated"
	*clone.Time.Updated = 0

	assert.Equal(t, "original", msg.Blocks[0].(*TextBlock).Text)
	assert.Equal(t, json.RawMessage(`{"a":1}`), msg.Blocks[1].(*ToolUseBlock).Input)
	assert.Equal(t, ToolStatusInProgress, msg.ToolCall.Status)
	assert.Equal(t, 2, msg.ToolCall.Locations[0].Line)
	assert.Equal(t, []string{"started"}, msg.ToolCall.Logs)
	assert.Equal(t, now, *msg.Time.Updated)
}

func TestMessage_JSONRoundTrip(t *testing.T) {
	msg := &Message{
		ID:   "m1",
		Role: RoleAssistant,
		Blocks: []Block{
			&TextBlock{Type: "text", Text: "hello"},
			&ToolResultBlock{Type: "tool_result", ToolUseID: "t1", IsError: true},
		},
		Time: MessageTime{Created: 42},
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var back Message
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Len(t, back.Blocks, 2)
	assert.Equal(t, "hello", back.Blocks[0].(*TextBlock).Text)
	res := back.Blocks[1].(*ToolResultBlock)
	assert.Equal(t, "t1", res.ToolUseID)
	assert.True(t, res.IsError)
}

func TestUnmarshalBlock_KnownTypes(t *testing.T) {
	b, err := UnmarshalBlock([]byte(`{"type":"thinking","thinking":"deep"}`))
	require.NoError(t, err)
	assert.Equal(t, "deep", b.(*ThinkingBlock).Thinking)

	b, err = UnmarshalBlock([]byte(`{"type":"tool_use","id":"t1","name":"bash"}`))
	require.NoError(t, err)
	assert.Equal(t, "bash", b.(*ToolUseBlock).Name)
}

func TestUnmarshalBlock_UnknownDegradesToText(t *testing.T) {
	b, err := UnmarshalBlock([]byte(`{"type":"resource_link","text":"see file"}`))
	require.NoError(t, err)
	tb, ok := b.(*TextBlock)
	require.True(t, ok)
	assert.Equal(t, "see file", tb.Text)
}

func TestToolStatus_Helpers(t *testing.T) {
	assert.True(t, ToolStatusCompleted.Terminal())
	assert.True(t, ToolStatusFailed.Terminal())
	assert.True(t, ToolStatusCancelled.Terminal())
	assert.False(t, ToolStatusPending.Terminal())
	assert.False(t, ToolStatusInProgress.Terminal())

	assert.True(t, ToolStatusPending.Active())
	assert.True(t, ToolStatusInProgress.Active())
	assert.False(t, ToolStatusCompleted.Active())
}

func TestSessionUpdate_DecodesWireShape(t *testing.T) {
	raw := []byte(`{
		"sessionUpdate": "tool_call",
		"toolCallId": "t9",
		"title": "Edit(main.go)",
		"status": "in_progress",
		"locations": [{"path": "main.go", "line": 10}]
	}`)

	var upd SessionUpdate
	require.NoError(t, json.Unmarshal(raw, &upd))
	assert.Equal(t, UpdateToolCall, upd.Kind)
	require.NotNil(t, upd.ToolCall)
	assert.Equal(t, "t9", upd.ToolCall.ID)
	assert.Equal(t, ToolStatusInProgress, upd.ToolCall.Status)
	require.Len(t, upd.ToolCall.Locations, 1)
	assert.Equal(t, 10, upd.ToolCall.Locations[0].Line)
}
