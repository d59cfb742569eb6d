package engine

import (
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// applyTextChunk accumulates a streamed text chunk. If the last history
// entry is an assistant message with a text slot, the chunk appends to
// it and the updated message is re-emitted; otherwise a new assistant
// message is created. Text and thought accumulate into disjoint
// messages. Callers hold e.mu.
func (e *Engine) applyTextChunk(chunk string) []event.Event {
	if chunk == "" {
		return nil
	}

	var events []event.Event
	if e.state == StatePrompting {
		if ev := e.setState(StateGenerating); ev != nil {
			events = append(events, *ev)
		}
	}

	var target *types.Message
	if last := e.lastMessage(); last != nil && last.Role == types.RoleAssistant && last.ToolCall == nil {
		if tb := last.TextBlock(); tb != nil {
			tb.Text += chunk
			now := nowMilli()
			last.Time.Updated = &now
			target = last
		}
	}
	if target == nil {
		target = &types.Message{
			ID:     newID(),
			Role:   types.RoleAssistant,
			Blocks: []types.Block{&types.TextBlock{Type: "text", Text: chunk}},
			Time:   types.MessageTime{Created: nowMilli()},
		}
		e.history = append(e.history, target)
		// The new message is now the streaming target; the running
		// delta offset restarts with it.
		e.lastEmitted = 0
	}

	events = append(events, event.Event{
		Type: event.MessagesAdded,
		Data: event.MessagesAddedData{Messages: []*types.Message{target.Clone()}},
	})

	full := target.TextBlock().Text
	if e.lastEmitted > len(full) {
		e.lastEmitted = 0
	}
	if delta := full[e.lastEmitted:]; delta != "" {
		e.lastEmitted = len(full)
		events = append(events, event.Event{Type: event.Chunk, Data: event.ChunkData{Text: delta}})
	}
	return events
}

// applyThoughtChunk follows the same accumulation rule as text but
// targets a thinking slot, and never merges into a text slot or vice
// versa. Thought chunks do not feed the raw text-delta stream. Callers
// hold e.mu.
func (e *Engine) applyThoughtChunk(chunk string) []event.Event {
	if chunk == "" {
		return nil
	}

	var events []event.Event
	if e.state == StatePrompting {
		if ev := e.setState(StateGenerating); ev != nil {
			events = append(events, *ev)
		}
	}

	var target *types.Message
	if last := e.lastMessage(); last != nil && last.Role == types.RoleAssistant && last.ToolCall == nil {
		if tb := last.ThinkingBlock(); tb != nil {
			tb.Thinking += chunk
			now := nowMilli()
			last.Time.Updated = &now
			target = last
		}
	}
	if target == nil {
		target = &types.Message{
			ID:     newID(),
			Role:   types.RoleAssistant,
			Blocks: []types.Block{&types.ThinkingBlock{Type: "thinking", Thinking: chunk}},
			Time:   types.MessageTime{Created: nowMilli()},
		}
		e.history = append(e.history, target)
	}

	events = append(events, event.Event{
		Type: event.MessagesAdded,
		Data: event.MessagesAddedData{Messages: []*types.Message{target.Clone()}},
	})
	return events
}

// lastMessage returns the newest history entry. Callers hold e.mu.
func (e *Engine) lastMessage() *types.Message {
	if len(e.history) == 0 {
		return nil
	}
	return e.history[len(e.history)-1]
}
