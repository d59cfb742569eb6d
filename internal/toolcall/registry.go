// Package toolcall tracks tool invocations from creation through a
// terminal status. Records support create-or-update semantics: an update
// for an unseen id synthesizes a placeholder instead of failing, since a
// transport replay can deliver updates before the create event.
package toolcall

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// Registry maps tool-call id to the Message embedding its record. The
// registry is a lookup accelerator over the engine's history; the engine
// remains the sole owner of message lifetime.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*types.Message
	emitted map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*types.Message),
		emitted: make(map[string]bool),
	}
}

// Outcome describes what a single applied update did, so the engine can
// mutate history and notify observers as one atomic batch.
type Outcome struct {
	// Message is the tool-call message, created or updated in place.
	Message *types.Message
	// Created is true when Message is new and must be appended to history.
	Created bool
	// Result is the synthetic tool-result message to append, set at most
	// once per id, on the transition into a terminal status.
	Result *types.Message
	// Active reports whether the call is now in a "currently calling"
	// status (pending or in_progress).
	Active bool
}

// Apply merges an inbound update into the record for its id, creating
// the record first if none exists. newID supplies message identifiers.
func (r *Registry) Apply(upd *types.ToolCallUpdate, newID func() string) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out Outcome

	msg, ok := r.records[upd.ID]
	if !ok {
		msg = &types.Message{
			ID:   newID(),
			Role: types.RoleAssistant,
			Time: types.MessageTime{Created: time.Now().UnixMilli()},
			ToolCall: &types.ToolCallRecord{
				ID:     upd.ID,
				Status: types.ToolStatusPending,
			},
		}
		msg.Blocks = []types.Block{&types.ToolUseBlock{
			Type: "tool_use",
			ID:   upd.ID,
		}}
		r.records[upd.ID] = msg
		out.Created = true
	}

	prev := msg.ToolCall.Status
	merge(msg.ToolCall, upd)
	syncBlock(msg)
	now := time.Now().UnixMilli()
	msg.Time.Updated = &now

	out.Message = msg
	out.Active = msg.ToolCall.Status.Active()

	if msg.ToolCall.Status.Terminal() && !prev.Terminal() && !r.emitted[upd.ID] {
		r.emitted[upd.ID] = true
		out.Result = resultMessage(msg.ToolCall, newID())
	}

	return out
}

// merge applies an absent-if-empty field-wise override of upd onto rec:
// a zero-valued field in the update leaves the stored value alone, and a
// present-but-empty content list is treated as absent so it cannot
// clobber accumulated logs.
func merge(rec *types.ToolCallRecord, upd *types.ToolCallUpdate) {
	if upd.Title != "" {
		rec.Title = upd.Title
	}
	if upd.Kind != "" {
		rec.Kind = upd.Kind
	}
	if upd.Status != "" {
		rec.Status = upd.Status
	}
	if len(upd.RawInput) > 0 && string(upd.RawInput) != "null" {
		rec.RawInput = append(json.RawMessage(nil), upd.RawInput...)
	}
	if len(upd.Locations) > 0 {
		rec.Locations = append([]types.Location(nil), upd.Locations...)
	}
	for _, c := range upd.Content {
		if c.Text != "" {
			rec.Logs = append(rec.Logs, c.Text)
		}
	}
}

// syncBlock mirrors the record's name and input onto the tool_use block.
func syncBlock(msg *types.Message) {
	for _, b := range msg.Blocks {
		if tu, ok := b.(*types.ToolUseBlock); ok {
			if msg.ToolCall.Title != "" {
				tu.Name = msg.ToolCall.Title
			}
			tu.Input = msg.ToolCall.RawInput
			return
		}
	}
}

func resultMessage(rec *types.ToolCallRecord, id string) *types.Message {
	return &types.Message{
		ID:   id,
		Role: types.RoleUser,
		Time: types.MessageTime{Created: time.Now().UnixMilli()},
		Blocks: []types.Block{&types.ToolResultBlock{
			Type:           "tool_result",
			ToolUseID:      rec.ID,
			IsError:        rec.Status == types.ToolStatusFailed,
			IsUserDeclined: rec.Status == types.ToolStatusCancelled,
		}},
	}
}

// Get returns the message for a tool-call id.
func (r *Registry) Get(id string) (*types.Message, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.records[id]
	return msg, ok
}

// Len returns the number of tracked tool calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// AnyActive reports whether any tracked call is still executing.
func (r *Registry) AnyActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, msg := range r.records {
		if msg.ToolCall.Status.Active() {
			return true
		}
	}
	return false
}
