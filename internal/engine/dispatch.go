package engine

import (
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// HandleUpdate is the single entry point for inbound protocol updates.
// Dispatch is by exact kind match; unknown kinds are silently ignored so
// the engine never fails on protocol kinds it does not recognize.
// Updates are applied one at a time: the engine's lock guarantees no
// interleaving mid-mutation, and every observer notification is
// published off this call stack.
func (e *Engine) HandleUpdate(sessionID string, upd *types.SessionUpdate) {
	if upd == nil {
		return
	}

	e.mu.Lock()
	if e.sessionID != "" && sessionID != "" && sessionID != e.sessionID {
		e.mu.Unlock()
		e.log.Debug().Str("session", sessionID).Msg("dropping update for foreign session")
		return
	}

	var events []event.Event
	switch upd.Kind {
	case types.UpdateAgentMessageChunk:
		events = e.applyTextChunk(upd.Text)
	case types.UpdateAgentThoughtChunk:
		events = e.applyThoughtChunk(upd.Text)
	case types.UpdatePlan:
		e.planned.Replace(upd.Plan)
		events = append(events, event.Event{
			Type: event.PlanUpdated,
			Data: event.PlanUpdatedData{Todos: e.planned.Todos()},
		})
	case types.UpdateToolCall, types.UpdateToolCallUpdate:
		events = e.applyToolCall(upd.ToolCall)
	case types.UpdateAvailableCommands:
		events = e.applyCommands(upd.Commands)
	case types.UpdateCurrentMode:
		events = e.modeChangeLocked(upd.ModeID)
	case types.UpdateConfigOptions:
		events = e.configOptionsLocked(upd.ConfigOptions)
	default:
		e.log.Debug().Str("kind", string(upd.Kind)).Msg("ignoring unknown update kind")
	}
	e.mu.Unlock()

	e.publish(events)
}

// applyToolCall feeds the registry and, for plan-shaped calls, the plan
// tracker. The updated tool-call message and any synthetic result are
// delivered in a single batch so observer rendering stays atomic.
func (e *Engine) applyToolCall(upd *types.ToolCallUpdate) []event.Event {
	if upd == nil || upd.ID == "" {
		return nil
	}

	var events []event.Event
	if e.state == StatePrompting {
		if ev := e.setState(StateGenerating); ev != nil {
			events = append(events, *ev)
		}
	}

	out := e.tools.Apply(upd, newID)
	if out.Created {
		e.history = append(e.history, out.Message)
	}
	rec := out.Message.ToolCall
	e.currentlyCalling = out.Active || e.tools.AnyActive()

	// Write-plan interception: the record is still created and shown,
	// but its structured payload also replaces the plan.
	if e.matcher.IsWritePlan(rec.Kind, rec.Title) && len(rec.RawInput) > 0 {
		if e.planned.ReplaceFromToolInput(rec.RawInput) {
			events = append(events, event.Event{
				Type: event.PlanUpdated,
				Data: event.PlanUpdatedData{Todos: e.planned.Todos()},
			})
		}
	}
	if e.matcher.IsPlanMode(rec.Kind, rec.Title) {
		e.inPlanMode = true
		if rec.Status.Terminal() {
			e.planPresented = true
		}
	}

	batch := []*types.Message{out.Message.Clone()}
	if out.Result != nil {
		e.history = append(e.history, out.Result)
		batch = append(batch, out.Result.Clone())
	}
	events = append(events, event.Event{
		Type: event.MessagesAdded,
		Data: event.MessagesAddedData{Messages: batch},
	})
	events = append(events, event.Event{
		Type: event.ToolCallUpdated,
		Data: event.ToolCallUpdatedData{Record: rec.Clone()},
	})

	// Deliberate refresh pulse: tool-call traffic mid-generation repeats
	// the state notification with identical old/new values.
	if e.state == StateGenerating {
		events = append(events, *e.refreshPulse())
	}
	return events
}

func (e *Engine) applyCommands(cmds []types.CommandInfo) []event.Event {
	if e.commands != nil {
		e.commands.Replace(cmds)
	}
	return []event.Event{{
		Type: event.CommandsUpdated,
		Data: event.CommandsUpdatedData{Commands: append([]types.CommandInfo(nil), cmds...)},
	}}
}
