package engine

import (
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// Modes returns the advertised modes.
func (e *Engine) Modes() []types.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Mode(nil), e.modes...)
}

// CurrentModeID returns the active mode id.
func (e *Engine) CurrentModeID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentModeID
}

// ConfigOptions returns the advertised config options. A non-empty list
// means the agent uses the superseding mechanism and modes are legacy.
func (e *Engine) ConfigOptions() []types.ConfigOption {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ConfigOption(nil), e.configOptions...)
}

// HasConfigOptions reports whether the superseding mechanism is in use.
func (e *Engine) HasConfigOptions() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.configOptions) > 0
}

// modeByID looks a mode up in the advertised list. Callers hold e.mu or
// run before the engine is shared.
func (e *Engine) modeByID(id string) (types.Mode, bool) {
	for _, m := range e.modes {
		if m.ID == id {
			return m, true
		}
	}
	return types.Mode{}, false
}

// SetMode requests a mode switch. On success local state updates and a
// mode-change notification fires; on failure local state is untouched
// and the error stays with this call's callback, never a global error
// state.
func (e *Engine) SetMode(modeID string, cb func(error)) {
	e.mu.Lock()
	conn := e.conn
	sessionID := e.sessionID
	_, known := e.modeByID(modeID)
	epoch := e.epoch.Load()
	e.mu.Unlock()

	if conn == nil {
		if cb != nil {
			cb(ErrNotConnected)
		}
		return
	}
	if sessionID == "" {
		if cb != nil {
			cb(ErrNoSession)
		}
		return
	}
	if !known {
		if cb != nil {
			cb(ErrUnknownMode)
		}
		return
	}

	conn.SetMode(sessionID, modeID, func(err error) {
		if !e.sameEpoch(epoch) {
			return
		}
		if err != nil {
			if cb != nil {
				cb(err)
			}
			return
		}
		e.applyModeChange(modeID)
		if cb != nil {
			cb(nil)
		}
	})
}

// CycleMode advances to the next mode in declaration order, wrapping to
// the first after the last. With zero modes it reports ErrNoModes — a
// reported condition, not a failure.
func (e *Engine) CycleMode(cb func(*types.Mode, error)) {
	e.mu.Lock()
	modes := e.modes
	current := e.currentModeID
	e.mu.Unlock()

	if len(modes) == 0 {
		if cb != nil {
			cb(nil, ErrNoModes)
		}
		return
	}

	next := modes[0]
	for i, m := range modes {
		if m.ID == current {
			next = modes[(i+1)%len(modes)]
			break
		}
	}

	e.SetMode(next.ID, func(err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(nil, err)
			return
		}
		m := next
		cb(&m, nil)
	})
}

// SetConfigOption requests a config-option change through the
// superseding mechanism.
func (e *Engine) SetConfigOption(optionID, valueID string, cb func(error)) {
	e.mu.Lock()
	conn := e.conn
	sessionID := e.sessionID
	epoch := e.epoch.Load()
	e.mu.Unlock()

	if conn == nil {
		if cb != nil {
			cb(ErrNotConnected)
		}
		return
	}
	if sessionID == "" {
		if cb != nil {
			cb(ErrNoSession)
		}
		return
	}

	conn.SetConfigOption(sessionID, optionID, valueID, func(err error) {
		if !e.sameEpoch(epoch) {
			return
		}
		if cb != nil {
			cb(err)
		}
	})
}

// applyModeChange records a mode change reported by the agent (or a
// successful local set_mode) and notifies observers.
func (e *Engine) applyModeChange(modeID string) {
	e.mu.Lock()
	events := e.modeChangeLocked(modeID)
	e.mu.Unlock()
	e.publish(events)
}

func (e *Engine) modeChangeLocked(modeID string) []event.Event {
	if modeID == "" || modeID == e.currentModeID {
		return nil
	}
	e.currentModeID = modeID
	name := modeID
	if m, ok := e.modeByID(modeID); ok {
		name = m.Name
	}
	return []event.Event{{
		Type: event.ModeChanged,
		Data: event.ModeChangedData{ModeID: modeID, ModeName: name},
	}}
}

// applyConfigOptions stores a config-option report from the agent.
func (e *Engine) applyConfigOptions(opts []types.ConfigOption) {
	e.mu.Lock()
	events := e.configOptionsLocked(opts)
	e.mu.Unlock()
	e.publish(events)
}

func (e *Engine) configOptionsLocked(opts []types.ConfigOption) []event.Event {
	e.configOptions = append([]types.ConfigOption(nil), opts...)
	return []event.Event{{
		Type: event.ConfigOptionsChanged,
		Data: event.ConfigOptionsChangedData{Options: append([]types.ConfigOption(nil), opts...)},
	}}
}
