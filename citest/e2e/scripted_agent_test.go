package e2e_test

import (
	"sync"

	"github.com/opencode-ai/acpthread/internal/engine"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// scriptedAgent is an in-process Connection whose turn behavior is a
// script: on each prompt it emits the scripted updates through the
// engine's update handler and then completes the turn.
type scriptedAgent struct {
	mu sync.Mutex

	connected bool
	ready     bool

	sessionRes *engine.SessionResult

	// script runs on the agent's goroutine for every prompt.
	script func(a *scriptedAgent, sessionID string)
	stop   types.StopReason

	promptCB func(*types.StopInfo, error)
	cancels  []string

	updateFn func(string, *types.SessionUpdate)
	permFn   func(*engine.PermissionRequest)
}

func newScriptedAgent() *scriptedAgent {
	return &scriptedAgent{
		sessionRes: &engine.SessionResult{SessionID: "sess_e2e"},
		stop:       types.StopEndTurn,
	}
}

func (a *scriptedAgent) emit(sessionID string, upd *types.SessionUpdate) {
	a.mu.Lock()
	fn := a.updateFn
	a.mu.Unlock()
	if fn != nil {
		fn(sessionID, upd)
	}
}

func (a *scriptedAgent) requestPermission(req *engine.PermissionRequest) {
	a.mu.Lock()
	fn := a.permFn
	a.mu.Unlock()
	if fn != nil {
		fn(req)
	}
}

func (a *scriptedAgent) Connect(cb func(error)) {
	a.mu.Lock()
	a.connected = true
	a.ready = true
	a.mu.Unlock()
	cb(nil)
}

func (a *scriptedAgent) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	a.ready = false
	return nil
}

func (a *scriptedAgent) IsConnected() bool { a.mu.Lock(); defer a.mu.Unlock(); return a.connected }
func (a *scriptedAgent) IsReady() bool     { a.mu.Lock(); defer a.mu.Unlock(); return a.ready }

func (a *scriptedAgent) CreateSession(cwd string, servers []types.MCPServerConfig, cb func(*engine.SessionResult, error)) {
	cb(a.sessionRes, nil)
}

func (a *scriptedAgent) LoadSession(id, cwd string, servers []types.MCPServerConfig, cb func(*engine.SessionResult, error)) {
	res := *a.sessionRes
	res.SessionID = id
	cb(&res, nil)
}

func (a *scriptedAgent) SendPrompt(sessionID string, blocks []types.Block, modeID string, cb func(*types.StopInfo, error)) {
	a.mu.Lock()
	a.promptCB = cb
	script := a.script
	stop := a.stop
	a.mu.Unlock()

	go func() {
		if script != nil {
			script(a, sessionID)
		}
		a.mu.Lock()
		done := a.promptCB
		a.promptCB = nil
		a.mu.Unlock()
		if done != nil {
			done(&types.StopInfo{Reason: stop}, nil)
		}
	}()
}

func (a *scriptedAgent) CancelSession(sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels = append(a.cancels, sessionID)
	return nil
}

func (a *scriptedAgent) ListSessions(cb func([]types.SessionInfo, error)) {
	cb([]types.SessionInfo{{ID: "sess_e2e", Title: "scripted"}}, nil)
}

func (a *scriptedAgent) SetMode(sessionID, modeID string, cb func(error)) {
	cb(nil)
}

func (a *scriptedAgent) SetConfigOption(sessionID, optionID, valueID string, cb func(error)) {
	cb(nil)
}

func (a *scriptedAgent) HasModes() bool { return len(a.sessionRes.Modes) > 0 }

func (a *scriptedAgent) Modes() []types.Mode { return a.sessionRes.Modes }

func (a *scriptedAgent) CurrentModeID() string { return a.sessionRes.CurrentModeID }

func (a *scriptedAgent) ModeByID(id string) (types.Mode, bool) {
	for _, m := range a.sessionRes.Modes {
		if m.ID == id {
			return m, true
		}
	}
	return types.Mode{}, false
}

func (a *scriptedAgent) ConfigOptions() []types.ConfigOption { return a.sessionRes.ConfigOptions }

func (a *scriptedAgent) SetUpdateHandler(fn func(string, *types.SessionUpdate)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updateFn = fn
}

func (a *scriptedAgent) SetPermissionHandler(fn func(*engine.PermissionRequest)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.permFn = fn
}

func (a *scriptedAgent) SetModeChangedHandler(fn func(string)) {}

func (a *scriptedAgent) SetConfigOptionsChangedHandler(fn func([]types.ConfigOption)) {}
