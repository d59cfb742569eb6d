package engine

import (
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// Connect establishes the transport. cb fires once with the outcome;
// a connect failure is surfaced as a terminal error state.
func (e *Engine) Connect(cb func(error)) {
	e.mu.Lock()
	if e.conn == nil {
		e.mu.Unlock()
		if cb != nil {
			cb(ErrNotConnected)
		}
		return
	}
	ev := e.setState(StateConnecting)
	epoch := e.epoch.Load()
	conn := e.conn
	e.mu.Unlock()
	if ev != nil {
		e.bus.Publish(*ev)
	}

	conn.Connect(func(err error) {
		if !e.sameEpoch(epoch) {
			return
		}
		e.mu.Lock()
		var sev *event.Event
		if err != nil {
			sev = e.setState(StateError)
		} else {
			sev = e.setState(StateIdle)
		}
		e.mu.Unlock()
		if sev != nil {
			e.bus.Publish(*sev)
		}
		if err != nil {
			e.bus.Publish(event.Event{Type: event.Error, Data: event.ErrorData{Err: err, Msg: err.Error()}})
		}
		if cb != nil {
			cb(err)
		}
	})
}

// NewSession creates a fresh remote session. The engine remains usable
// for another attempt after a failure.
func (e *Engine) NewSession(cb func(sessionID string, err error)) {
	e.startSession("", cb)
}

// LoadSession resumes an existing remote session. History is rebuilt
// from the replayed update stream the connection delivers during load.
func (e *Engine) LoadSession(sessionID string, cb func(sessionID string, err error)) {
	e.startSession(sessionID, cb)
}

func (e *Engine) startSession(loadID string, cb func(string, error)) {
	e.mu.Lock()
	conn := e.conn
	if conn == nil || !conn.IsReady() {
		e.mu.Unlock()
		if cb != nil {
			cb("", ErrNotConnected)
		}
		return
	}
	ev := e.setState(StateSessionCreating)
	epoch := e.epoch.Load()
	cwd := e.cwd
	servers := e.mcpServers
	e.mu.Unlock()
	if ev != nil {
		e.bus.Publish(*ev)
	}

	done := func(res *SessionResult, err error) {
		if !e.sameEpoch(epoch) {
			return
		}
		e.finishSessionSetup(loadID, res, err, cb)
	}

	if loadID == "" {
		conn.CreateSession(cwd, servers, done)
	} else {
		conn.LoadSession(loadID, cwd, servers, done)
	}
}

func (e *Engine) finishSessionSetup(loadID string, res *SessionResult, err error, cb func(string, error)) {
	e.mu.Lock()
	var events []event.Event
	if err != nil {
		// Session establishment failures are terminal, unlike request
		// errors local to a round-trip.
		if ev := e.setState(StateError); ev != nil {
			events = append(events, *ev)
		}
		e.mu.Unlock()
		events = append(events, event.Event{Type: event.Error, Data: event.ErrorData{Err: err, Msg: err.Error()}})
		e.publish(events)
		if cb != nil {
			cb("", err)
		}
		return
	}

	e.sessionID = res.SessionID
	e.modes = append([]types.Mode(nil), res.Modes...)
	e.currentModeID = res.CurrentModeID
	e.configOptions = append([]types.ConfigOption(nil), res.ConfigOptions...)
	replayed := len(e.history)
	if ev := e.setState(StateIdle); ev != nil {
		events = append(events, *ev)
	}
	// Config options supersede modes: when the agent advertises them,
	// modes are stored but not actively managed.
	wantDefault := e.defaultModeID != "" && len(e.configOptions) == 0 &&
		e.defaultModeID != e.currentModeID
	defaultID := e.defaultModeID
	e.mu.Unlock()

	if loadID == "" {
		events = append(events, event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{SessionID: res.SessionID}})
	} else {
		events = append(events, event.Event{Type: event.SessionLoaded, Data: event.SessionLoadedData{SessionID: res.SessionID, Replayed: replayed}})
	}
	e.publish(events)

	if wantDefault {
		e.applyDefaultMode(defaultID)
	}

	if cb != nil {
		cb(res.SessionID, nil)
	}
}

// applyDefaultMode issues the automatic set_mode for the configured
// default. Failure here is advisory, never fatal to the session.
func (e *Engine) applyDefaultMode(modeID string) {
	if _, ok := e.modeByID(modeID); !ok {
		e.log.Warn().Str("mode", modeID).Msg("configured default mode not advertised by agent")
		return
	}
	e.SetMode(modeID, func(err error) {
		if err != nil {
			e.log.Warn().Err(err).Str("mode", modeID).Msg("default mode set failed")
		}
	})
}

// SendPrompt submits a user turn built from plain text.
func (e *Engine) SendPrompt(text string, cb func(*types.StopInfo, error)) error {
	return e.SendPromptBlocks([]types.Block{&types.TextBlock{Type: "text", Text: text}}, cb)
}

// SendPromptBlocks submits a user turn. The user message is appended to
// history immediately; the callback fires with the turn's stop outcome.
func (e *Engine) SendPromptBlocks(blocks []types.Block, cb func(*types.StopInfo, error)) error {
	e.mu.Lock()
	if e.conn == nil {
		e.mu.Unlock()
		return ErrNotConnected
	}
	if e.sessionID == "" {
		e.mu.Unlock()
		return ErrNoSession
	}

	msg := &types.Message{
		ID:     newID(),
		Role:   types.RoleUser,
		Blocks: blocks,
		Time:   types.MessageTime{Created: nowMilli()},
	}
	e.history = append(e.history, msg)
	// New turn: reset streaming accumulation state.
	e.lastEmitted = 0
	e.currentlyCalling = false

	var events []event.Event
	events = append(events, event.Event{
		Type: event.MessagesAdded,
		Data: event.MessagesAddedData{Messages: []*types.Message{msg.Clone()}},
	})
	if ev := e.setState(StatePrompting); ev != nil {
		events = append(events, *ev)
	}

	epoch := e.epoch.Load()
	conn := e.conn
	sessionID := e.sessionID
	modeID := e.currentModeID
	e.mu.Unlock()

	e.publish(events)

	conn.SendPrompt(sessionID, blocks, modeID, func(stop *types.StopInfo, err error) {
		if !e.sameEpoch(epoch) {
			return
		}
		e.finishTurn(stop, err, cb)
	})
	return nil
}

func (e *Engine) finishTurn(stop *types.StopInfo, err error, cb func(*types.StopInfo, error)) {
	e.mu.Lock()
	var events []event.Event
	if err != nil {
		// A failed prompt round-trip stays local to this call.
		if e.state == StatePrompting || e.state == StateGenerating {
			if ev := e.setState(StateIdle); ev != nil {
				events = append(events, *ev)
			}
		}
		e.mu.Unlock()
		e.publish(events)
		if cb != nil {
			cb(nil, err)
		}
		return
	}

	if stop == nil {
		stop = &types.StopInfo{Reason: types.StopEndTurn}
	}
	// An explicit cancel already moved the machine to cancelled; the
	// terminal outcome still gets reported but does not reopen idle.
	if e.state != StateCancelled && e.state != StateError {
		if ev := e.setState(StateIdle); ev != nil {
			events = append(events, *ev)
		}
	}
	e.mu.Unlock()

	events = append(events, event.Event{Type: event.Stopped, Data: event.StoppedData{Stop: *stop}})
	e.publish(events)
	if cb != nil {
		cb(stop, nil)
	}
}

// Cancel requests cancellation of the in-flight turn. It transitions to
// cancelled immediately and forwards a fire-and-forget notification; the
// agent may keep emitting updates afterwards and they are dispatched
// normally. Pending permission requests are answered with a cancelled
// outcome so the agent is never left awaiting a decision.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	if e.conn == nil {
		e.mu.Unlock()
		return ErrNotConnected
	}
	if e.sessionID == "" {
		e.mu.Unlock()
		return ErrNoSession
	}

	pending := make([]*PermissionRequest, 0, len(e.pendingPerms))
	for _, req := range e.pendingPerms {
		pending = append(pending, req)
	}

	ev := e.setState(StateCancelled)
	conn := e.conn
	sessionID := e.sessionID
	e.mu.Unlock()

	if ev != nil {
		e.bus.Publish(*ev)
	}
	for _, req := range pending {
		req.Respond("", true)
	}
	if err := conn.CancelSession(sessionID); err != nil {
		// Advisory: the transport will still deliver a terminal outcome
		// for the racing prompt.
		e.log.Warn().Err(err).Msg("cancel notification failed")
	}
	return nil
}

// ListSessions forwards to the connection.
func (e *Engine) ListSessions(cb func([]types.SessionInfo, error)) {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		if cb != nil {
			cb(nil, ErrNotConnected)
		}
		return
	}
	conn.ListSessions(cb)
}

// handlePermission registers a pending approval request and republishes
// it to observers. The stored Respond wrapper removes the request from
// the pending set no matter who answers first.
func (e *Engine) handlePermission(req *PermissionRequest) {
	inner := req.Respond
	e.mu.Lock()
	wrapped := *req
	wrapped.Respond = func(optionID string, cancelled bool) {
		e.mu.Lock()
		_, still := e.pendingPerms[req.ID]
		delete(e.pendingPerms, req.ID)
		e.mu.Unlock()
		if still {
			inner(optionID, cancelled)
		}
	}
	e.pendingPerms[req.ID] = &wrapped
	e.mu.Unlock()

	e.bus.Publish(event.Event{Type: event.PermissionRequested, Data: event.PermissionRequestedData{Request: &wrapped}})
}

// RespondPermission answers a pending approval request by id. Returns
// false when the id is unknown or already answered.
func (e *Engine) RespondPermission(id, optionID string, cancelled bool) bool {
	e.mu.Lock()
	req, ok := e.pendingPerms[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	req.Respond(optionID, cancelled)
	return true
}

// PendingPermissions returns the ids of unanswered approval requests.
func (e *Engine) PendingPermissions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.pendingPerms))
	for id := range e.pendingPerms {
		ids = append(ids, id)
	}
	return ids
}
