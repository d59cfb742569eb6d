// Package engine implements the thread state machine: session lifecycle,
// streaming accumulation, tool-call tracking, plan extraction, and event
// dispatch. One Engine owns one Connection at a time and is the sole
// owner of its message history.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/acpthread/internal/command"
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/internal/logging"
	"github.com/opencode-ai/acpthread/internal/plan"
	"github.com/opencode-ai/acpthread/internal/toolcall"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// State is the engine's lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateConnecting      State = "connecting"
	StateSessionCreating State = "session_creating"
	StatePrompting       State = "prompting"
	StateGenerating      State = "generating"
	StateCancelled       State = "cancelled"
	StateError           State = "error"
)

var (
	// ErrNotConnected is returned when an operation needs a live transport.
	ErrNotConnected = errors.New("engine: not connected")
	// ErrNoSession is returned when an operation needs an established session.
	ErrNoSession = errors.New("engine: no active session")
	// ErrNoModes reports that the agent declared zero modes, so cycling
	// is unsupported. This is a reported condition, not a failure.
	ErrNoModes = errors.New("engine: agent declares no modes")
	// ErrUnknownMode is returned for a mode id the agent never advertised.
	ErrUnknownMode = errors.New("engine: unknown mode")
)

// Engine orchestrates one thread against one agent connection.
type Engine struct {
	mu   sync.Mutex
	conn Connection
	bus  *event.Bus
	log  zerolog.Logger

	// epoch invalidates callbacks from replaced connections: every
	// outstanding callback carries the epoch at issue time and is
	// dropped unexamined on mismatch.
	epoch atomic.Int64

	state     State
	sessionID string

	title          string
	tags           []string
	parentThreadID string

	history []*types.Message
	tools   *toolcall.Registry
	planned *plan.Tracker
	matcher *toolcall.Matcher

	commands *command.Registry

	modes         []types.Mode
	currentModeID string
	configOptions []types.ConfigOption
	defaultModeID string

	// lastEmitted is the running offset of text already delivered as raw
	// chunks. Single per engine: only one assistant message is ever the
	// active streaming target.
	lastEmitted int

	inPlanMode       bool
	planPresented    bool
	currentlyCalling bool

	pendingPerms map[string]*PermissionRequest

	cwd        string
	mcpServers []types.MCPServerConfig
}

// Option configures an Engine.
type Option func(*Engine)

// WithTitle sets the thread title.
func WithTitle(title string) Option {
	return func(e *Engine) { e.title = title }
}

// WithTags sets identity tags.
func WithTags(tags ...string) Option {
	return func(e *Engine) { e.tags = tags }
}

// WithCwd sets the working directory for session creation.
func WithCwd(cwd string) Option {
	return func(e *Engine) { e.cwd = cwd }
}

// WithMCPServers sets the server configs forwarded at session setup.
func WithMCPServers(servers []types.MCPServerConfig) Option {
	return func(e *Engine) { e.mcpServers = servers }
}

// WithDefaultMode sets the mode to select automatically after session
// creation, when the agent advertises it.
func WithDefaultMode(modeID string) Option {
	return func(e *Engine) { e.defaultModeID = modeID }
}

// WithMatcher overrides the plan-tool allow-list matcher.
func WithMatcher(m *toolcall.Matcher) Option {
	return func(e *Engine) { e.matcher = m }
}

// WithCommandRegistry hands the engine the registry it publishes
// dynamically advertised commands into.
func WithCommandRegistry(r *command.Registry) Option {
	return func(e *Engine) { e.commands = r }
}

// New creates an engine bound to conn. The engine installs its handlers
// on the connection immediately.
func New(conn Connection, opts ...Option) *Engine {
	e := &Engine{
		conn:         conn,
		bus:          event.NewBus(),
		log:          logging.Component("engine"),
		state:        StateIdle,
		tools:        toolcall.NewRegistry(),
		planned:      plan.NewTracker(),
		matcher:      toolcall.NewMatcher(nil, nil),
		pendingPerms: make(map[string]*PermissionRequest),
	}
	for _, opt := range opts {
		opt(e)
	}
	if conn != nil {
		e.installHandlers()
	}
	return e
}

// Bus exposes the engine's observer event bus.
func (e *Engine) Bus() *event.Bus {
	return e.bus
}

// installHandlers wires the current connection's callbacks through the
// epoch guard.
func (e *Engine) installHandlers() {
	epoch := e.epoch.Load()

	e.conn.SetUpdateHandler(func(sessionID string, upd *types.SessionUpdate) {
		if !e.sameEpoch(epoch) {
			return
		}
		e.HandleUpdate(sessionID, upd)
	})
	e.conn.SetPermissionHandler(func(req *PermissionRequest) {
		if !e.sameEpoch(epoch) {
			req.Respond("", true)
			return
		}
		e.handlePermission(req)
	})
	e.conn.SetModeChangedHandler(func(modeID string) {
		if !e.sameEpoch(epoch) {
			return
		}
		e.applyModeChange(modeID)
	})
	e.conn.SetConfigOptionsChangedHandler(func(opts []types.ConfigOption) {
		if !e.sameEpoch(epoch) {
			return
		}
		e.applyConfigOptions(opts)
	})
}

func (e *Engine) sameEpoch(epoch int64) bool {
	return e.epoch.Load() == epoch
}

// ReplaceConnection discards the current connection and adopts a new
// one. Every callback still in flight from the old connection becomes
// stale and is dropped by the epoch guard.
func (e *Engine) ReplaceConnection(conn Connection) {
	e.mu.Lock()
	old := e.conn
	e.conn = conn
	oldSession := e.sessionID
	e.sessionID = ""
	e.epoch.Add(1)
	e.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(); err != nil {
			e.log.Warn().Err(err).Msg("disconnect of replaced connection failed")
		}
	}
	if conn != nil {
		e.installHandlers()
	}
	if oldSession != "" {
		e.bus.Publish(event.Event{Type: event.SessionExpired, Data: event.SessionExpiredData{OldSessionID: oldSession}})
	}
}

// setState transitions the state machine and returns the notification to
// publish, or nil when the transition is a no-op. Callers hold e.mu.
func (e *Engine) setState(next State) *event.Event {
	if e.state == next {
		return nil
	}
	old := e.state
	e.state = next
	e.log.Debug().Str("old", string(old)).Str("new", string(next)).Msg("state change")
	return &event.Event{
		Type: event.StateChanged,
		Data: event.StateChangedData{New: string(next), Old: string(old)},
	}
}

// refreshPulse re-emits the current state with identical old/new values.
// Not a real transition: it exists purely to trigger observer re-render
// when a tool call mutates mid-generation. Callers hold e.mu.
func (e *Engine) refreshPulse() *event.Event {
	return &event.Event{
		Type: event.StateChanged,
		Data: event.StateChangedData{New: string(e.state), Old: string(e.state)},
	}
}

func (e *Engine) publish(events []event.Event) {
	for _, ev := range events {
		e.bus.Publish(ev)
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID returns the remote session id, empty before creation.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Title returns the thread title.
func (e *Engine) Title() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.title
}

// SetTitle updates the thread title.
func (e *Engine) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.title = title
}

// Tags returns the thread's identity tags.
func (e *Engine) Tags() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.tags...)
}

// ParentThreadID returns the fork back-reference, empty for root threads.
func (e *Engine) ParentThreadID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parentThreadID
}

// Messages returns a deep-copied snapshot of the history. Observers
// never receive mutation rights over engine-owned messages.
func (e *Engine) Messages() []*types.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*types.Message, len(e.history))
	for i, m := range e.history {
		out[i] = m.Clone()
	}
	return out
}

// MessageCount returns the history length.
func (e *Engine) MessageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// ToolCall returns a snapshot of the record for a tool-call id.
func (e *Engine) ToolCall(id string) (*types.ToolCallRecord, bool) {
	msg, ok := e.tools.Get(id)
	if !ok || msg.ToolCall == nil {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return msg.ToolCall.Clone(), true
}

// Plan returns the plan tracker. The tracker is internally synchronized
// and safe for concurrent reads.
func (e *Engine) Plan() *plan.Tracker {
	return e.planned
}

// Commands returns the attached command registry, nil when none was
// configured.
func (e *Engine) Commands() *command.Registry {
	return e.commands
}

// InPlanMode reports whether a plan-mode tool call was observed.
func (e *Engine) InPlanMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inPlanMode
}

// PlanPresented reports whether the plan-mode tool reached a terminal
// status, i.e. a plan was presented for review.
func (e *Engine) PlanPresented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.planPresented
}

// CurrentlyCalling reports whether any tool call is executing.
func (e *Engine) CurrentlyCalling() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentlyCalling
}

// newID generates a new message identifier.
func newID() string {
	return ulid.Make().String()
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}
