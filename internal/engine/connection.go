package engine

import "github.com/opencode-ai/acpthread/pkg/types"

// Connection is the transport the engine drives. One implementation
// exists per backend; the engine is agnostic to which. All completion
// callbacks follow the (result, error) convention and may be invoked
// from any goroutine.
type Connection interface {
	// Connect establishes the transport and performs protocol
	// initialization. cb fires once with the outcome.
	Connect(cb func(error))

	// Disconnect tears the transport down. Callbacks issued before the
	// teardown may still fire; the engine drops them by epoch.
	Disconnect() error

	IsConnected() bool
	// IsReady reports whether initialization completed and sessions can
	// be created.
	IsReady() bool

	CreateSession(cwd string, servers []types.MCPServerConfig, cb func(*SessionResult, error))
	LoadSession(id, cwd string, servers []types.MCPServerConfig, cb func(*SessionResult, error))

	// SendPrompt submits one prompt turn. cb fires with the turn's stop
	// outcome after the agent finishes (or the turn fails).
	SendPrompt(sessionID string, blocks []types.Block, modeID string, cb func(*types.StopInfo, error))

	// CancelSession is a fire-and-forget notification, not a
	// request/response pair.
	CancelSession(sessionID string) error

	ListSessions(cb func([]types.SessionInfo, error))

	SetMode(sessionID, modeID string, cb func(error))
	SetConfigOption(sessionID, optionID, valueID string, cb func(error))

	HasModes() bool
	Modes() []types.Mode
	CurrentModeID() string
	ModeByID(id string) (types.Mode, bool)
	ConfigOptions() []types.ConfigOption

	// SetUpdateHandler installs the sink for streamed session updates.
	SetUpdateHandler(fn func(sessionID string, upd *types.SessionUpdate))
	// SetPermissionHandler installs the sink for approval requests the
	// agent sends while executing tools.
	SetPermissionHandler(fn func(req *PermissionRequest))
	SetModeChangedHandler(fn func(modeID string))
	SetConfigOptionsChangedHandler(fn func(opts []types.ConfigOption))
}

// SessionResult is returned by CreateSession/LoadSession.
type SessionResult struct {
	SessionID     string
	Modes         []types.Mode
	CurrentModeID string
	ConfigOptions []types.ConfigOption
}

// PermissionRequest is an approval round-trip initiated by the agent.
// Respond must be called exactly once; the engine answers pending
// requests with cancelled=true when the turn is cancelled so the agent
// is never left blocked on a decision that will not come.
type PermissionRequest struct {
	ID        string
	SessionID string
	ToolCall  *types.ToolCallUpdate
	Options   []PermissionOption

	Respond func(optionID string, cancelled bool)
}

// PermissionOption is one choice offered by an approval request.
type PermissionOption struct {
	ID   string `json:"optionId"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"` // "allow_once" | "allow_always" | "reject_once" | ...
}
