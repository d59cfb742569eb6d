package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/acpthread/internal/engine"
	"github.com/opencode-ai/acpthread/internal/logging"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// Timeouts for the request/response methods. Prompt turns are unbounded
// and governed by cancellation instead.
const (
	initializeTimeout = 15 * time.Second
	sessionTimeout    = 60 * time.Second
	requestTimeout    = 30 * time.Second
)

// Config describes the agent process to spawn.
type Config struct {
	// Command is the argv of the agent process.
	Command []string
	// Cwd is the working directory the process starts in.
	Cwd string
	// Env is appended to the inherited environment.
	Env []string
}

// Client talks the agent-client protocol to a spawned agent process.
// It implements engine.Connection.
type Client struct {
	mu   sync.Mutex
	cfg  Config
	cmd  *exec.Cmd
	conn *rpcConn
	log  zerolog.Logger

	connected bool
	ready     bool
	canLoad   bool

	modes         []types.Mode
	currentModeID string
	configOptions []types.ConfigOption

	updateHandler        func(sessionID string, upd *types.SessionUpdate)
	permissionHandler    func(req *engine.PermissionRequest)
	modeChangedHandler   func(modeID string)
	configOptionsHandler func(opts []types.ConfigOption)
}

var _ engine.Connection = (*Client)(nil)

// NewClient creates an unconnected client for the given agent command.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		log: logging.Component("acp"),
	}
}

// Connect spawns the agent process and performs protocol
// initialization, retrying transient spawn failures with exponential
// backoff. cb fires once with the outcome.
func (c *Client) Connect(cb func(error)) {
	go func() {
		policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		err := backoff.Retry(func() error {
			return c.connectOnce()
		}, policy)
		if cb != nil {
			cb(err)
		}
	}()
}

func (c *Client) connectOnce() error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	cfg := c.cfg
	c.mu.Unlock()

	if len(cfg.Command) == 0 {
		return backoff.Permanent(errors.New("acp: no agent command configured"))
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)
	cmd.Dir = cfg.Cwd
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	// Agent diagnostics go to stderr; surface them in our log.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			c.log.Debug().Str("agent", cfg.Command[0]).Msg(scanner.Text())
		}
	}()

	conn := newRPCConn(stdout, stdin, c.handleInbound, c.log)
	conn.onClose = func(err error) {
		c.mu.Lock()
		c.connected = false
		c.ready = false
		c.mu.Unlock()
		if err != nil {
			c.log.Warn().Err(err).Msg("agent connection lost")
		}
	}
	go conn.readLoop()

	ctx, cancel := context.WithTimeout(context.Background(), initializeTimeout)
	defer cancel()

	var init initializeResult
	params := initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    clientCapabilities{FS: fsCapabilities{}},
	}
	if err := conn.call(ctx, methodInitialize, params, &init); err != nil {
		conn.close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("initialize: %w", err)
	}

	c.mu.Lock()
	c.cmd = cmd
	c.conn = conn
	c.connected = true
	c.ready = true
	c.canLoad = init.Capabilities.LoadSession
	c.mu.Unlock()

	c.log.Info().
		Str("agent", cfg.Command[0]).
		Int("protocolVersion", init.ProtocolVersion).
		Bool("loadSession", init.Capabilities.LoadSession).
		Msg("agent connected")
	return nil
}

// Disconnect tears down the process and connection.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	cmd := c.cmd
	c.conn = nil
	c.cmd = nil
	c.connected = false
	c.ready = false
	c.mu.Unlock()

	if conn != nil {
		conn.close()
	}
	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}
	return nil
}

// IsConnected reports whether the agent process is alive.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// IsReady reports whether initialization completed.
func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Client) liveConn() (*rpcConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.ready {
		return nil, ErrConnClosed
	}
	return c.conn, nil
}

// CreateSession asks the agent for a fresh session.
func (c *Client) CreateSession(cwd string, servers []types.MCPServerConfig, cb func(*engine.SessionResult, error)) {
	go func() {
		conn, err := c.liveConn()
		if err != nil {
			cb(nil, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
		defer cancel()

		var res sessionResult
		params := newSessionParams{Cwd: cwd, MCPServers: mcpParams(servers)}
		if err := conn.call(ctx, methodSessionNew, params, &res); err != nil {
			cb(nil, err)
			return
		}
		cb(c.adoptSession(&res), nil)
	}()
}

// LoadSession resumes an existing session; replayed history arrives as
// ordinary session/update notifications during the call.
func (c *Client) LoadSession(id, cwd string, servers []types.MCPServerConfig, cb func(*engine.SessionResult, error)) {
	go func() {
		c.mu.Lock()
		canLoad := c.canLoad
		c.mu.Unlock()
		if !canLoad {
			cb(nil, errors.New("acp: agent does not support session loading"))
			return
		}

		conn, err := c.liveConn()
		if err != nil {
			cb(nil, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), sessionTimeout)
		defer cancel()

		var res sessionResult
		params := loadSessionParams{SessionID: id, Cwd: cwd, MCPServers: mcpParams(servers)}
		if err := conn.call(ctx, methodSessionLoad, params, &res); err != nil {
			cb(nil, err)
			return
		}
		if res.SessionID == "" {
			res.SessionID = id
		}
		cb(c.adoptSession(&res), nil)
	}()
}

// adoptSession caches the mode/config state a session result advertises.
func (c *Client) adoptSession(res *sessionResult) *engine.SessionResult {
	out := &engine.SessionResult{
		SessionID:     res.SessionID,
		ConfigOptions: res.ConfigOptions,
	}
	if res.Modes != nil {
		out.Modes = res.Modes.AvailableModes
		out.CurrentModeID = res.Modes.CurrentModeID
	}

	c.mu.Lock()
	c.modes = append([]types.Mode(nil), out.Modes...)
	c.currentModeID = out.CurrentModeID
	c.configOptions = append([]types.ConfigOption(nil), res.ConfigOptions...)
	c.mu.Unlock()
	return out
}

// SendPrompt submits one prompt turn. The call has no deadline: turns
// end when the agent stops or the session is cancelled.
//
// session/prompt carries no mode on this wire; the mode is session
// state set through session/set_mode. When the requested mode differs
// from the agent's current one, the switch is issued first so the turn
// runs under the caller's mode.
func (c *Client) SendPrompt(sessionID string, blocks []types.Block, modeID string, cb func(*types.StopInfo, error)) {
	go func() {
		conn, err := c.liveConn()
		if err != nil {
			cb(nil, err)
			return
		}

		c.mu.Lock()
		current := c.currentModeID
		c.mu.Unlock()
		if modeID != "" && modeID != current {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			err := conn.call(ctx, methodSetMode, setModeParams{SessionID: sessionID, ModeID: modeID}, nil)
			cancel()
			if err != nil {
				cb(nil, err)
				return
			}
			c.mu.Lock()
			c.currentModeID = modeID
			c.mu.Unlock()
		}

		prompt := make([]json.RawMessage, 0, len(blocks))
		for _, b := range blocks {
			raw, merr := json.Marshal(b)
			if merr != nil {
				cb(nil, merr)
				return
			}
			prompt = append(prompt, raw)
		}

		var res promptResult
		params := promptParams{SessionID: sessionID, Prompt: prompt}
		if err := conn.call(context.Background(), methodSessionPrompt, params, &res); err != nil {
			cb(nil, err)
			return
		}
		cb(&types.StopInfo{Reason: res.StopReason}, nil)
	}()
}

// CancelSession sends the fire-and-forget cancellation notification.
func (c *Client) CancelSession(sessionID string) error {
	conn, err := c.liveConn()
	if err != nil {
		return err
	}
	return conn.notify(methodSessionCancel, cancelParams{SessionID: sessionID})
}

// ListSessions asks the agent for resumable sessions. Agents that do
// not implement the method report an empty list, not an error.
func (c *Client) ListSessions(cb func([]types.SessionInfo, error)) {
	go func() {
		conn, err := c.liveConn()
		if err != nil {
			cb(nil, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var res listSessionsResult
		if err := conn.call(ctx, methodSessionList, nil, &res); err != nil {
			var rpcErr *rpcError
			if errors.As(err, &rpcErr) && rpcErr.Code == codeMethodNotFound {
				cb(nil, nil)
				return
			}
			cb(nil, err)
			return
		}
		cb(res.Sessions, nil)
	}()
}

// SetMode switches the session mode.
func (c *Client) SetMode(sessionID, modeID string, cb func(error)) {
	go func() {
		conn, err := c.liveConn()
		if err != nil {
			cb(err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		err = conn.call(ctx, methodSetMode, setModeParams{SessionID: sessionID, ModeID: modeID}, nil)
		if err == nil {
			c.mu.Lock()
			c.currentModeID = modeID
			c.mu.Unlock()
		}
		cb(err)
	}()
}

// SetConfigOption sets a session configuration option.
func (c *Client) SetConfigOption(sessionID, optionID, valueID string, cb func(error)) {
	go func() {
		conn, err := c.liveConn()
		if err != nil {
			cb(err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		params := setConfigOptionParams{SessionID: sessionID, OptionID: optionID, ValueID: valueID}
		cb(conn.call(ctx, methodSetConfigOption, params, nil))
	}()
}

// HasModes reports whether the agent advertised any modes.
func (c *Client) HasModes() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.modes) > 0
}

// Modes returns the advertised modes.
func (c *Client) Modes() []types.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Mode(nil), c.modes...)
}

// CurrentModeID returns the active mode id.
func (c *Client) CurrentModeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentModeID
}

// ModeByID looks up an advertised mode.
func (c *Client) ModeByID(id string) (types.Mode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.modes {
		if m.ID == id {
			return m, true
		}
	}
	return types.Mode{}, false
}

// ConfigOptions returns the advertised config options.
func (c *Client) ConfigOptions() []types.ConfigOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ConfigOption(nil), c.configOptions...)
}

// SetUpdateHandler installs the sink for streamed session updates.
func (c *Client) SetUpdateHandler(fn func(sessionID string, upd *types.SessionUpdate)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateHandler = fn
}

// SetPermissionHandler installs the sink for approval requests.
func (c *Client) SetPermissionHandler(fn func(req *engine.PermissionRequest)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permissionHandler = fn
}

// SetModeChangedHandler installs the sink for agent-initiated mode
// switches.
func (c *Client) SetModeChangedHandler(fn func(modeID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modeChangedHandler = fn
}

// SetConfigOptionsChangedHandler installs the sink for config-option
// refreshes.
func (c *Client) SetConfigOptionsChangedHandler(fn func(opts []types.ConfigOption)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configOptionsHandler = fn
}

// handleInbound serves agent-initiated traffic. It runs off the read
// loop, so blocking on a permission decision is safe.
func (c *Client) handleInbound(method string, id *int64, params json.RawMessage) (any, error) {
	switch method {
	case methodSessionUpdate:
		var p sessionUpdateParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		c.applyUpdate(&p)
		return nil, nil

	case methodRequestPermission:
		var p permissionParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return c.servePermission(&p)

	default:
		return nil, &rpcError{Code: codeMethodNotFound, Message: "method not found: " + method}
	}
}

func (c *Client) applyUpdate(p *sessionUpdateParams) {
	if p.Update == nil {
		return
	}

	c.mu.Lock()
	updateFn := c.updateHandler
	modeFn := c.modeChangedHandler
	optsFn := c.configOptionsHandler
	switch p.Update.Kind {
	case types.UpdateCurrentMode:
		c.currentModeID = p.Update.ModeID
	case types.UpdateConfigOptions:
		c.configOptions = append([]types.ConfigOption(nil), p.Update.ConfigOptions...)
	}
	c.mu.Unlock()

	// Mode and config-option updates fan out on their dedicated hooks as
	// well as the general update path.
	switch p.Update.Kind {
	case types.UpdateCurrentMode:
		if modeFn != nil {
			modeFn(p.Update.ModeID)
			return
		}
	case types.UpdateConfigOptions:
		if optsFn != nil {
			optsFn(p.Update.ConfigOptions)
			return
		}
	}
	if updateFn != nil {
		updateFn(p.SessionID, p.Update)
	}
}

// servePermission blocks until the engine (or a cancel) answers.
func (c *Client) servePermission(p *permissionParams) (any, error) {
	c.mu.Lock()
	handler := c.permissionHandler
	c.mu.Unlock()
	if handler == nil {
		return permissionResult{Outcome: permissionOutcome{Outcome: "cancelled"}}, nil
	}

	opts := make([]engine.PermissionOption, 0, len(p.Options))
	for _, o := range p.Options {
		opts = append(opts, engine.PermissionOption{ID: o.OptionID, Name: o.Name, Kind: o.Kind})
	}

	type answer struct {
		optionID  string
		cancelled bool
	}
	done := make(chan answer, 1)
	req := &engine.PermissionRequest{
		ID:        ulid.Make().String(),
		SessionID: p.SessionID,
		ToolCall:  p.ToolCall,
		Options:   opts,
		Respond: func(optionID string, cancelled bool) {
			select {
			case done <- answer{optionID, cancelled}:
			default:
			}
		},
	}
	handler(req)

	a := <-done
	if a.cancelled {
		return permissionResult{Outcome: permissionOutcome{Outcome: "cancelled"}}, nil
	}
	return permissionResult{Outcome: permissionOutcome{Outcome: "selected", OptionID: a.optionID}}, nil
}

func mcpParams(servers []types.MCPServerConfig) []mcpServerParam {
	out := make([]mcpServerParam, 0, len(servers))
	for _, s := range servers {
		p := mcpServerParam{Name: s.Name, Command: s.Command, Args: s.Args}
		for name, value := range s.Env {
			p.Env = append(p.Env, envVarParam{Name: name, Value: value})
		}
		out = append(out, p)
	}
	return out
}
