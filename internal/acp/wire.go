// Package acp implements the agent-client protocol transport: a child
// agent process spoken to over newline-delimited JSON-RPC 2.0 on its
// stdio. It is the production implementation of the engine's Connection
// interface.
package acp

import (
	"encoding/json"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// protocolVersion is the protocol revision this client negotiates.
const protocolVersion = 1

// rpcMessage is the union shape of every frame on the wire. Requests
// carry ID and Method, responses carry ID and Result or Error,
// notifications carry Method only.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return e.Message
}

// JSON-RPC error codes used on this wire.
const (
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// Agent-bound method names.
const (
	methodInitialize      = "initialize"
	methodSessionNew      = "session/new"
	methodSessionLoad     = "session/load"
	methodSessionList     = "session/list"
	methodSessionPrompt   = "session/prompt"
	methodSessionCancel   = "session/cancel"
	methodSetMode         = "session/set_mode"
	methodSetConfigOption = "session/set_config_option"
)

// Client-bound method names.
const (
	methodSessionUpdate     = "session/update"
	methodRequestPermission = "session/request_permission"
)

type initializeParams struct {
	ProtocolVersion int                `json:"protocolVersion"`
	Capabilities    clientCapabilities `json:"clientCapabilities"`
}

type clientCapabilities struct {
	FS fsCapabilities `json:"fs"`
}

type fsCapabilities struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

type initializeResult struct {
	ProtocolVersion int               `json:"protocolVersion"`
	Capabilities    agentCapabilities `json:"agentCapabilities"`
}

type agentCapabilities struct {
	LoadSession bool `json:"loadSession"`
}

type mcpServerParam struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	Args    []string      `json:"args,omitempty"`
	Env     []envVarParam `json:"env,omitempty"`
}

type envVarParam struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type newSessionParams struct {
	Cwd        string           `json:"cwd"`
	MCPServers []mcpServerParam `json:"mcpServers"`
}

type loadSessionParams struct {
	SessionID  string           `json:"sessionId"`
	Cwd        string           `json:"cwd"`
	MCPServers []mcpServerParam `json:"mcpServers"`
}

type sessionModeState struct {
	CurrentModeID  string       `json:"currentModeId"`
	AvailableModes []types.Mode `json:"availableModes"`
}

type sessionResult struct {
	SessionID     string               `json:"sessionId"`
	Modes         *sessionModeState    `json:"modes,omitempty"`
	ConfigOptions []types.ConfigOption `json:"configOptions,omitempty"`
}

type listSessionsResult struct {
	Sessions []types.SessionInfo `json:"sessions"`
}

type promptParams struct {
	SessionID string            `json:"sessionId"`
	Prompt    []json.RawMessage `json:"prompt"`
}

type promptResult struct {
	StopReason types.StopReason `json:"stopReason"`
}

type cancelParams struct {
	SessionID string `json:"sessionId"`
}

type setModeParams struct {
	SessionID string `json:"sessionId"`
	ModeID    string `json:"modeId"`
}

type setConfigOptionParams struct {
	SessionID string `json:"sessionId"`
	OptionID  string `json:"optionId"`
	ValueID   string `json:"valueId"`
}

type sessionUpdateParams struct {
	SessionID string               `json:"sessionId"`
	Update    *types.SessionUpdate `json:"update"`
}

type permissionParams struct {
	SessionID string                  `json:"sessionId"`
	ToolCall  *types.ToolCallUpdate   `json:"toolCall"`
	Options   []permissionOptionParam `json:"options"`
}

type permissionOptionParam struct {
	OptionID string `json:"optionId"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
}

type permissionOutcome struct {
	Outcome  string `json:"outcome"` // "selected" | "cancelled"
	OptionID string `json:"optionId,omitempty"`
}

type permissionResult struct {
	Outcome permissionOutcome `json:"outcome"`
}
