package event

import "github.com/opencode-ai/acpthread/pkg/types"

// StateChangedData is the data for thread.state events. Old equals New on
// the refresh pulse re-emitted when a tool call arrives mid-generation.
type StateChangedData struct {
	New string `json:"new"`
	Old string `json:"old"`
}

// MessagesAddedData is the data for thread.messages events. A batch holds
// every message created or updated by a single dispatch so observer
// rendering stays atomic.
type MessagesAddedData struct {
	Messages []*types.Message `json:"messages"`
}

// ChunkData is the data for thread.chunk events: the incremental suffix
// of streamed text since the last emission.
type ChunkData struct {
	Text string `json:"text"`
}

// PlanUpdatedData is the data for thread.plan events.
type PlanUpdatedData struct {
	Todos []types.TodoItem `json:"todos"`
}

// ModeChangedData is the data for thread.mode events.
type ModeChangedData struct {
	ModeID   string `json:"modeId"`
	ModeName string `json:"modeName"`
}

// CommandsUpdatedData is the data for thread.commands events.
type CommandsUpdatedData struct {
	Commands []types.CommandInfo `json:"commands"`
}

// ConfigOptionsChangedData is the data for thread.configoptions events.
type ConfigOptionsChangedData struct {
	Options []types.ConfigOption `json:"options"`
}

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	SessionID string `json:"sessionId"`
}

// SessionLoadedData is the data for session.loaded events.
type SessionLoadedData struct {
	SessionID string `json:"sessionId"`
	Replayed  int    `json:"replayed"` // messages rebuilt from the replay stream
}

// SessionExpiredData is the data for session.expired events.
type SessionExpiredData struct {
	OldSessionID string `json:"oldSessionId"`
}

// StoppedData is the data for thread.stopped events.
type StoppedData struct {
	Stop types.StopInfo `json:"stop"`
}

// ErrorData is the data for thread.error events.
type ErrorData struct {
	Err error  `json:"-"`
	Msg string `json:"message"`
}

// ToolCallUpdatedData is the data for toolcall.updated events, consumed
// by follow mode and the file-change tracker.
type ToolCallUpdatedData struct {
	Record *types.ToolCallRecord `json:"record"`
}

// PermissionRequestedData is the data for permission.requested events.
// Request is an *engine.PermissionRequest; typed loosely so this package
// does not depend on the engine.
type PermissionRequestedData struct {
	Request any `json:"-"`
}

// FileChangedData is the data for file.changed events.
type FileChangedData struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}
