package engine

import (
	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/internal/plan"
	"github.com/opencode-ai/acpthread/internal/toolcall"
)

// Fork creates an independent engine seeded with a deep copy of this
// thread's history up to and including atMessageID (full history when
// empty). The fork carries a parent back-reference for lookup only: the
// parent can be discarded independently, and mutating either thread
// never affects the other.
//
// The fork starts without a connection; attach one with
// ReplaceConnection before creating its session.
func (e *Engine) Fork(atMessageID string) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()

	child := &Engine{
		bus:           event.NewBus(),
		log:           e.log,
		state:         StateIdle,
		tools:         toolcall.NewRegistry(),
		planned:       plan.NewTracker(),
		matcher:       e.matcher,
		commands:      e.commands,
		pendingPerms:  make(map[string]*PermissionRequest),
		cwd:           e.cwd,
		mcpServers:    e.mcpServers,
		defaultModeID: e.defaultModeID,
		title:         deriveForkTitle(e.title),
		tags:          append([]string(nil), e.tags...),
	}

	if e.sessionID != "" {
		child.parentThreadID = e.sessionID
	} else {
		child.parentThreadID = e.title
	}

	for _, msg := range e.history {
		child.history = append(child.history, msg.Clone())
		if msg.ID == atMessageID {
			break
		}
	}
	return child
}

func deriveForkTitle(title string) string {
	if title == "" {
		return "fork"
	}
	return title + " (fork)"
}
