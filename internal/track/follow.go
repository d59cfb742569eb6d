// Package track contains read-only consumers of the engine's tool-call
// event stream: follow mode (active edit location) and the per-file
// change tracker. Neither has write access into engine state.
package track

import (
	"sync"

	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// Follower tracks the location the agent is currently working at, from
// the location hints attached to tool-call updates.
type Follower struct {
	mu      sync.RWMutex
	current *types.Location
	unsub   func()
}

// NewFollower subscribes a follower to the bus.
func NewFollower(bus *event.Bus) *Follower {
	f := &Follower{}
	f.unsub = bus.Subscribe(event.ToolCallUpdated, func(ev event.Event) {
		data, ok := ev.Data.(event.ToolCallUpdatedData)
		if !ok || data.Record == nil || len(data.Record.Locations) == 0 {
			return
		}
		loc := data.Record.Locations[len(data.Record.Locations)-1]
		f.mu.Lock()
		f.current = &loc
		f.mu.Unlock()
	})
	return f
}

// Current returns the most recent location hint.
func (f *Follower) Current() (types.Location, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current == nil {
		return types.Location{}, false
	}
	return *f.current, true
}

// Close unsubscribes from the bus.
func (f *Follower) Close() {
	if f.unsub != nil {
		f.unsub()
	}
}
