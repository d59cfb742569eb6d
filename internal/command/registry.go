// Package command provides the registry for slash commands an agent
// advertises dynamically during a session. The engine is handed a
// Registry at construction and publishes into it explicitly; there is no
// module-global command table.
package command

import (
	"sort"
	"strings"
	"sync"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// Registry holds the currently advertised commands.
type Registry struct {
	mu       sync.RWMutex
	commands []types.CommandInfo

	nextID   uint64
	onChange map[uint64]func([]types.CommandInfo)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		onChange: make(map[uint64]func([]types.CommandInfo)),
	}
}

// Replace swaps in the full advertised command list, preserving the
// agent's declaration order.
func (r *Registry) Replace(cmds []types.CommandInfo) {
	r.mu.Lock()
	r.commands = append([]types.CommandInfo(nil), cmds...)
	listeners := make([]func([]types.CommandInfo), 0, len(r.onChange))
	for _, fn := range r.onChange {
		listeners = append(listeners, fn)
	}
	snapshot := append([]types.CommandInfo(nil), r.commands...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// List returns the advertised commands in declaration order.
func (r *Registry) List() []types.CommandInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]types.CommandInfo(nil), r.commands...)
}

// Names returns the sorted command names, for completion surfaces.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.commands))
	for i, c := range r.commands {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

// Get looks up a command by name.
func (r *Registry) Get(name string) (types.CommandInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		if c.Name == name {
			return c, true
		}
	}
	return types.CommandInfo{}, false
}

// OnChange registers a listener invoked with each full replacement.
// Returns an unsubscribe function.
func (r *Registry) OnChange(fn func([]types.CommandInfo)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.onChange[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.onChange, id)
	}
}

// Invocation is a parsed slash-command input.
type Invocation struct {
	Command types.CommandInfo
	Args    string
}

// Parse interprets "/name rest of line" against the registry. Returns
// false for input that is not a known slash command.
func (r *Registry) Parse(input string) (*Invocation, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil, false
	}
	name, args, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	cmd, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	return &Invocation{Command: cmd, Args: strings.TrimSpace(args)}, true
}
