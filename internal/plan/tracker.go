// Package plan tracks the agent's current task list. The list is
// replaced wholesale on every update, either from an explicit plan event
// or from an intercepted write-plan tool call.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/opencode-ai/acpthread/pkg/types"
)

// progressMaxLen caps the task excerpt in the progress string.
const progressMaxLen = 40

// Tracker holds the current plan snapshot.
type Tracker struct {
	mu      sync.RWMutex
	entries []types.PlanEntry
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Replace swaps in a new plan snapshot. The previous entries are
// discarded entirely; there is no merging.
func (t *Tracker) Replace(entries []types.PlanEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append([]types.PlanEntry(nil), entries...)
}

// rawTodoList matches the structured input of a write-plan tool call.
// Agents disagree on the envelope key, so all common ones are accepted.
type rawTodoList struct {
	Todos   []rawTodo `json:"todos"`
	Entries []rawTodo `json:"entries"`
	Plan    []rawTodo `json:"plan"`
}

type rawTodo struct {
	Content     string `json:"content"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

// ReplaceFromToolInput parses an intercepted tool-call input that
// structurally resembles a todo list and replaces the plan with it.
// Returns false if the payload has no recognizable list.
func (t *Tracker) ReplaceFromToolInput(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var list rawTodoList
	items := list.Todos
	if err := json.Unmarshal(raw, &list); err == nil {
		switch {
		case len(list.Todos) > 0:
			items = list.Todos
		case len(list.Entries) > 0:
			items = list.Entries
		case len(list.Plan) > 0:
			items = list.Plan
		}
	}
	if len(items) == 0 {
		// Some agents send the list bare.
		if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
			return false
		}
	}

	entries := make([]types.PlanEntry, 0, len(items))
	for _, item := range items {
		content := item.Content
		if content == "" {
			content = item.Description
		}
		if content == "" {
			continue
		}
		entries = append(entries, types.PlanEntry{
			Content:  content,
			Status:   normalizeStatus(item.Status),
			Priority: item.Priority,
		})
	}
	if len(entries) == 0 {
		return false
	}

	t.Replace(entries)
	return true
}

// normalizeStatus maps loose status spellings onto the tri-state.
func normalizeStatus(s string) types.PlanStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "done":
		return types.PlanStatusCompleted
	case "in_progress", "in-progress", "active", "doing":
		return types.PlanStatusInProgress
	default:
		return types.PlanStatusPending
	}
}

// Entries returns a copy of the current plan.
func (t *Tracker) Entries() []types.PlanEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]types.PlanEntry(nil), t.entries...)
}

// Todos returns the plan as positional todo items. IDs are 1-based
// indexes into the current snapshot and do not survive a replacement.
func (t *Tracker) Todos() []types.TodoItem {
	t.mu.RLock()
	defer t.mu.RUnlock()

	todos := make([]types.TodoItem, len(t.entries))
	for i, e := range t.entries {
		todos[i] = types.TodoItem{
			ID:       i + 1,
			Content:  e.Content,
			Status:   e.Status,
			Priority: e.Priority,
		}
	}
	return todos
}

// Stats summarizes the current plan.
type Stats struct {
	Total      int
	Completed  int
	InProgress int
	Pending    int

	// Current is the first in-progress entry in plan order, or nil.
	Current *types.PlanEntry
}

// Stats derives counts and the active entry from the current snapshot.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var s Stats
	s.Total = len(t.entries)
	for i := range t.entries {
		switch t.entries[i].Status {
		case types.PlanStatusCompleted:
			s.Completed++
		case types.PlanStatusInProgress:
			s.InProgress++
			if s.Current == nil {
				e := t.entries[i]
				s.Current = &e
			}
		default:
			s.Pending++
		}
	}
	return s
}

// Progress renders a short "<completed>/<total>" progress string with the
// active task's content, truncated with an ellipsis when long.
func (t *Tracker) Progress() string {
	s := t.Stats()
	if s.Total == 0 {
		return ""
	}

	out := fmt.Sprintf("%d/%d", s.Completed, s.Total)
	if s.Current != nil {
		out += " " + truncate(s.Current.Content, progressMaxLen)
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// Markdown serializes the plan as a flat checklist. This is a stateless
// projection regenerated on demand.
func (t *Tracker) Markdown() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var sb strings.Builder
	for _, e := range t.entries {
		mark := " "
		switch e.Status {
		case types.PlanStatusCompleted:
			mark = "x"
		case types.PlanStatusInProgress:
			mark = "~"
		}
		fmt.Fprintf(&sb, "- [%s] %s\n", mark, e.Content)
	}
	return sb.String()
}
