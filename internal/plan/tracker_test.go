package plan

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/acpthread/pkg/types"
)

func TestTracker_ReplaceIsWholesale(t *testing.T) {
	tr := NewTracker()

	tr.Replace([]types.PlanEntry{
		{Content: "first", Status: types.PlanStatusCompleted},
		{Content: "second", Status: types.PlanStatusPending},
	})
	tr.Replace([]types.PlanEntry{
		{Content: "only", Status: types.PlanStatusInProgress},
	})

	entries := tr.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "only", entries[0].Content)
	assert.Equal(t, types.PlanStatusInProgress, entries[0].Status)
}

func TestTracker_ReplaceFromToolInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		ok      bool
		wantLen int
	}{
		{
			name:    "todos envelope",
			input:   `{"todos":[{"content":"a","status":"pending"},{"content":"b","status":"completed"}]}`,
			ok:      true,
			wantLen: 2,
		},
		{
			name:    "entries envelope",
			input:   `{"entries":[{"content":"a","status":"in_progress"}]}`,
			ok:      true,
			wantLen: 1,
		},
		{
			name:    "bare list with description field",
			input:   `[{"description":"task","status":"done"}]`,
			ok:      true,
			wantLen: 1,
		},
		{
			name:  "empty object",
			input: `{}`,
			ok:    false,
		},
		{
			name:  "unrelated payload",
			input: `{"command":"ls"}`,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			ok := tr.ReplaceFromToolInput(json.RawMessage(tt.input))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Len(t, tr.Entries(), tt.wantLen)
			}
		})
	}
}

func TestTracker_UnrecognizedInputKeepsPlan(t *testing.T) {
	tr := NewTracker()
	tr.Replace([]types.PlanEntry{{Content: "keep", Status: types.PlanStatusPending}})

	assert.False(t, tr.ReplaceFromToolInput(json.RawMessage(`{"path":"a.go"}`)))
	assert.Len(t, tr.Entries(), 1)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, types.PlanStatusCompleted, normalizeStatus("Done"))
	assert.Equal(t, types.PlanStatusCompleted, normalizeStatus("complete"))
	assert.Equal(t, types.PlanStatusInProgress, normalizeStatus("in-progress"))
	assert.Equal(t, types.PlanStatusInProgress, normalizeStatus("active"))
	assert.Equal(t, types.PlanStatusPending, normalizeStatus(""))
	assert.Equal(t, types.PlanStatusPending, normalizeStatus("queued"))
}

func TestTracker_Stats(t *testing.T) {
	tr := NewTracker()
	tr.Replace([]types.PlanEntry{
		{Content: "a", Status: types.PlanStatusCompleted},
		{Content: "b", Status: types.PlanStatusInProgress},
		{Content: "c", Status: types.PlanStatusInProgress},
		{Content: "d", Status: types.PlanStatusPending},
	})

	s := tr.Stats()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 2, s.InProgress)
	assert.Equal(t, 1, s.Pending)
	// First in-progress entry wins.
	require.NotNil(t, s.Current)
	assert.Equal(t, "b", s.Current.Content)
}

func TestTracker_Progress(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, "", tr.Progress())

	tr.Replace([]types.PlanEntry{
		{Content: "a", Status: types.PlanStatusCompleted},
		{Content: "short task", Status: types.PlanStatusInProgress},
	})
	assert.Equal(t, "1/2 short task", tr.Progress())

	long := strings.Repeat("x", 60)
	tr.Replace([]types.PlanEntry{{Content: long, Status: types.PlanStatusInProgress}})
	assert.Equal(t, "0/1 "+strings.Repeat("x", 40)+"…", tr.Progress())
}

func TestTracker_Todos_PositionalIDs(t *testing.T) {
	tr := NewTracker()
	tr.Replace([]types.PlanEntry{
		{Content: "a", Status: types.PlanStatusPending},
		{Content: "b", Status: types.PlanStatusPending},
	})

	todos := tr.Todos()
	require.Len(t, todos, 2)
	assert.Equal(t, 1, todos[0].ID)
	assert.Equal(t, 2, todos[1].ID)

	tr.Replace([]types.PlanEntry{{Content: "b", Status: types.PlanStatusPending}})
	todos = tr.Todos()
	require.Len(t, todos, 1)
	assert.Equal(t, 1, todos[0].ID)
}

func TestTracker_Markdown(t *testing.T) {
	tr := NewTracker()
	tr.Replace([]types.PlanEntry{
		{Content: "todo", Status: types.PlanStatusPending},
		{Content: "doing", Status: types.PlanStatusInProgress},
		{Content: "did", Status: types.PlanStatusCompleted},
	})

	assert.Equal(t, "- [ ] todo\n- [~] doing\n- [x] did\n", tr.Markdown())
}
