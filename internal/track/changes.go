package track

import (
	"encoding/json"
	"regexp"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/opencode-ai/acpthread/internal/event"
	"github.com/opencode-ai/acpthread/pkg/types"
)

// FileChange is the accumulated change record for one file.
type FileChange struct {
	Path      string `json:"path"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Writes    int    `json:"writes"`
	Before    string `json:"-"`
	After     string `json:"-"`
}

// writeKinds are the tool kinds that modify files.
var writeKinds = map[string]bool{
	"edit":   true,
	"write":  true,
	"create": true,
	"delete": true,
	"move":   true,
}

// titleRe extracts the path from display titles like "Edit(src/a.lua)".
var titleRe = regexp.MustCompile(`(?i)^(edit|write|create|update)\(([^)]+)\)`)

// ChangeTracker derives per-file diff statistics from completed write
// tool calls, using their before/after snapshots when present. It
// publishes a file.changed event per observed write.
type ChangeTracker struct {
	mu      sync.RWMutex
	bus     *event.Bus
	changes map[string]*FileChange
	order   []string
	counted map[string]bool
	dmp     *diffmatchpatch.DiffMatchPatch
	unsub   func()
}

// NewChangeTracker subscribes a tracker to the bus.
func NewChangeTracker(bus *event.Bus) *ChangeTracker {
	t := &ChangeTracker{
		bus:     bus,
		changes: make(map[string]*FileChange),
		counted: make(map[string]bool),
		dmp:     diffmatchpatch.New(),
	}
	t.unsub = bus.Subscribe(event.ToolCallUpdated, func(ev event.Event) {
		data, ok := ev.Data.(event.ToolCallUpdatedData)
		if !ok || data.Record == nil {
			return
		}
		t.observe(data.Record)
	})
	return t
}

// toolInput is the loose shape of write-tool payloads across agents.
type toolInput struct {
	Path     string `json:"path"`
	FilePath string `json:"file_path"`
	AbsPath  string `json:"abs_path"`
	OldText  string `json:"old_string"`
	OldText2 string `json:"oldText"`
	NewText  string `json:"new_string"`
	NewText2 string `json:"newText"`
	Content  string `json:"content"`
}

func (in *toolInput) path() string {
	switch {
	case in.Path != "":
		return in.Path
	case in.FilePath != "":
		return in.FilePath
	default:
		return in.AbsPath
	}
}

func (in *toolInput) before() string {
	if in.OldText != "" {
		return in.OldText
	}
	return in.OldText2
}

func (in *toolInput) after() string {
	switch {
	case in.NewText != "":
		return in.NewText
	case in.NewText2 != "":
		return in.NewText2
	default:
		return in.Content
	}
}

// observe records a write once its tool call completes. Terminal updates
// may be replayed; each tool-call id counts exactly once.
func (t *ChangeTracker) observe(rec *types.ToolCallRecord) {
	if rec.Status != types.ToolStatusCompleted {
		return
	}

	path, before, after, ok := extract(rec)
	if !ok {
		return
	}

	adds, dels := t.lineStats(before, after)

	t.mu.Lock()
	if rec.ID != "" {
		if t.counted[rec.ID] {
			t.mu.Unlock()
			return
		}
		t.counted[rec.ID] = true
	}
	fc, exists := t.changes[path]
	if !exists {
		fc = &FileChange{Path: path}
		t.changes[path] = fc
		t.order = append(t.order, path)
	}
	if fc.Before == "" && before != "" {
		fc.Before = before
	}
	fc.After = after
	fc.Additions += adds
	fc.Deletions += dels
	fc.Writes++
	snapshot := *fc
	t.mu.Unlock()

	t.bus.Publish(event.Event{Type: event.FileChanged, Data: event.FileChangedData{
		Path:      snapshot.Path,
		Additions: snapshot.Additions,
		Deletions: snapshot.Deletions,
	}})
}

// extract pulls the target path and snapshots out of a record, falling
// back to the display title when the input carries no path.
func extract(rec *types.ToolCallRecord) (path, before, after string, ok bool) {
	isWrite := writeKinds[rec.Kind] || titleRe.MatchString(rec.Title)
	if !isWrite {
		return "", "", "", false
	}

	var in toolInput
	if len(rec.RawInput) > 0 {
		_ = json.Unmarshal(rec.RawInput, &in)
	}

	path = in.path()
	if path == "" {
		if m := titleRe.FindStringSubmatch(rec.Title); m != nil {
			path = m[2]
		}
	}
	if path == "" {
		return "", "", "", false
	}
	return path, in.before(), in.after(), true
}

// lineStats counts added and removed lines between two snapshots.
func (t *ChangeTracker) lineStats(before, after string) (adds, dels int) {
	if before == "" && after == "" {
		return 0, 0
	}
	a, b, lines := t.dmp.DiffLinesToChars(before, after)
	diffs := t.dmp.DiffCharsToLines(t.dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			adds += n
		case diffmatchpatch.DiffDelete:
			dels += n
		}
	}
	return adds, dels
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	if s[len(s)-1] != '\n' {
		n++
	}
	return n
}

// Changes returns the tracked files in first-touched order.
func (t *ChangeTracker) Changes() []FileChange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FileChange, 0, len(t.order))
	for _, path := range t.order {
		out = append(out, *t.changes[path])
	}
	return out
}

// Change returns the record for one path.
func (t *ChangeTracker) Change(path string) (FileChange, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fc, ok := t.changes[path]
	if !ok {
		return FileChange{}, false
	}
	return *fc, true
}

// Close unsubscribes from the bus.
func (t *ChangeTracker) Close() {
	if t.unsub != nil {
		t.unsub()
	}
}
