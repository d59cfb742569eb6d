package track

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// hunkContext is the number of unchanged lines kept around a change.
const hunkContext = 3

// Hunk is one reviewable span of a file's diff, in unified format.
type Hunk struct {
	OldStart int      `json:"oldStart"`
	OldCount int      `json:"oldCount"`
	NewStart int      `json:"newStart"`
	NewCount int      `json:"newCount"`
	Lines    []string `json:"lines"` // prefixed with ' ', '-' or '+'
}

// Header renders the @@ line for the hunk.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// Hunks splits the tracked change for path into unified-diff hunks.
// It is a pure projection of the stored snapshots: accepting or
// rejecting a hunk is the caller's business.
func (t *ChangeTracker) Hunks(path string) []Hunk {
	fc, ok := t.Change(path)
	if !ok {
		return nil
	}
	return ComputeHunks(fc.Before, fc.After)
}

type diffLine struct {
	op   byte // ' ', '-' or '+'
	text string
}

// ComputeHunks diffs two snapshots line-wise and groups the changes
// with hunkContext lines of context.
func ComputeHunks(before, after string) []Hunk {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	var lines []diffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		for _, text := range splitLines(d.Text) {
			lines = append(lines, diffLine{op: op, text: text})
		}
	}

	return groupHunks(lines)
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func groupHunks(lines []diffLine) []Hunk {
	var hunks []Hunk
	oldLine, newLine := 1, 1
	i := 0
	for i < len(lines) {
		if lines[i].op == ' ' {
			oldLine++
			newLine++
			i++
			continue
		}

		// Walk back for leading context.
		start := i
		ctx := 0
		for start > 0 && lines[start-1].op == ' ' && ctx < hunkContext {
			start--
			ctx++
		}

		h := Hunk{
			OldStart: oldLine - ctx,
			NewStart: newLine - ctx,
		}

		// Consume until a gap of more than 2*hunkContext unchanged lines.
		j := i
		lastChange := i
		for j < len(lines) {
			if lines[j].op != ' ' {
				lastChange = j
			} else if j-lastChange > 2*hunkContext {
				break
			}
			j++
		}
		end := lastChange + 1
		trail := 0
		for end < len(lines) && lines[end].op == ' ' && trail < hunkContext {
			end++
			trail++
		}

		for k := start; k < end; k++ {
			l := lines[k]
			h.Lines = append(h.Lines, string(l.op)+l.text)
			switch l.op {
			case ' ':
				h.OldCount++
				h.NewCount++
			case '-':
				h.OldCount++
			case '+':
				h.NewCount++
			}
			if k >= i {
				switch l.op {
				case ' ':
					oldLine++
					newLine++
				case '-':
					oldLine++
				case '+':
					newLine++
				}
			}
		}
		hunks = append(hunks, h)
		i = end
	}
	return hunks
}

// Unified renders the full unified diff for a tracked file.
func (t *ChangeTracker) Unified(path string) string {
	hunks := t.Hunks(path)
	if len(hunks) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, line := range h.Lines {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
