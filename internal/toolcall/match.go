package toolcall

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher detects semantically special tool calls through a configurable
// allow-list of glob patterns over the call's kind and title, instead of
// ad-hoc regexes on display strings. Matching is case-insensitive.
type Matcher struct {
	writePlan []string
	planMode  []string
}

// DefaultWritePlanPatterns cover the todo/plan-write tools the common
// agents advertise.
var DefaultWritePlanPatterns = []string{
	"todowrite",
	"*todo*",
	"*write*plan*",
	"*update*plan*",
}

// DefaultPlanModePatterns cover plan-mode entry/exit tools.
var DefaultPlanModePatterns = []string{
	"*plan*mode*",
	"*exit*plan*",
	"plan",
}

// NewMatcher builds a matcher from pattern allow-lists. Nil lists fall
// back to the defaults.
func NewMatcher(writePlan, planMode []string) *Matcher {
	if writePlan == nil {
		writePlan = DefaultWritePlanPatterns
	}
	if planMode == nil {
		planMode = DefaultPlanModePatterns
	}
	return &Matcher{writePlan: writePlan, planMode: planMode}
}

// IsWritePlan reports whether the call writes the agent's plan.
func (m *Matcher) IsWritePlan(kind, title string) bool {
	return matchAny(m.writePlan, kind) || matchAny(m.writePlan, title)
}

// IsPlanMode reports whether the call flips plan-mode presentation.
func (m *Matcher) IsPlanMode(kind, title string) bool {
	return matchAny(m.planMode, kind) || matchAny(m.planMode, title)
}

func matchAny(patterns []string, s string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, p := range patterns {
		if ok, err := doublestar.Match(strings.ToLower(p), s); err == nil && ok {
			return true
		}
	}
	return false
}
