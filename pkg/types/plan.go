package types

// PlanStatus is the tri-state status of a plan entry.
type PlanStatus string

const (
	PlanStatusPending    PlanStatus = "pending"
	PlanStatusInProgress PlanStatus = "in_progress"
	PlanStatusCompleted  PlanStatus = "completed"
)

// PlanEntry is one task in the agent's current plan.
type PlanEntry struct {
	Content  string     `json:"content"`
	Status   PlanStatus `json:"status"`
	Priority string     `json:"priority,omitempty"`
}

// TodoItem is a plan entry paired with its 1-based position in the
// current plan snapshot. Positions are not stable across plan replacements.
type TodoItem struct {
	ID       int        `json:"id"`
	Content  string     `json:"content"`
	Status   PlanStatus `json:"status"`
	Priority string     `json:"priority,omitempty"`
}
