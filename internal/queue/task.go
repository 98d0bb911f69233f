package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/standardbeagle/callmap/internal/calltree"
)

// Priority orders discovery work. Higher values run first.
type Priority int

const (
	// Low is speculative background pre-expansion
	Low Priority = 1
	// Medium is for visible nodes the user has not expanded
	Medium Priority = 2
	// High is a user-initiated expansion
	High Priority = 3
)

func (p Priority) String() string {
	switch p {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

// ParsePriority accepts "high", "medium" or "low" in any case
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "":
		return High, nil
	case "medium":
		return Medium, nil
	case "low":
		return Low, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Runner is the body of a discovery task. It must honor ctx and may call
// progress with values in [0, 1].
type Runner func(ctx context.Context, task *Task, progress func(float64)) ([]*calltree.Node, error)

// Task is one "find callers of node X" unit of work
type Task struct {
	ID       string
	Node     *calltree.Node
	Priority Priority
	Depth    int
	MaxDepth int
	// Chain holds the method ids of the nodes this expansion descends from
	Chain     []calltree.MethodID
	CreatedAt time.Time

	OnProgress func(float64)
	OnComplete func([]*calltree.Node)
	OnError    func(error)

	seq   uint64
	index int
}

// MethodID returns the id of the target node
func (t *Task) MethodID() calltree.MethodID {
	if t.Node == nil {
		return ""
	}
	return t.Node.ID()
}

// Valid reports whether the task can still run
func (t *Task) Valid() bool {
	return t.Node != nil && !t.Node.IsLoading()
}

// Before reports whether t should run before o: higher priority first, then
// earlier creation.
func (t *Task) Before(o *Task) bool {
	if t.Priority != o.Priority {
		return t.Priority > o.Priority
	}
	if !t.CreatedAt.Equal(o.CreatedAt) {
		return t.CreatedAt.Before(o.CreatedAt)
	}
	return t.seq < o.seq
}

// Status is a snapshot of queue bookkeeping
type Status struct {
	Pending   int
	Active    int
	Completed int
	Failed    int
	Total     int
}

// IsIdle holds when nothing is queued or running
func (s Status) IsIdle() bool {
	return s.Pending == 0 && s.Active == 0
}

// Progress is the finished fraction of all tasks, 0 when there were none
func (s Status) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed+s.Failed) / float64(s.Total)
}

func (s Status) String() string {
	return fmt.Sprintf("pending=%d active=%d completed=%d failed=%d total=%d progress=%.0f%%",
		s.Pending, s.Active, s.Completed, s.Failed, s.Total, s.Progress()*100)
}

// MarshalJSON includes the derived fields
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Pending            int     `json:"pending"`
		Active             int     `json:"active"`
		Completed          int     `json:"completed"`
		Failed             int     `json:"failed"`
		Total              int     `json:"total"`
		IsIdle             bool    `json:"is_idle"`
		ProgressPercentage float64 `json:"progress_percentage"`
	}{s.Pending, s.Active, s.Completed, s.Failed, s.Total, s.IsIdle(), s.Progress() * 100})
}
