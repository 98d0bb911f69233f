package calltree

import (
	"errors"
	"fmt"
)

// LoadingState is where a node is in its caller discovery lifecycle
type LoadingState uint8

const (
	// NotLoaded is the state of a freshly built or reset node
	NotLoaded LoadingState = iota
	// Expandable means the node may have callers that have not been searched yet
	Expandable
	// Loading means a discovery task currently owns the node
	Loading
	// Loaded means the callers list is the result of a finished discovery
	Loaded
	// Error means the last discovery failed; the node can be retried
	Error
)

func (s LoadingState) String() string {
	switch s {
	case NotLoaded:
		return "NOT_LOADED"
	case Expandable:
		return "EXPANDABLE"
	case Loading:
		return "LOADING"
	case Loaded:
		return "LOADED"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("LoadingState(%d)", uint8(s))
	}
}

// MarshalText lets states appear by name in JSON output
func (s LoadingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives a LoadingState transition
type Event uint8

const (
	// EventQueued fires when a discovery task is accepted for the node
	EventQueued Event = iota
	// EventStarted fires when a worker picks the task up
	EventStarted
	// EventCompleted fires when callers are known, from a task or a cache hit
	EventCompleted
	// EventFailed fires when the task errors or times out
	EventFailed
	// EventReset fires on retry preparation and cancellation cleanup
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventQueued:
		return "queued"
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("Event(%d)", uint8(e))
	}
}

// ErrInvalidTransition is returned for events that make no sense in the current state
var ErrInvalidTransition = errors.New("invalid loading state transition")

// Transition returns the state that follows current when e happens.
// It has no side effects; Node.Apply layers the per-state field updates on top.
//
//	NOT_LOADED -> EXPANDABLE -> LOADING -> LOADED | ERROR
//	ERROR -> LOADING        (retry)
//	LOADED -> LOADED        (refresh)
//
// A cache hit completes a node that never entered LOADING, and a reset is
// accepted from every state.
func Transition(current LoadingState, e Event) (LoadingState, error) {
	switch e {
	case EventReset:
		return NotLoaded, nil
	case EventQueued:
		if current == Loading {
			break
		}
		return Expandable, nil
	case EventStarted:
		switch current {
		case NotLoaded, Expandable, Error:
			return Loading, nil
		}
	case EventCompleted:
		return Loaded, nil
	case EventFailed:
		if current == Loading {
			return Error, nil
		}
	}
	return current, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, current)
}
