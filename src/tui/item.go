package tui

import (
	"time"

	"stackline/src/contracts"
)

// Item is one action of the watched execution. It implements bubbles/list.Item.
type Item struct {
	Stage    string
	Action   string
	Category string
	Status   string
	Message  string
	Updated  time.Time

	// History holds every state change seen for the action, oldest first.
	History []string
}

// FilterValue is the value used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Stage + "/" + i.Action }

// Title returns the primary text for the item (required by list.Item).
func (i Item) Title() string { return i.Action }

// Description returns the secondary text for the item (required by list.Item).
func (i Item) Description() string { return i.Stage }

// statusFromState maps a state change to an execution status.
func statusFromState(state string) string {
	switch state {
	case contracts.StateStarted:
		return contracts.StatusInProgress
	case contracts.StateSucceeded:
		return contracts.StatusSucceeded
	case contracts.StateFailed:
		return contracts.StatusFailed
	case contracts.StateCanceled, contracts.StateSuperseded:
		return contracts.StatusStopped
	default:
		return contracts.StatusPending
	}
}

func statusIcon(status string) string {
	switch status {
	case contracts.StatusInProgress:
		return "●"
	case contracts.StatusSucceeded:
		return "✓"
	case contracts.StatusFailed:
		return "✗"
	case contracts.StatusStopped:
		return "■"
	default:
		return "○"
	}
}
