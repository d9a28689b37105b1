// Package evidence holds the three-state evidence lifecycle as a tagged enum with guard
// functions. Illegal moves such as purging an active item are rejected here, before any I/O.
package evidence

import (
	"strings"

	"github.com/pengaduan/pengaduan-backend/internal/apperr"
)

type State string

const (
	StateActive             State = "active"
	StateSoftDeleted        State = "soft_deleted"
	StatePermanentlyDeleted State = "permanently_deleted"
)

type Action string

const (
	ActionSoftDelete Action = "soft_delete"
	ActionRestore    Action = "restore"
	ActionPurge      Action = "purge"
)

// Target is the state an action moves evidence into.
func (a Action) Target() State {
	switch a {
	case ActionSoftDelete:
		return StateSoftDeleted
	case ActionRestore:
		return StateActive
	case ActionPurge:
		return StatePermanentlyDeleted
	}
	return ""
}

// Outcome of applying an action.
type Outcome struct {
	Next State
	// Replay is set when the evidence is already in the target state; callers
	// return the stored item unchanged so retries keep their original deleted_at.
	Replay bool
}

var edges = map[State]map[Action]State{
	StateActive: {
		ActionSoftDelete: StateSoftDeleted,
	},
	StateSoftDeleted: {
		ActionRestore: StateActive,
		ActionPurge:   StatePermanentlyDeleted,
	},
}

// Apply evaluates an action against the current state.
func Apply(current State, action Action) (Outcome, error) {
	target := action.Target()
	if target == "" {
		return Outcome{}, apperr.Invalid("action", "unknown evidence action")
	}
	if current == target {
		return Outcome{Next: current, Replay: true}, nil
	}
	if current == StatePermanentlyDeleted {
		return Outcome{}, apperr.Wrap(apperr.ErrInvalidState, "evidence was permanently deleted")
	}
	next, ok := edges[current][action]
	if !ok {
		if current == StateActive && action == ActionPurge {
			return Outcome{}, apperr.Wrap(apperr.ErrInvalidState, "evidence must be soft-deleted before permanent deletion")
		}
		return Outcome{}, apperr.Wrap(apperr.ErrInvalidState, "cannot %s evidence that is %s", action, current)
	}
	return Outcome{Next: next}, nil
}

// VisibleIn reports whether a state is returned by list queries.
func VisibleIn(s State, includeDeleted bool) bool {
	switch s {
	case StateActive:
		return true
	case StateSoftDeleted:
		return includeDeleted
	}
	return false
}

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaPDF   MediaKind = "pdf"
)

// KindFromMIME classifies an upload for display routing. Only images and PDFs are accepted.
func KindFromMIME(mime string) (MediaKind, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage, true
	case mime == "application/pdf":
		return MediaPDF, true
	}
	return "", false
}
