package access

import "whiteboard/api/internal/board"

type Action string

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionWrite   Action = "write"
)

// Target is the part of a whiteboard the rules look at.
type Target struct {
	OwnerID string
	Status  board.Status
}

// RequiresIdentity reports whether the action is refused to anonymous
// callers before the whiteboard is even looked up.
func RequiresIdentity(action Action) bool {
	switch action {
	case ActionComment, ActionWrite:
		return true
	default:
		return false
	}
}

// Can decides an action by callerID (empty for anonymous) on target. The
// owner can do everything; anyone else can read and comment while the board
// is published.
func Can(callerID string, target Target, action Action) bool {
	if callerID == "" && RequiresIdentity(action) {
		return false
	}
	if callerID != "" && callerID == target.OwnerID {
		return true
	}
	switch action {
	case ActionRead, ActionComment:
		return target.Status == board.StatusPublished
	default:
		return false
	}
}

// Shareable reports whether a share token may resolve the board. No
// ownership check applies.
func Shareable(status board.Status) bool {
	return status == board.StatusPublished
}
