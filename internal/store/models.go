package store

import (
	"encoding/json"
	"time"

	"whiteboard/api/internal/board"
)

type Whiteboard struct {
	ID        string
	Name      string
	Content   json.RawMessage
	Status    board.Status
	ShareID   string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WhiteboardSummary is a list row: no content, plus the number of comments.
type WhiteboardSummary struct {
	ID           string
	Name         string
	Status       board.Status
	ShareID      string
	UserID       string
	CommentCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Comment struct {
	ID           string
	Content      string
	X            float64
	Y            float64
	UserID       string
	UserName     string
	UserAvatar   string
	WhiteboardID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WhiteboardPatch lists the columns an update replaces. Nil fields are left
// alone. SetContent with a nil Content clears the snapshot.
type WhiteboardPatch struct {
	Name       *string
	SetContent bool
	Content    json.RawMessage
	Status     *board.Status
}

func (p WhiteboardPatch) Empty() bool {
	return p.Name == nil && !p.SetContent && p.Status == nil
}
