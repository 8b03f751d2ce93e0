// Package board holds the whiteboard and comment shapes exchanged between
// the API server and its clients.
package board

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the publication state of a whiteboard.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
)

// ParseStatus accepts exactly the two known states.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.TrimSpace(value)) {
	case StatusDraft:
		return StatusDraft, nil
	case StatusPublished:
		return StatusPublished, nil
	default:
		return "", fmt.Errorf("unknown status %q", value)
	}
}

// Toggle returns the other state.
func (s Status) Toggle() Status {
	if s == StatusPublished {
		return StatusDraft
	}
	return StatusPublished
}

type Whiteboard struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Content   json.RawMessage `json:"content"`
	Status    Status          `json:"status"`
	ShareID   string          `json:"shareId"`
	UserID    string          `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Comments  []Comment       `json:"comments"`
}

// Summary is a list row: no content, no comments, only their count.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	ShareID      string    `json:"shareId"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	CommentCount int       `json:"commentCount"`
}

type Comment struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	UserID       string    `json:"userId"`
	UserName     string    `json:"userName"`
	UserAvatar   string    `json:"userAvatar,omitempty"`
	WhiteboardID string    `json:"whiteboardId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateWhiteboardInput struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content,omitempty"`
	Status  Status          `json:"status,omitempty"`
}

// UpdateWhiteboardInput carries a partial update. Nil fields are left
// untouched; a Content of JSON null clears the snapshot.
type UpdateWhiteboardInput struct {
	Name    *string         `json:"name,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Status  *Status         `json:"status,omitempty"`
}

type CreateCommentInput struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}
