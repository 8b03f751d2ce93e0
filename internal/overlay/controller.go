// Package overlay manages the comment pins drawn over a canvas: loading
// them, projecting them through the current camera, and placing new ones.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"whiteboard/api/internal/board"
	"whiteboard/api/internal/canvas"
)

var (
	ErrEmptyContent = errors.New("comment content is required")
	ErrNoAnchor     = errors.New("no comment position selected")
	ErrReadOnly     = errors.New("comments are read-only here")
)

// CommentStore is the remote side of the overlay.
type CommentStore interface {
	ListComments(ctx context.Context, whiteboardID string) ([]board.Comment, error)
	CreateComment(ctx context.Context, whiteboardID string, input board.CreateCommentInput) (board.Comment, error)
}

// CameraSource supplies the camera at the moment it is asked.
type CameraSource interface {
	Camera() canvas.Camera
}

// Pin is a comment placed on screen for the current camera.
type Pin struct {
	Comment  board.Comment
	Screen   canvas.Point
	Selected bool
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// ReadOnly disables placement and submission, as on a share link.
func ReadOnly() Option {
	return func(c *Controller) {
		c.readOnly = true
	}
}

type Controller struct {
	whiteboardID string
	store        CommentStore
	camera       CameraSource
	logger       *slog.Logger
	readOnly     bool

	mu       sync.Mutex
	comments []board.Comment
	placing  bool
	anchor   *canvas.Point
	selected string
}

func New(whiteboardID string, store CommentStore, camera CameraSource, opts ...Option) *Controller {
	c := &Controller{
		whiteboardID: whiteboardID,
		store:        store,
		camera:       camera,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seed replaces the list with comments already fetched elsewhere, newest
// first.
func (c *Controller) Seed(comments []board.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.comments = append([]board.Comment(nil), comments...)
	c.dropStaleSelectionLocked()
}

// Load fetches the comment list. On failure the current list is kept.
func (c *Controller) Load(ctx context.Context) error {
	if c.store == nil {
		return ErrReadOnly
	}
	comments, err := c.store.ListComments(ctx, c.whiteboardID)
	if err != nil {
		c.logger.Error("load comments failed", "whiteboard", c.whiteboardID, "error", err)
		return fmt.Errorf("load comments: %w", err)
	}
	c.Seed(comments)
	c.logger.Debug("comments loaded", "whiteboard", c.whiteboardID, "count", len(comments))
	return nil
}

// LoadWhenReady waits for the canvas to signal readiness, then loads.
func (c *Controller) LoadWhenReady(ctx context.Context, ready <-chan struct{}) error {
	if ready != nil {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return c.Load(ctx)
}

func (c *Controller) BeginPlacement() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return
	}
	c.placing = true
}

// CancelPlacement leaves placing mode and forgets the pending anchor.
func (c *Controller) CancelPlacement() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.placing = false
	c.anchor = nil
}

func (c *Controller) Placing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.placing
}

// Pointer handles a click at a screen position. While placing, it anchors
// the pending comment at the matching world position and leaves placing
// mode. It reports whether an anchor was taken.
func (c *Controller) Pointer(screen canvas.Point) bool {
	cam := c.camera.Camera()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.placing {
		return false
	}
	if !cam.Valid() {
		c.logger.Warn("pointer ignored, camera not usable", "camera", cam.String())
		return false
	}
	world := cam.ToWorld(screen)
	c.anchor = &world
	c.placing = false
	return true
}

// Anchor returns the pending world position, if any.
func (c *Controller) Anchor() (canvas.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.anchor == nil {
		return canvas.Point{}, false
	}
	return *c.anchor, true
}

// Submit creates a comment at the pending anchor. On success it goes to the
// front of the list and placement is cleared; on failure placement is kept
// so the user can retry.
func (c *Controller) Submit(ctx context.Context, content string) (board.Comment, error) {
	if c.readOnly || c.store == nil {
		return board.Comment{}, ErrReadOnly
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return board.Comment{}, ErrEmptyContent
	}
	anchor, ok := c.Anchor()
	if !ok {
		return board.Comment{}, ErrNoAnchor
	}

	created, err := c.store.CreateComment(ctx, c.whiteboardID, board.CreateCommentInput{
		Content: content,
		X:       anchor.X,
		Y:       anchor.Y,
	})
	if err != nil {
		c.logger.Error("create comment failed", "whiteboard", c.whiteboardID, "error", err)
		return board.Comment{}, fmt.Errorf("create comment: %w", err)
	}

	c.mu.Lock()
	c.comments = append([]board.Comment{created}, c.comments...)
	c.placing = false
	c.anchor = nil
	c.mu.Unlock()
	return created, nil
}

// Comments returns the list, newest first.
func (c *Controller) Comments() []board.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]board.Comment(nil), c.comments...)
}

// Pins projects every comment through the camera as it is right now.
func (c *Controller) Pins() []Pin {
	cam := c.camera.Camera()

	c.mu.Lock()
	defer c.mu.Unlock()
	pins := make([]Pin, 0, len(c.comments))
	for _, comment := range c.comments {
		pins = append(pins, Pin{
			Comment:  comment,
			Screen:   cam.ToScreen(canvas.Point{X: comment.X, Y: comment.Y}),
			Selected: comment.ID == c.selected,
		})
	}
	return pins
}

// Select toggles the selection of one pin. Selecting another pin moves the
// selection.
func (c *Controller) Select(commentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == commentID {
		c.selected = ""
		return
	}
	c.selected = commentID
}

func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

func (c *Controller) dropStaleSelectionLocked() {
	if c.selected == "" {
		return
	}
	for _, comment := range c.comments {
		if comment.ID == c.selected {
			return
		}
	}
	c.selected = ""
}
