// Package editor opens a whiteboard into a canvas engine and keeps it in
// sync with the server: the stored snapshot is applied on open, local
// mutations are saved through a debounced pump, and the comment overlay is
// loaded once the engine is ready.
package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"whiteboard/api/internal/board"
	"whiteboard/api/internal/canvas"
	"whiteboard/api/internal/overlay"
	"whiteboard/api/internal/persist"
	"whiteboard/api/internal/snapshot"
)

// Remote is the server as a session needs it. *client.Client satisfies it.
type Remote interface {
	GetWhiteboard(ctx context.Context, id string) (board.Whiteboard, error)
	GetShared(ctx context.Context, shareID string) (board.Whiteboard, error)
	SaveContent(ctx context.Context, id string, content json.RawMessage) error
	overlay.CommentStore
}

type options struct {
	logger *slog.Logger
	viewer string
	window time.Duration
}

type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithViewer names the signed-in user. Only the owner gets a save pump.
func WithViewer(userID string) Option {
	return func(o *options) {
		o.viewer = userID
	}
}

// WithSaveWindow overrides the pump's quiet period.
func WithSaveWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

type Session struct {
	Whiteboard board.Whiteboard
	Engine     canvas.Engine
	Overlay    *overlay.Controller
	// Pump is nil unless the viewer owns the whiteboard.
	Pump *persist.Pump
	// Loaded reports whether stored content was applied to the engine.
	Loaded bool

	logger    *slog.Logger
	cancel    context.CancelFunc
	commentsC chan struct{}
	closeOnce sync.Once
}

// Open fetches a whiteboard and binds it to engine. A snapshot the codec
// cannot read is logged and the canvas starts empty.
func Open(ctx context.Context, remote Remote, engine canvas.Engine, whiteboardID string, opts ...Option) (*Session, error) {
	o := collect(opts)
	wb, err := remote.GetWhiteboard(ctx, whiteboardID)
	if err != nil {
		return nil, fmt.Errorf("open whiteboard %s: %w", whiteboardID, err)
	}

	s := newSession(wb, engine, o)
	owner := o.viewer != "" && o.viewer == wb.UserID

	var overlayOpts []overlay.Option
	overlayOpts = append(overlayOpts, overlay.WithLogger(o.logger))
	if o.viewer == "" {
		overlayOpts = append(overlayOpts, overlay.ReadOnly())
	}
	s.Overlay = overlay.New(wb.ID, remote, engine, overlayOpts...)
	s.Overlay.Seed(wb.Comments)

	if owner {
		save := func(ctx context.Context, content json.RawMessage) error {
			return remote.SaveContent(ctx, wb.ID, content)
		}
		pumpOpts := []persist.Option{persist.WithLogger(o.logger)}
		if o.window > 0 {
			pumpOpts = append(pumpOpts, persist.WithWindow(o.window))
		}
		s.Pump = persist.New(engine, save, pumpOpts...)
	}

	if o.viewer != "" {
		s.loadCommentsWhenReady()
	} else {
		close(s.commentsC)
	}
	o.logger.Info("whiteboard opened", "id", wb.ID, "owner", owner, "loaded", s.Loaded, "comments", len(wb.Comments))
	return s, nil
}

// OpenShared opens a published whiteboard by share id. Nothing is saved and
// the comments are the ones that came with the shared payload.
func OpenShared(ctx context.Context, remote Remote, engine canvas.Engine, shareID string, opts ...Option) (*Session, error) {
	o := collect(opts)
	wb, err := remote.GetShared(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("open shared whiteboard %s: %w", shareID, err)
	}

	s := newSession(wb, engine, o)
	s.Overlay = overlay.New(wb.ID, nil, engine, overlay.ReadOnly(), overlay.WithLogger(o.logger))
	s.Overlay.Seed(wb.Comments)
	close(s.commentsC)
	o.logger.Info("shared whiteboard opened", "id", wb.ID, "loaded", s.Loaded, "comments", len(wb.Comments))
	return s, nil
}

func collect(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newSession(wb board.Whiteboard, engine canvas.Engine, o options) *Session {
	s := &Session{
		Whiteboard: wb,
		Engine:     engine,
		logger:     o.logger,
		commentsC:  make(chan struct{}),
	}
	loaded, err := snapshot.Apply(engine, wb.Content)
	switch {
	case errors.Is(err, snapshot.ErrMalformedSnapshot), errors.Is(err, snapshot.ErrUnrecognizedShape):
		o.logger.Warn("stored snapshot ignored", "id", wb.ID, "error", err)
	case err != nil:
		o.logger.Error("apply snapshot failed", "id", wb.ID, "error", err)
	}
	s.Loaded = loaded
	return s
}

func (s *Session) loadCommentsWhenReady() {
	ready := closedChan()
	if r, ok := s.Engine.(canvas.Readier); ok {
		ready = r.Ready()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.commentsC)
		if err := s.Overlay.LoadWhenReady(ctx, ready); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("comments not refreshed", "id", s.Whiteboard.ID, "error", err)
		}
	}()
}

// CommentsLoaded is closed once the overlay's comment fetch has finished,
// successfully or not.
func (s *Session) CommentsLoaded() <-chan struct{} {
	return s.commentsC
}

// Owner reports whether local changes are being saved.
func (s *Session) Owner() bool {
	return s.Pump != nil
}

// Close stops saving and any pending comment fetch. Edits still inside the
// quiet window are not flushed.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.Pump != nil {
			s.Pump.Close()
		}
		<-s.commentsC
	})
}

func closedChan() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}
