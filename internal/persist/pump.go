// Package persist turns a burst of canvas mutations into a single save once
// the canvas has been quiet for a while.
package persist

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"whiteboard/api/internal/canvas"
	"whiteboard/api/internal/snapshot"
)

const (
	DefaultWindow      = time.Second
	DefaultSaveTimeout = 30 * time.Second
)

type State int

const (
	Idle State = iota
	Pending
	Saving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

// SaveFunc stores content as the whiteboard's new snapshot.
type SaveFunc func(ctx context.Context, content json.RawMessage) error

type Option func(*Pump)

// WithWindow sets the quiet period that must pass before a save.
func WithWindow(d time.Duration) Option {
	return func(p *Pump) {
		if d > 0 {
			p.window = d
		}
	}
}

func WithSaveTimeout(d time.Duration) Option {
	return func(p *Pump) {
		if d > 0 {
			p.saveTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pump) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pump debounces engine mutations into calls to a SaveFunc. At most one save
// runs at a time; a mutation seen during a save re-arms the timer once the
// save returns. Failed saves are logged and not retried.
type Pump struct {
	engine      canvas.Engine
	save        SaveFunc
	window      time.Duration
	saveTimeout time.Duration
	logger      *slog.Logger

	mu          sync.Mutex
	state       State
	timer       *time.Timer
	generation  uint64
	dirty       bool
	closed      bool
	inflight    chan struct{}
	unsubscribe func()
}

// New subscribes to engine and starts in Idle.
func New(engine canvas.Engine, save SaveFunc, opts ...Option) *Pump {
	p := &Pump{
		engine:      engine,
		save:        save,
		window:      DefaultWindow,
		saveTimeout: DefaultSaveTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.unsubscribe = engine.Listen(p.Notify)
	return p
}

func (p *Pump) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Notify records a mutation. It is what the engine subscription calls.
func (p *Pump) Notify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.state == Saving {
		p.dirty = true
		return
	}
	p.armLocked()
}

func (p *Pump) armLocked() {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.generation++
	gen := p.generation
	p.timer = time.AfterFunc(p.window, func() { p.fire(gen) })
	p.state = Pending
}

func (p *Pump) fire(gen uint64) {
	p.mu.Lock()
	// A stopped timer may still run its func; only the latest one counts.
	if p.closed || gen != p.generation || p.state != Pending {
		p.mu.Unlock()
		return
	}
	p.state = Saving
	p.timer = nil
	done := make(chan struct{})
	p.inflight = done
	p.mu.Unlock()

	content := snapshot.Encode(p.engine)
	ctx, cancel := context.WithTimeout(context.Background(), p.saveTimeout)
	started := time.Now()
	err := p.save(ctx, content)
	cancel()
	if err != nil {
		p.logger.Error("save failed", "error", err, "bytes", len(content))
	} else {
		p.logger.Debug("saved snapshot", "bytes", len(content), "duration", time.Since(started))
	}

	p.mu.Lock()
	p.state = Idle
	p.inflight = nil
	close(done)
	if p.dirty && !p.closed {
		p.dirty = false
		p.armLocked()
	}
	p.mu.Unlock()
}

// Close unsubscribes and drops any pending save. A save already running is
// waited for, not aborted. Pending edits are not flushed.
func (p *Pump) Close() {
	p.mu.Lock()
	if p.closed {
		inflight := p.inflight
		p.mu.Unlock()
		if inflight != nil {
			<-inflight
		}
		return
	}
	p.closed = true
	p.dirty = false
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.state == Pending {
		p.state = Idle
	}
	inflight := p.inflight
	unsubscribe := p.unsubscribe
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if inflight != nil {
		<-inflight
	}
}
