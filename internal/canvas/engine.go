package canvas

import (
	"bytes"
	"encoding/json"
	"sync"
)

// Engine is the drawing surface as the rest of the client sees it. The
// snapshot format is the engine's own; callers pass it through untouched.
type Engine interface {
	// Snapshot returns the engine's native snapshot of the live document.
	Snapshot() json.RawMessage
	// Load replaces the live document with a decoded loadable unit.
	Load(document json.RawMessage) error
	Camera() Camera
	// Listen registers fn for document mutations and returns its cancel func.
	Listen(fn func()) (cancel func())
}

// Readier is implemented by engines that finish initializing asynchronously.
type Readier interface {
	Ready() <-chan struct{}
}

// listeners is the mutation fan-out shared by the engines in this package.
type listeners struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

func (l *listeners) notify() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *listeners) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.fns)
}

// MemoryEngine keeps the document in memory. Its native snapshot is
// {"document": <doc>} so it round-trips through the snapshot codec.
type MemoryEngine struct {
	mu       sync.Mutex
	document json.RawMessage
	camera   Camera
	subs     listeners
}

func NewMemoryEngine(camera Camera) *MemoryEngine {
	return &MemoryEngine{camera: camera}
}

func (e *MemoryEngine) Snapshot() json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.document == nil {
		return nil
	}
	var buf bytes.Buffer
	buf.WriteString(`{"document":`)
	buf.Write(e.document)
	buf.WriteString(`}`)
	return buf.Bytes()
}

// Load replaces the document without notifying listeners.
func (e *MemoryEngine) Load(document json.RawMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.document = append(json.RawMessage(nil), document...)
	return nil
}

// Document returns the loaded document, nil when empty.
func (e *MemoryEngine) Document() json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(json.RawMessage(nil), e.document...)
}

// Mutate replaces the document the way a user edit would, then notifies
// listeners.
func (e *MemoryEngine) Mutate(document json.RawMessage) {
	e.mu.Lock()
	e.document = append(json.RawMessage(nil), document...)
	e.mu.Unlock()
	e.subs.notify()
}

func (e *MemoryEngine) Camera() Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

// SetCamera pans or zooms the viewport. Camera moves are not document
// mutations.
func (e *MemoryEngine) SetCamera(camera Camera) {
	e.mu.Lock()
	e.camera = camera
	e.mu.Unlock()
}

func (e *MemoryEngine) Listen(fn func()) func() {
	return e.subs.add(fn)
}

// Listeners reports how many subscriptions are live.
func (e *MemoryEngine) Listeners() int {
	return e.subs.count()
}
