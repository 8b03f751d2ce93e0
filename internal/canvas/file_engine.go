package canvas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileEngine exposes a JSON file on disk as a canvas. The file holds the
// native snapshot; every change to its bytes made by someone else counts as
// a document mutation.
type FileEngine struct {
	path   string
	logger *slog.Logger

	mu     sync.Mutex
	camera Camera
	last   []byte

	subs    listeners
	watcher *fsnotify.Watcher
	ready   chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

type FileOption func(*FileEngine)

func WithFileLogger(logger *slog.Logger) FileOption {
	return func(e *FileEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithFileCamera(camera Camera) FileOption {
	return func(e *FileEngine) {
		e.camera = camera
	}
}

// OpenFileEngine reads path (a missing file is an empty canvas) and starts
// watching its directory.
func OpenFileEngine(path string, opts ...FileOption) (*FileEngine, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve canvas path: %w", err)
	}
	e := &FileEngine{
		path:   abs,
		logger: slog.Default(),
		camera: Identity,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	data, err := os.ReadFile(abs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read canvas file: %w", err)
	}
	e.last = data

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	// Editors often save by rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	e.watcher = watcher

	e.wg.Add(1)
	go e.run()
	return e, nil
}

func (e *FileEngine) run() {
	defer e.wg.Done()
	close(e.ready)
	for {
		select {
		case <-e.done:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != e.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			e.logger.Debug("canvas file event", "name", event.Name, "op", event.Op.String())
			e.reload()
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Error("canvas watcher error", "error", err)
		}
	}
}

func (e *FileEngine) reload() {
	e.mu.Lock()
	data, err := os.ReadFile(e.path)
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("canvas file unreadable", "path", e.path, "error", err)
		return
	}
	if bytes.Equal(data, e.last) {
		e.mu.Unlock()
		return
	}
	// Writers truncate before they write; a half-written file is not a
	// document yet.
	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		e.mu.Unlock()
		e.logger.Debug("canvas file incomplete, waiting", "path", e.path, "bytes", len(data))
		return
	}
	e.last = data
	e.mu.Unlock()
	e.subs.notify()
}

// Ready is closed once the watcher loop runs.
func (e *FileEngine) Ready() <-chan struct{} {
	return e.ready
}

func (e *FileEngine) Snapshot() json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(bytes.TrimSpace(e.last)) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), e.last...)
}

// Load writes {"document": document} to the file. The write is not reported
// back as a mutation.
func (e *FileEngine) Load(document json.RawMessage) error {
	var buf bytes.Buffer
	buf.WriteString(`{"document":`)
	buf.Write(document)
	buf.WriteString("}\n")
	data := buf.Bytes()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := os.WriteFile(e.path, data, 0o644); err != nil {
		return fmt.Errorf("write canvas file: %w", err)
	}
	e.last = data
	return nil
}

func (e *FileEngine) Camera() Camera {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.camera
}

func (e *FileEngine) SetCamera(camera Camera) {
	e.mu.Lock()
	e.camera = camera
	e.mu.Unlock()
}

func (e *FileEngine) Listen(fn func()) func() {
	return e.subs.add(fn)
}

func (e *FileEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.done)
	err := e.watcher.Close()
	e.wg.Wait()
	return err
}
