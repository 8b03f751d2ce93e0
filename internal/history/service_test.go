package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestCommitListAndReadBack(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Commit("wb_1", json.RawMessage(`{"document":{"shapes":[1]}}`), "Avery Quinn", "Save snapshot")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	second, err := svc.Commit("wb_1", json.RawMessage(`{"document":{"shapes":[1,2]}}`), "Avery Quinn", "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if first.Hash == second.Hash {
		t.Fatal("expected distinct commits")
	}

	versions, err := svc.List("wb_1", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(versions) != 2 || versions[0].Hash != second.Hash || versions[1].Hash != first.Hash {
		t.Fatalf("expected newest first, got %+v", versions)
	}
	if versions[0].Author != "Avery Quinn" {
		t.Fatalf("unexpected author %q", versions[0].Author)
	}

	content, version, err := svc.Snapshot("wb_1", first.Hash)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if version.Hash != first.Hash {
		t.Fatalf("unexpected version %+v", version)
	}
	var parsed struct {
		Document struct {
			Shapes []int `json:"shapes"`
		} `json:"document"`
	}
	if err := json.Unmarshal(content, &parsed); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(parsed.Document.Shapes) != 1 {
		t.Fatalf("expected first snapshot, got %s", content)
	}

	short, _, err := svc.Snapshot("wb_1", second.Hash[:7])
	if err != nil {
		t.Fatalf("Snapshot(short) error = %v", err)
	}
	if err := json.Unmarshal(short, &parsed); err != nil || len(parsed.Document.Shapes) != 2 {
		t.Fatalf("expected second snapshot via short hash, got %s (%v)", short, err)
	}
}

func TestCommitSkipsUnchangedSnapshot(t *testing.T) {
	svc := New(t.TempDir())
	first, err := svc.Commit("wb_1", json.RawMessage(`{"store":{"a":1}}`), "Avery", "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again, err := svc.Commit("wb_1", json.RawMessage(`{ "store": { "a": 1 } }`), "Avery", "")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Fatalf("expected unchanged snapshot to reuse head %s, got %s", first.Hash, again.Hash)
	}
	versions, err := svc.List("wb_1", 0)
	if err != nil || len(versions) != 1 {
		t.Fatalf("expected one version, got %+v %v", versions, err)
	}
}

func TestClearedSnapshotIsRecordedAsNull(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Commit("wb_1", json.RawMessage(`{"document":{}}`), "Avery", ""); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	cleared, err := svc.Commit("wb_1", nil, "Avery", "Clear")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	content, _, err := svc.Snapshot("wb_1", cleared.Hash)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	var value any
	if err := json.Unmarshal(content, &value); err != nil || value != nil {
		t.Fatalf("expected JSON null, got %s", content)
	}
}

func TestListWithoutHistory(t *testing.T) {
	svc := New(t.TempDir())
	versions, err := svc.List("wb_unknown", 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(versions) != 0 {
		t.Fatalf("expected no versions, got %+v", versions)
	}
}

func TestListHonoursLimit(t *testing.T) {
	svc := New(t.TempDir())
	for i := 0; i < 4; i++ {
		if _, err := svc.Commit("wb_1", json.RawMessage(fmt.Sprintf(`{"document":{"n":%d}}`, i)), "Avery", ""); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}
	versions, err := svc.List("wb_1", 2)
	if err != nil || len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d %v", len(versions), err)
	}
}

func TestSnapshotUnknownHash(t *testing.T) {
	svc := New(t.TempDir())
	if _, _, err := svc.Snapshot("wb_missing", "abc1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing repo, got %v", err)
	}
	if _, err := svc.Commit("wb_1", json.RawMessage(`{"document":{}}`), "Avery", ""); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, _, err := svc.Snapshot("wb_1", "0000000000000000000000000000000000000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown hash, got %v", err)
	}
	if _, _, err := svc.Snapshot("wb_1", "zzzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad revision, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	svc := New(dir)
	if _, err := svc.Commit("wb_1", json.RawMessage(`{"document":{}}`), "Avery", ""); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := svc.Remove("wb_1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "wb_1")); !os.IsNotExist(err) {
		t.Fatalf("expected repo removed, stat err = %v", err)
	}
}

func TestRejectsPathLikeIDs(t *testing.T) {
	svc := New(t.TempDir())
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		if _, err := svc.Commit(id, json.RawMessage(`{}`), "Avery", ""); err == nil {
			t.Fatalf("expected error for id %q", id)
		}
	}
}

func TestConcurrentCommitsSerialize(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Commit("wb_1", json.RawMessage(fmt.Sprintf(`{"document":{"n":%d}}`, n)), "Avery", "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Commit() error = %v", err)
		}
	}
	versions, err := svc.List("wb_1", 0)
	if err != nil || len(versions) != 8 {
		t.Fatalf("expected 8 versions, got %d %v", len(versions), err)
	}
}
