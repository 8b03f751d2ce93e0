// Package history keeps every saved whiteboard snapshot in a per-board git
// repository so earlier versions can be listed and read back.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	snapshotFile = "snapshot.json"
	branchName   = "main"
)

var ErrNotFound = errors.New("history not found")

type Version struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit records snapshot as the newest version of the whiteboard. A snapshot
// equal to the current head is not committed again; the head is returned.
func (s *Service) Commit(whiteboardID string, snapshot json.RawMessage, author, message string) (Version, error) {
	if err := validateID(whiteboardID); err != nil {
		return Version{}, err
	}
	lock := s.boardLock(whiteboardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(whiteboardID)
	if err != nil {
		return Version{}, err
	}

	payload := normalizeSnapshot(snapshot)
	if head, err := headCommit(repo); err == nil {
		current, err := readSnapshot(head)
		if err == nil && bytes.Equal(current, payload) {
			return toVersion(head), nil
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Version{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Version{}, fmt.Errorf("open worktree: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, snapshotFile), payload, 0o644); err != nil {
		return Version{}, fmt.Errorf("write %s: %w", snapshotFile, err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return Version{}, fmt.Errorf("git add snapshot: %w", err)
	}

	if strings.TrimSpace(message) == "" {
		message = "Save snapshot"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@users.whiteboard.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return Version{}, fmt.Errorf("commit snapshot: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Version{}, fmt.Errorf("read commit object: %w", err)
	}
	return toVersion(commitObj), nil
}

// List returns up to limit versions, newest first. A board that never saved
// content has an empty history.
func (s *Service) List(whiteboardID string, limit int) ([]Version, error) {
	if err := validateID(whiteboardID); err != nil {
		return nil, err
	}
	lock := s.boardLock(whiteboardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(whiteboardID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Version{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := headCommit(repo)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Version{}, nil
	}
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Version, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toVersion(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Snapshot returns the content recorded at hash, which may be abbreviated.
func (s *Service) Snapshot(whiteboardID, hash string) (json.RawMessage, Version, error) {
	if err := validateID(whiteboardID); err != nil {
		return nil, Version{}, err
	}
	lock := s.boardLock(whiteboardID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(whiteboardID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, Version{}, ErrNotFound
	}
	if err != nil {
		return nil, Version{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return nil, Version{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, Version{}, ErrNotFound
	}
	if err != nil {
		return nil, Version{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	content, err := readSnapshot(commitObj)
	if err != nil {
		return nil, Version{}, err
	}
	return content, toVersion(commitObj), nil
}

// Remove deletes the whiteboard's repository.
func (s *Service) Remove(whiteboardID string) error {
	if err := validateID(whiteboardID); err != nil {
		return err
	}
	lock := s.boardLock(whiteboardID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(whiteboardID)); err != nil {
		return fmt.Errorf("remove history: %w", err)
	}
	return nil
}

func (s *Service) openOrInit(whiteboardID string) (*git.Repository, error) {
	path := s.repoPath(whiteboardID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", branchName, err)
	}
	return repo, nil
}

func (s *Service) repoPath(whiteboardID string) string {
	return filepath.Join(s.baseDir, whiteboardID)
}

func (s *Service) boardLock(whiteboardID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[whiteboardID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[whiteboardID] = lock
	return lock
}

func validateID(whiteboardID string) error {
	if whiteboardID == "" || whiteboardID == "." || whiteboardID == ".." || strings.ContainsAny(whiteboardID, `/\`) {
		return fmt.Errorf("invalid whiteboard id %q", whiteboardID)
	}
	return nil
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branchName), true)
	if err != nil {
		return nil, err
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, nil
}

func readSnapshot(commitObj *object.Commit) (json.RawMessage, error) {
	file, err := commitObj.File(snapshotFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", snapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read snapshot bytes: %w", err)
	}
	return json.RawMessage(raw), nil
}

// normalizeSnapshot indents valid JSON so diffs between versions stay
// readable. Anything else is stored as JSON null.
func normalizeSnapshot(snapshot json.RawMessage) []byte {
	var buf bytes.Buffer
	if len(bytes.TrimSpace(snapshot)) == 0 || json.Indent(&buf, snapshot, "", "  ") != nil {
		return []byte("null\n")
	}
	buf.WriteByte('\n')
	return buf.Bytes()
}

func toVersion(commitObj *object.Commit) Version {
	return Version{
		Hash:      commitObj.Hash.String(),
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, ErrNotFound
	}
	return *resolved, nil
}
