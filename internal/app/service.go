package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"whiteboard/api/internal/access"
	"whiteboard/api/internal/archive"
	"whiteboard/api/internal/auth"
	"whiteboard/api/internal/board"
	"whiteboard/api/internal/cache"
	"whiteboard/api/internal/config"
	"whiteboard/api/internal/history"
	"whiteboard/api/internal/search"
	"whiteboard/api/internal/store"
	"whiteboard/api/internal/util"
)

// Caller is the identity behind a request. The zero value is anonymous.
type Caller struct {
	auth.Profile
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}

type dataStore interface {
	ListWhiteboards(context.Context, string, *board.Status) ([]store.WhiteboardSummary, error)
	GetWhiteboard(context.Context, string) (store.Whiteboard, error)
	GetPublishedWhiteboardByShareID(context.Context, string) (store.Whiteboard, error)
	InsertWhiteboard(context.Context, store.Whiteboard) (store.Whiteboard, error)
	UpdateWhiteboard(context.Context, string, store.WhiteboardPatch) (store.Whiteboard, error)
	DeleteWhiteboard(context.Context, string) error
	ListComments(context.Context, string) ([]store.Comment, error)
	InsertComment(context.Context, store.Comment) (store.Comment, error)
	Ping(ctx context.Context) error
}

type historyService interface {
	Commit(string, json.RawMessage, string, string) (history.Version, error)
	List(string, int) ([]history.Version, error)
	Snapshot(string, string) (json.RawMessage, history.Version, error)
	Remove(string) error
}

type searchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexWhiteboard(search.WhiteboardRecord)
	IndexComment(search.CommentRecord)
	DeleteWhiteboard(string, []string)
}

type shareCache interface {
	Get(context.Context, string) (board.Whiteboard, bool, error)
	Generation(context.Context, string) (int64, error)
	Put(context.Context, board.Whiteboard, int64) error
	Invalidate(context.Context, string) error
	Ping(context.Context) error
}

type archiver interface {
	Put(context.Context, archive.Record) (string, error)
}

type Service struct {
	cfg     config.Config
	store   dataStore
	history historyService
	search  searchIndex
	cache   shareCache
	archive archiver
}

func New(cfg config.Config, dataStore *store.PostgresStore, historyService *history.Service, searchService *search.Service) *Service {
	s := &Service{cfg: cfg, store: dataStore}
	if historyService != nil {
		s.history = historyService
	}
	if searchService != nil {
		s.search = searchService
	}
	return s
}

// WithShareCache enables the Redis cache for share-link reads.
func (s *Service) WithShareCache(c *cache.ShareCache) *Service {
	if c != nil {
		s.cache = c
	}
	return s
}

// WithArchive enables archiving boards to object storage before deletion.
func (s *Service) WithArchive(a *archive.Store) *Service {
	if a != nil {
		s.archive = a
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache reports whether a share cache is configured and, if so, whether
// it answers.
func (s *Service) PingCache(ctx context.Context) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return true, s.cache.Ping(ctx)
}

// CallerFromToken verifies a bearer token and returns the identity it carries.
func (s *Service) CallerFromToken(token string) (Caller, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Caller{}, err
	}
	return Caller{Profile: claims.Profile()}, nil
}

func (s *Service) ListWhiteboards(ctx context.Context, caller Caller, statusFilter string) ([]board.Summary, error) {
	if !caller.Authenticated() {
		return nil, errUnauthorized()
	}
	var status *board.Status
	if strings.TrimSpace(statusFilter) != "" {
		parsed, err := board.ParseStatus(statusFilter)
		if err != nil {
			return nil, errValidation("status must be DRAFT or PUBLISHED")
		}
		status = &parsed
	}

	rows, err := s.store.ListWhiteboards(ctx, caller.UserID, status)
	if err != nil {
		return nil, err
	}
	items := make([]board.Summary, 0, len(rows))
	for _, row := range rows {
		items = append(items, toSummary(row))
	}
	return items, nil
}

func (s *Service) CreateWhiteboard(ctx context.Context, caller Caller, input board.CreateWhiteboardInput) (board.Whiteboard, error) {
	if !caller.Authenticated() {
		return board.Whiteboard{}, errUnauthorized()
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return board.Whiteboard{}, errValidation("Name is required")
	}
	status := board.StatusDraft
	if input.Status != "" {
		parsed, err := board.ParseStatus(string(input.Status))
		if err != nil {
			return board.Whiteboard{}, errValidation("status must be DRAFT or PUBLISHED")
		}
		status = parsed
	}

	created, err := s.store.InsertWhiteboard(ctx, store.Whiteboard{
		ID:      util.NewID("wb"),
		Name:    name,
		Content: input.Content,
		Status:  status,
		ShareID: util.NewShareToken(),
		UserID:  caller.UserID,
	})
	if err != nil {
		return board.Whiteboard{}, err
	}

	if created.Content != nil {
		s.recordHistory(created.ID, created.Content, caller, "Create whiteboard")
	}
	s.indexWhiteboard(created)
	return toBoard(created, nil), nil
}

func (s *Service) GetWhiteboard(ctx context.Context, caller Caller, whiteboardID string) (board.Whiteboard, error) {
	item, err := s.authorize(ctx, caller, whiteboardID, access.ActionRead)
	if err != nil {
		return board.Whiteboard{}, err
	}
	comments, err := s.store.ListComments(ctx, item.ID)
	if err != nil {
		return board.Whiteboard{}, err
	}
	return toBoard(item, comments), nil
}

// UpdateWhiteboard replaces the supplied fields. There is no version check:
// the last write wins.
func (s *Service) UpdateWhiteboard(ctx context.Context, caller Caller, whiteboardID string, input board.UpdateWhiteboardInput) (board.Whiteboard, error) {
	if !caller.Authenticated() {
		return board.Whiteboard{}, errUnauthorized()
	}
	patch, err := buildPatch(input)
	if err != nil {
		return board.Whiteboard{}, err
	}

	existing, err := s.authorize(ctx, caller, whiteboardID, access.ActionWrite)
	if err != nil {
		return board.Whiteboard{}, err
	}

	// Nothing to change: no write, no updatedAt bump.
	if patch.Empty() {
		comments, err := s.store.ListComments(ctx, existing.ID)
		if err != nil {
			return board.Whiteboard{}, err
		}
		return toBoard(existing, comments), nil
	}

	updated, err := s.store.UpdateWhiteboard(ctx, existing.ID, patch)
	if err != nil {
		return board.Whiteboard{}, err
	}
	s.invalidateShare(ctx, existing.ShareID)

	if patch.SetContent {
		s.recordHistory(updated.ID, updated.Content, caller, "Save snapshot")
	}
	if patch.Name != nil || patch.Status != nil {
		s.indexWhiteboard(updated)
	}

	comments, err := s.store.ListComments(ctx, updated.ID)
	if err != nil {
		return board.Whiteboard{}, err
	}
	return toBoard(updated, comments), nil
}

func buildPatch(input board.UpdateWhiteboardInput) (store.WhiteboardPatch, error) {
	var patch store.WhiteboardPatch
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return store.WhiteboardPatch{}, errValidation("Name must not be empty")
		}
		patch.Name = &name
	}
	if input.Content != nil {
		patch.SetContent = true
		patch.Content = input.Content
	}
	if input.Status != nil {
		status, err := board.ParseStatus(string(*input.Status))
		if err != nil {
			return store.WhiteboardPatch{}, errValidation("status must be DRAFT or PUBLISHED")
		}
		patch.Status = &status
	}
	return patch, nil
}

func (s *Service) DeleteWhiteboard(ctx context.Context, caller Caller, whiteboardID string) error {
	if !caller.Authenticated() {
		return errUnauthorized()
	}
	existing, err := s.authorize(ctx, caller, whiteboardID, access.ActionWrite)
	if err != nil {
		return err
	}
	comments, err := s.store.ListComments(ctx, existing.ID)
	if err != nil {
		return err
	}

	if s.archive != nil {
		record := archive.Record{
			Whiteboard: toBoard(existing, comments),
			DeletedBy:  caller.UserID,
			ArchivedAt: time.Now().UTC(),
		}
		if key, err := s.archive.Put(ctx, record); err != nil {
			log.Printf("archive: whiteboard %s: %v", existing.ID, err)
		} else {
			log.Printf("archive: whiteboard %s stored as %s", existing.ID, key)
		}
	}

	if err := s.store.DeleteWhiteboard(ctx, existing.ID); err != nil {
		return err
	}
	s.invalidateShare(ctx, existing.ShareID)

	if s.history != nil {
		if err := s.history.Remove(existing.ID); err != nil {
			log.Printf("history: remove whiteboard %s: %v", existing.ID, err)
		}
	}
	if s.search != nil {
		commentIDs := make([]string, 0, len(comments))
		for _, comment := range comments {
			commentIDs = append(commentIDs, comment.ID)
		}
		s.search.DeleteWhiteboard(existing.ID, commentIDs)
	}
	return nil
}

func (s *Service) ListComments(ctx context.Context, caller Caller, whiteboardID string) ([]board.Comment, error) {
	item, err := s.authorize(ctx, caller, whiteboardID, access.ActionRead)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListComments(ctx, item.ID)
	if err != nil {
		return nil, err
	}
	return toComments(comments), nil
}

// CreateComment pins a comment at world coordinates (x, y). The author name
// is resolved once, here, and never updated.
func (s *Service) CreateComment(ctx context.Context, caller Caller, whiteboardID string, input board.CreateCommentInput) (board.Comment, error) {
	if !caller.Authenticated() {
		return board.Comment{}, errUnauthorized()
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return board.Comment{}, errValidation("Comment content is required")
	}
	if !finite(input.X) || !finite(input.Y) {
		return board.Comment{}, errValidation("Valid coordinates are required")
	}

	item, err := s.authorize(ctx, caller, whiteboardID, access.ActionComment)
	if err != nil {
		return board.Comment{}, err
	}

	created, err := s.store.InsertComment(ctx, store.Comment{
		ID:           util.NewID("cm"),
		Content:      content,
		X:            input.X,
		Y:            input.Y,
		UserID:       caller.UserID,
		UserName:     auth.DisplayName(caller.Profile),
		UserAvatar:   caller.AvatarURL,
		WhiteboardID: item.ID,
	})
	if err != nil {
		return board.Comment{}, err
	}
	s.invalidateShare(ctx, item.ShareID)

	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:           created.ID,
			Content:      created.Content,
			UserName:     created.UserName,
			WhiteboardID: created.WhiteboardID,
			OwnerID:      item.UserID,
		})
	}
	return toComment(created), nil
}

// GetShared resolves a share token. Only published boards resolve and no
// identity is consulted.
func (s *Service) GetShared(ctx context.Context, shareID string) (board.Whiteboard, error) {
	shareID = strings.TrimSpace(shareID)
	if shareID == "" {
		return board.Whiteboard{}, errNotFound("Shared whiteboard not found")
	}

	cacheable := false
	var generation int64
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, shareID)
		if err != nil {
			log.Printf("cache: read share %s: %v", shareID, err)
		} else if ok && access.Shareable(cached.Status) {
			return cached, nil
		}
		// Taken before the store read so a concurrent unpublish wins.
		if generation, err = s.cache.Generation(ctx, shareID); err != nil {
			log.Printf("cache: share generation %s: %v", shareID, err)
		} else {
			cacheable = true
		}
	}

	item, err := s.store.GetPublishedWhiteboardByShareID(ctx, shareID)
	if errors.Is(err, sql.ErrNoRows) {
		return board.Whiteboard{}, errNotFound("Shared whiteboard not found")
	}
	if err != nil {
		return board.Whiteboard{}, err
	}
	if !access.Shareable(item.Status) {
		return board.Whiteboard{}, errNotFound("Shared whiteboard not found")
	}
	comments, err := s.store.ListComments(ctx, item.ID)
	if err != nil {
		return board.Whiteboard{}, err
	}

	payload := toBoard(item, comments)
	if cacheable {
		if err := s.cache.Put(ctx, payload, generation); err != nil && !errors.Is(err, cache.ErrStale) {
			log.Printf("cache: store share %s: %v", shareID, err)
		}
	}
	return payload, nil
}

func (s *Service) Search(ctx context.Context, caller Caller, text string, limit, offset int) (search.Response, error) {
	if !caller.Authenticated() {
		return search.Response{}, errUnauthorized()
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: strings.TrimSpace(text)}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:    text,
		OwnerID: caller.UserID,
		Limit:   limit,
		Offset:  offset,
	}), nil
}

func (s *Service) History(ctx context.Context, caller Caller, whiteboardID string, limit int) ([]history.Version, error) {
	if !caller.Authenticated() {
		return nil, errUnauthorized()
	}
	item, err := s.authorize(ctx, caller, whiteboardID, access.ActionWrite)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []history.Version{}, nil
	}
	return s.history.List(item.ID, limit)
}

func (s *Service) HistoryVersion(ctx context.Context, caller Caller, whiteboardID, hash string) (map[string]any, error) {
	if !caller.Authenticated() {
		return nil, errUnauthorized()
	}
	item, err := s.authorize(ctx, caller, whiteboardID, access.ActionWrite)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, errNotFound("Version not found")
	}
	content, version, err := s.history.Snapshot(item.ID, hash)
	if errors.Is(err, history.ErrNotFound) {
		return nil, errNotFound("Version not found")
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"version": version,
		"content": content,
	}, nil
}

// authorize loads the whiteboard and applies the access rules. A missing
// board is reported before a forbidden one.
func (s *Service) authorize(ctx context.Context, caller Caller, whiteboardID string, action access.Action) (store.Whiteboard, error) {
	if access.RequiresIdentity(action) && !caller.Authenticated() {
		return store.Whiteboard{}, errUnauthorized()
	}
	item, err := s.store.GetWhiteboard(ctx, strings.TrimSpace(whiteboardID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Whiteboard{}, errNotFound("Whiteboard not found")
	}
	if err != nil {
		return store.Whiteboard{}, err
	}
	if !access.Can(caller.UserID, access.Target{OwnerID: item.UserID, Status: item.Status}, action) {
		return store.Whiteboard{}, errForbidden()
	}
	return item, nil
}

func (s *Service) invalidateShare(ctx context.Context, shareID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, shareID); err != nil {
		log.Printf("cache: invalidate share %s: %v", shareID, err)
	}
}

func (s *Service) recordHistory(whiteboardID string, content json.RawMessage, caller Caller, message string) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Commit(whiteboardID, content, auth.DisplayName(caller.Profile), message); err != nil {
		log.Printf("history: commit whiteboard %s: %v", whiteboardID, err)
	}
}

func (s *Service) indexWhiteboard(item store.Whiteboard) {
	if s.search == nil {
		return
	}
	s.search.IndexWhiteboard(search.WhiteboardRecord{
		ID:      item.ID,
		Name:    item.Name,
		OwnerID: item.UserID,
		Status:  string(item.Status),
	})
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toBoard(item store.Whiteboard, comments []store.Comment) board.Whiteboard {
	return board.Whiteboard{
		ID:        item.ID,
		Name:      item.Name,
		Content:   item.Content,
		Status:    item.Status,
		ShareID:   item.ShareID,
		UserID:    item.UserID,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		Comments:  toComments(comments),
	}
}

func toSummary(item store.WhiteboardSummary) board.Summary {
	return board.Summary{
		ID:           item.ID,
		Name:         item.Name,
		Status:       item.Status,
		ShareID:      item.ShareID,
		UserID:       item.UserID,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
		CommentCount: item.CommentCount,
	}
}

func toComments(items []store.Comment) []board.Comment {
	out := make([]board.Comment, 0, len(items))
	for _, item := range items {
		out = append(out, toComment(item))
	}
	return out
}

func toComment(item store.Comment) board.Comment {
	return board.Comment{
		ID:           item.ID,
		Content:      item.Content,
		X:            item.X,
		Y:            item.Y,
		UserID:       item.UserID,
		UserName:     item.UserName,
		UserAvatar:   item.UserAvatar,
		WhiteboardID: item.WhiteboardID,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}
