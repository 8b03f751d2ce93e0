package search

import (
	"context"
	"log"
	"strings"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	primary  Backend
	fallback Searcher
	loader   recordLoader
}

type recordLoader interface {
	LoadAllRecords(ctx context.Context) ([]WhiteboardRecord, []CommentRecord, error)
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	s := &Service{}
	if meili != nil {
		s.primary = meili
	}
	if pgfts != nil {
		s.fallback = pgfts
		s.loader = pgfts
	}
	return s
}

func (s *Service) primaryReady() bool {
	return s.primary != nil && s.primary.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" || q.OwnerID == "" {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}

	if s.primaryReady() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexWhiteboard indexes a whiteboard (fire-and-forget to Meilisearch).
func (s *Service) IndexWhiteboard(w WhiteboardRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.IndexWhiteboard(w); err != nil {
			log.Printf("search: index whiteboard %s: %v", w.ID, err)
		}
	}()
}

// IndexComment indexes a comment (fire-and-forget to Meilisearch).
func (s *Service) IndexComment(c CommentRecord) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.IndexComment(c); err != nil {
			log.Printf("search: index comment %s: %v", c.ID, err)
		}
	}()
}

// DeleteWhiteboard removes a whiteboard and the given comments from the
// search index (fire-and-forget).
func (s *Service) DeleteWhiteboard(id string, commentIDs []string) {
	if !s.primaryReady() {
		return
	}
	go func() {
		if err := s.primary.DeleteWhiteboard(id); err != nil {
			log.Printf("search: delete whiteboard %s: %v", id, err)
		}
		for _, commentID := range commentIDs {
			if err := s.primary.DeleteComment(commentID); err != nil {
				log.Printf("search: delete comment %s: %v", commentID, err)
			}
		}
	}()
}

// ReindexAll pushes every record into Meilisearch.
func (s *Service) ReindexAll(whiteboards []WhiteboardRecord, comments []CommentRecord) {
	if !s.primaryReady() {
		return
	}
	if len(whiteboards) > 0 {
		if err := s.primary.IndexWhiteboards(whiteboards); err != nil {
			log.Printf("search: reindex whiteboards: %v", err)
		}
	}
	if len(comments) > 0 {
		if err := s.primary.IndexComments(comments); err != nil {
			log.Printf("search: reindex comments: %v", err)
		}
	}
}

// ReindexAllFromPG reindexes all searchable entities from PostgreSQL into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if !s.primaryReady() || s.loader == nil {
		return
	}
	whiteboards, comments, err := s.loader.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	s.ReindexAll(whiteboards, comments)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
