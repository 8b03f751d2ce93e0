package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

type fakeBackend struct {
	mu        sync.Mutex
	healthy   bool
	results   []Result
	err       error
	queries   []Query
	indexed   []string
	deleted   []string
	indexedCh chan string
}

func (f *fakeBackend) Search(_ context.Context, q Query) ([]Result, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.results, len(f.results), f.err
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) record(list *[]string, id string) error {
	f.mu.Lock()
	*list = append(*list, id)
	f.mu.Unlock()
	if f.indexedCh != nil {
		f.indexedCh <- id
	}
	return nil
}

func (f *fakeBackend) IndexWhiteboard(w WhiteboardRecord) error { return f.record(&f.indexed, w.ID) }
func (f *fakeBackend) IndexComment(c CommentRecord) error       { return f.record(&f.indexed, c.ID) }
func (f *fakeBackend) DeleteWhiteboard(id string) error         { return f.record(&f.deleted, id) }
func (f *fakeBackend) DeleteComment(id string) error            { return f.record(&f.deleted, id) }
func (f *fakeBackend) IndexWhiteboards(items []WhiteboardRecord) error {
	for _, item := range items {
		_ = f.record(&f.indexed, item.ID)
	}
	return nil
}
func (f *fakeBackend) IndexComments(items []CommentRecord) error {
	for _, item := range items {
		_ = f.record(&f.indexed, item.ID)
	}
	return nil
}

func TestSearchUsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeBackend{healthy: true, results: []Result{{Type: ResultWhiteboard, ID: "wb_1"}}}
	fallback := &fakeBackend{healthy: true}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(context.Background(), Query{Text: " roadmap ", OwnerID: "owner"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "wb_1" || resp.Query != "roadmap" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(fallback.queries) != 0 {
		t.Fatal("fallback must not be queried")
	}
}

func TestSearchFallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeBackend{healthy: true, err: errors.New("boom")}
	fallback := &fakeBackend{healthy: true, results: []Result{{Type: ResultComment, ID: "cm_1"}}}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(context.Background(), Query{Text: "hello", OwnerID: "owner"})
	if len(resp.Results) != 1 || resp.Results[0].ID != "cm_1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSearchSkipsUnhealthyPrimary(t *testing.T) {
	primary := &fakeBackend{healthy: false}
	fallback := &fakeBackend{healthy: true}
	svc := &Service{primary: primary, fallback: fallback}

	resp := svc.Search(context.Background(), Query{Text: "hello", OwnerID: "owner"})
	if len(primary.queries) != 0 || len(fallback.queries) != 1 {
		t.Fatalf("expected fallback only, primary=%d fallback=%d", len(primary.queries), len(fallback.queries))
	}
	if resp.Results == nil {
		t.Fatal("expected non-nil results")
	}
}

func TestSearchRequiresTextAndOwner(t *testing.T) {
	fallback := &fakeBackend{healthy: true}
	svc := &Service{fallback: fallback}
	svc.Search(context.Background(), Query{Text: "  ", OwnerID: "owner"})
	svc.Search(context.Background(), Query{Text: "x"})
	if len(fallback.queries) != 0 {
		t.Fatal("expected no backend queries")
	}
}

func TestFallbackErrorYieldsEmptyResponse(t *testing.T) {
	svc := &Service{fallback: &fakeBackend{healthy: true, err: errors.New("db down")}}
	resp := svc.Search(context.Background(), Query{Text: "x", OwnerID: "owner"})
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestIndexingIsFireAndForget(t *testing.T) {
	primary := &fakeBackend{healthy: true, indexedCh: make(chan string, 4)}
	svc := &Service{primary: primary}

	svc.IndexWhiteboard(WhiteboardRecord{ID: "wb_1"})
	svc.DeleteWhiteboard("wb_2", []string{"cm_1"})

	seen := map[string]bool{}
	for len(seen) < 3 {
		select {
		case id := <-primary.indexedCh:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, saw %v", seen)
		}
	}
}

func TestIndexingSkippedWithoutPrimary(t *testing.T) {
	svc := NewService(nil, nil)
	svc.IndexWhiteboard(WhiteboardRecord{ID: "wb_1"})
	svc.IndexComment(CommentRecord{ID: "cm_1"})
	svc.ReindexAllFromPG(context.Background())
	if resp := svc.Search(context.Background(), Query{Text: "x", OwnerID: "o"}); len(resp.Results) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestBuildQueriesScopesToOwner(t *testing.T) {
	countSQL, dataSQL := buildQueries(Query{Text: "x", OwnerID: "o", Limit: 5, Offset: 10})
	for _, sql := range []string{countSQL, dataSQL} {
		if strings.Count(sql, "user_id = $2") != 2 {
			t.Fatalf("expected owner filter on both sub-queries: %s", sql)
		}
	}
	if !strings.Contains(dataSQL, "LIMIT 5 OFFSET 10") {
		t.Fatalf("expected paging clause: %s", dataSQL)
	}

	_, onlyBoards := buildQueries(Query{Text: "x", OwnerID: "o", FilterType: ResultWhiteboard})
	if strings.Contains(onlyBoards, "FROM comments") {
		t.Fatal("expected whiteboard-only query")
	}
}

func TestBuildRequestsFiltersOwner(t *testing.T) {
	requests := buildRequests(Query{Text: "x", OwnerID: "owner-1"})
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	for _, req := range requests {
		if req.Query != "x" || req.Limit != 20 {
			t.Fatalf("unexpected request %+v", req)
		}
		if filter := fmt.Sprint(req.Filter); filter != `[ownerId = "owner-1"]` {
			t.Fatalf("unexpected filter %s", filter)
		}
	}
	if only := buildRequests(Query{Text: "x", OwnerID: "o", FilterType: ResultComment}); len(only) != 1 || only[0].IndexUID != idxComments {
		t.Fatalf("expected comments index only, got %+v", only)
	}
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"id":           json.RawMessage(`"cm_1"`),
		"content":      json.RawMessage(`"ship it"`),
		"userName":     json.RawMessage(`"Ana"`),
		"whiteboardId": json.RawMessage(`"wb_1"`),
		"_formatted":   json.RawMessage(`{"content":"<mark>ship</mark> it","x":1}`),
	}
	r := hitToResult(hit, ResultComment)
	if r.ID != "cm_1" || r.Title != "Ana" || r.WhiteboardID != "wb_1" || r.Snippet != "<mark>ship</mark> it" {
		t.Fatalf("unexpected result %+v", r)
	}

	board := hitToResult(meili.Hit{"id": json.RawMessage(`"wb_1"`), "name": json.RawMessage(`"Roadmap"`)}, ResultWhiteboard)
	if board.WhiteboardID != "wb_1" || board.Title != "Roadmap" {
		t.Fatalf("unexpected board result %+v", board)
	}
}
