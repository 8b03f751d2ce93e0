package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard/api/internal/board"
)

type seen struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

type stubAPI struct {
	mu       sync.Mutex
	requests []seen
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (s *stubAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, seen{
		method: r.Method,
		path:   r.URL.EscapedPath(),
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
		body:   string(body),
	})
	s.mu.Unlock()
	s.respond(w, r)
}

func (s *stubAPI) last() seen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestClient(t *testing.T, token string, respond func(w http.ResponseWriter, r *http.Request)) (*Client, *stubAPI) {
	t.Helper()
	stub := &stubAPI{respond: respond}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	c, err := New(Config{BaseURL: server.URL + "/", Token: token, HTTPClient: server.Client()})
	require.NoError(t, err)
	return c, stub
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestListWhiteboardsSendsTokenAndFilter(t *testing.T) {
	c, stub := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []board.Summary{{ID: "wb_1", Name: "Plan", Status: board.StatusPublished, CommentCount: 2}})
	})

	items, err := c.ListWhiteboards(context.Background(), board.StatusPublished)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].CommentCount)

	req := stub.last()
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "/api/whiteboards", req.path)
	assert.Equal(t, "status=PUBLISHED", req.query)
	assert.Equal(t, "Bearer tok", req.auth)
}

func TestAnonymousClientSendsNoAuthorization(t *testing.T) {
	c, stub := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, board.Whiteboard{ID: "wb_1", ShareID: "sh_1", Status: board.StatusPublished})
	})

	wb, err := c.GetShared(context.Background(), "sh_1")
	require.NoError(t, err)
	assert.Equal(t, "wb_1", wb.ID)
	assert.Equal(t, "/api/share/sh_1", stub.last().path)
	assert.Empty(t, stub.last().auth)
}

func TestSaveContentSendsOnlyContent(t *testing.T) {
	c, stub := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, board.Whiteboard{ID: "wb_1"})
	})

	require.NoError(t, c.SaveContent(context.Background(), "wb_1", json.RawMessage(`{"document":{"a":1}}`)))
	req := stub.last()
	assert.Equal(t, http.MethodPut, req.method)
	assert.Equal(t, "/api/whiteboards/wb_1", req.path)
	assert.JSONEq(t, `{"content":{"document":{"a":1}}}`, req.body)

	require.NoError(t, c.SaveContent(context.Background(), "wb_1", nil))
	assert.JSONEq(t, `{"content":null}`, stub.last().body)
}

func TestSetStatus(t *testing.T) {
	c, stub := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, board.Whiteboard{ID: "wb_1", Status: board.StatusPublished})
	})

	wb, err := c.SetStatus(context.Background(), "wb_1", board.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, board.StatusPublished, wb.Status)
	assert.JSONEq(t, `{"status":"PUBLISHED"}`, stub.last().body)
}

func TestToggleStatusFlipsCurrentState(t *testing.T) {
	c, stub := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, board.Whiteboard{ID: "wb_1", Status: board.StatusDraft})
			return
		}
		writeJSON(w, http.StatusOK, board.Whiteboard{ID: "wb_1", Status: board.StatusPublished})
	})

	wb, err := c.ToggleStatus(context.Background(), "wb_1")
	require.NoError(t, err)
	assert.Equal(t, board.StatusPublished, wb.Status)
	assert.Equal(t, http.MethodPut, stub.last().method)
	assert.JSONEq(t, `{"status":"PUBLISHED"}`, stub.last().body)
}

func TestCreateComment(t *testing.T) {
	c, stub := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, board.Comment{ID: "cm_1", Content: "hi", X: 1.5, Y: -2})
	})

	comment, err := c.CreateComment(context.Background(), "wb_1", board.CreateCommentInput{Content: "hi", X: 1.5, Y: -2})
	require.NoError(t, err)
	assert.Equal(t, "cm_1", comment.ID)
	assert.Equal(t, "/api/whiteboards/wb_1/comments", stub.last().path)
	assert.JSONEq(t, `{"content":"hi","x":1.5,"y":-2}`, stub.last().body)
}

func TestErrorBodyBecomesAPIError(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"code": "FORBIDDEN", "error": "Access denied"})
	})

	_, err := c.GetWhiteboard(context.Background(), "wb_1")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "FORBIDDEN", apiErr.Code)
	assert.Equal(t, "Access denied", apiErr.Message)
	assert.Equal(t, http.StatusForbidden, StatusOf(err))
}

func TestNonJSONErrorBody(t *testing.T) {
	c, _ := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.DeleteWhiteboard(context.Background(), "wb_1")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Contains(t, err.Error(), "Bad Gateway")
}

func TestSearchAndHistory(t *testing.T) {
	c, stub := newTestClient(t, "tok", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search":
			writeJSON(w, http.StatusOK, map[string]any{
				"results": []map[string]any{{"type": "whiteboard", "id": "wb_1", "title": "Plan", "whiteboardId": "wb_1"}},
				"total":   1,
				"query":   r.URL.Query().Get("q"),
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"versions": []map[string]any{{"hash": "abc", "message": "save", "author": "ada"}},
			})
		}
	})

	res, err := c.Search(context.Background(), "plan board", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "plan board", res.Query)
	assert.Equal(t, "limit=5&q=plan+board", stub.last().query)

	versions, err := c.History(context.Background(), "wb_1", 10)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, "abc", versions[0].Hash)
	assert.Equal(t, "/api/whiteboards/wb_1/history", stub.last().path)
	assert.Equal(t, "limit=10", stub.last().query)
}
