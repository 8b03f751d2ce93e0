// Package client is a typed client for the whiteboard HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"whiteboard/api/internal/board"
	"whiteboard/api/internal/history"
	"whiteboard/api/internal/search"
)

const maxResponseBytes = 32 << 20

// Config holds what a Client needs. BaseURL is required; the rest default.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:8787".
	BaseURL string
	// Token is the bearer token. Empty means anonymous.
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("whiteboard api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("whiteboard api: %d %s: %s", e.Status, e.Code, e.Message)
}

// StatusOf returns the HTTP status behind err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: bad BaseURL: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Token returns the bearer token the client sends.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) ListWhiteboards(ctx context.Context, status board.Status) ([]board.Summary, error) {
	path := "/api/whiteboards"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out []board.Summary
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateWhiteboard(ctx context.Context, input board.CreateWhiteboardInput) (board.Whiteboard, error) {
	var out board.Whiteboard
	err := c.do(ctx, http.MethodPost, "/api/whiteboards", input, &out)
	return out, err
}

func (c *Client) GetWhiteboard(ctx context.Context, id string) (board.Whiteboard, error) {
	var out board.Whiteboard
	err := c.do(ctx, http.MethodGet, whiteboardPath(id), nil, &out)
	return out, err
}

func (c *Client) UpdateWhiteboard(ctx context.Context, id string, input board.UpdateWhiteboardInput) (board.Whiteboard, error) {
	var out board.Whiteboard
	err := c.do(ctx, http.MethodPut, whiteboardPath(id), input, &out)
	return out, err
}

// SaveContent replaces the stored snapshot. Empty content clears it.
func (c *Client) SaveContent(ctx context.Context, id string, content json.RawMessage) error {
	if len(content) == 0 {
		content = json.RawMessage("null")
	}
	return c.do(ctx, http.MethodPut, whiteboardPath(id), board.UpdateWhiteboardInput{Content: content}, nil)
}

func (c *Client) SetStatus(ctx context.Context, id string, status board.Status) (board.Whiteboard, error) {
	return c.UpdateWhiteboard(ctx, id, board.UpdateWhiteboardInput{Status: &status})
}

// ToggleStatus flips a whiteboard between draft and published.
func (c *Client) ToggleStatus(ctx context.Context, id string) (board.Whiteboard, error) {
	wb, err := c.GetWhiteboard(ctx, id)
	if err != nil {
		return board.Whiteboard{}, err
	}
	return c.SetStatus(ctx, id, wb.Status.Toggle())
}

func (c *Client) DeleteWhiteboard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, whiteboardPath(id), nil, nil)
}

func (c *Client) ListComments(ctx context.Context, whiteboardID string) ([]board.Comment, error) {
	var out []board.Comment
	if err := c.do(ctx, http.MethodGet, whiteboardPath(whiteboardID)+"/comments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateComment(ctx context.Context, whiteboardID string, input board.CreateCommentInput) (board.Comment, error) {
	var out board.Comment
	err := c.do(ctx, http.MethodPost, whiteboardPath(whiteboardID)+"/comments", input, &out)
	return out, err
}

// GetShared fetches a published whiteboard by its share id. No token is
// needed.
func (c *Client) GetShared(ctx context.Context, shareID string) (board.Whiteboard, error) {
	var out board.Whiteboard
	err := c.do(ctx, http.MethodGet, "/api/share/"+url.PathEscape(shareID), nil, &out)
	return out, err
}

func (c *Client) Search(ctx context.Context, query string, limit int) (search.Response, error) {
	values := url.Values{}
	values.Set("q", query)
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out search.Response
	err := c.do(ctx, http.MethodGet, "/api/search?"+values.Encode(), nil, &out)
	return out, err
}

func (c *Client) History(ctx context.Context, whiteboardID string, limit int) ([]history.Version, error) {
	path := whiteboardPath(whiteboardID) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Versions []history.Version `json:"versions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

func whiteboardPath(id string) string {
	return "/api/whiteboards/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseError(resp.StatusCode, payload)
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func parseError(status int, payload []byte) error {
	apiErr := &APIError{Status: status}
	var body struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(payload))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
