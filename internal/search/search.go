package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultWhiteboard ResultType = "whiteboard"
	ResultComment    ResultType = "comment"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type         ResultType `json:"type"`
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Snippet      string     `json:"snippet"`
	WhiteboardID string     `json:"whiteboardId"`
}

// Query describes a search request. OwnerID scopes every hit to boards the
// caller owns.
type Query struct {
	Text       string
	OwnerID    string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexWhiteboard(w WhiteboardRecord) error
	IndexComment(c CommentRecord) error
	DeleteWhiteboard(id string) error
	DeleteComment(id string) error
}

// Backend is a search engine that also maintains its own index.
type Backend interface {
	Searcher
	Indexer
	IndexWhiteboards(items []WhiteboardRecord) error
	IndexComments(items []CommentRecord) error
}

// WhiteboardRecord is the data we index for a whiteboard.
type WhiteboardRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
	Status  string `json:"status"`
}

// CommentRecord is the data we index for a comment.
type CommentRecord struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	UserName     string `json:"userName"`
	WhiteboardID string `json:"whiteboardId"`
	OwnerID      string `json:"ownerId"`
}
