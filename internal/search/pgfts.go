package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const tsQuery = "plainto_tsquery('simple', $1)"

// buildQueries returns the count and page statements for q. $1 is the text,
// $2 the owner.
func buildQueries(q Query) (countSQL, dataSQL string) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultWhiteboard {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'whiteboard'::text AS type, w.id, w.name AS title,
				''::text AS snippet,
				w.id AS whiteboard_id,
				ts_rank(w.fts, %s) AS rank
			FROM whiteboards w
			WHERE w.fts @@ %s AND w.user_id = $2`, tsQuery, tsQuery))
	}
	if q.FilterType == "" || q.FilterType == ResultComment {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, c.user_name AS title,
				ts_headline('simple', c.content, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				c.whiteboard_id,
				ts_rank(c.fts, %s) AS rank
			FROM comments c
			JOIN whiteboards w ON w.id = c.whiteboard_id
			WHERE c.fts @@ %s AND w.user_id = $2`, tsQuery, tsQuery, tsQuery))
	}
	if len(subQueries) == 0 {
		return "", ""
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL = fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL = fmt.Sprintf(`SELECT type, id, title, snippet, whiteboard_id
		FROM (%s) sub
		ORDER BY rank DESC, id
		LIMIT %d OFFSET %d`, union, limit, offset)
	return countSQL, dataSQL
}

// Search runs a UNION ALL over whiteboard names and comment bodies, ranked
// with ts_rank.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || q.OwnerID == "" {
		return nil, 0, nil
	}
	countSQL, dataSQL := buildQueries(q)
	if dataSQL == "" {
		return nil, 0, nil
	}
	args := []any{q.Text, q.OwnerID}

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.WhiteboardID); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]WhiteboardRecord, []CommentRecord, error) {
	boardRows, err := p.db.QueryContext(ctx, `SELECT id, name, user_id, status FROM whiteboards`)
	if err != nil {
		return nil, nil, fmt.Errorf("load whiteboards: %w", err)
	}
	defer boardRows.Close()

	whiteboards := make([]WhiteboardRecord, 0)
	for boardRows.Next() {
		var w WhiteboardRecord
		if err := boardRows.Scan(&w.ID, &w.Name, &w.OwnerID, &w.Status); err != nil {
			return nil, nil, fmt.Errorf("scan whiteboard: %w", err)
		}
		whiteboards = append(whiteboards, w)
	}
	if err := boardRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate whiteboards: %w", err)
	}

	commentRows, err := p.db.QueryContext(ctx, `
		SELECT c.id, c.content, c.user_name, c.whiteboard_id, w.user_id
		FROM comments c
		JOIN whiteboards w ON w.id = c.whiteboard_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var c CommentRecord
		if err := commentRows.Scan(&c.ID, &c.Content, &c.UserName, &c.WhiteboardID, &c.OwnerID); err != nil {
			return nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate comments: %w", err)
	}

	return whiteboards, comments, nil
}
