package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"whiteboard/api/internal/board"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const whiteboardColumns = `id, name, content, status, share_id, user_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWhiteboard(row rowScanner) (Whiteboard, error) {
	var (
		item    Whiteboard
		content []byte
		status  string
	)
	if err := row.Scan(&item.ID, &item.Name, &content, &status, &item.ShareID, &item.UserID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Whiteboard{}, err
	}
	if len(content) > 0 {
		item.Content = json.RawMessage(content)
	}
	item.Status = board.Status(status)
	return item, nil
}

// nullableJSON maps an absent or JSON-null snapshot to SQL NULL.
func nullableJSON(raw json.RawMessage) any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return trimmed
}

// ListWhiteboards returns the owner's boards, most recently updated first.
// A nil status lists every status.
func (s *PostgresStore) ListWhiteboards(ctx context.Context, ownerID string, status *board.Status) ([]WhiteboardSummary, error) {
	query := `
		SELECT w.id, w.name, w.status, w.share_id, w.user_id, w.created_at, w.updated_at,
			(SELECT COUNT(*) FROM comments c WHERE c.whiteboard_id = w.id) AS comment_count
		FROM whiteboards w
		WHERE w.user_id = $1`
	args := []any{ownerID}
	if status != nil {
		query += ` AND w.status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY w.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list whiteboards: %w", err)
	}
	defer rows.Close()

	items := make([]WhiteboardSummary, 0)
	for rows.Next() {
		var item WhiteboardSummary
		var itemStatus string
		if err := rows.Scan(&item.ID, &item.Name, &itemStatus, &item.ShareID, &item.UserID, &item.CreatedAt, &item.UpdatedAt, &item.CommentCount); err != nil {
			return nil, fmt.Errorf("scan whiteboard: %w", err)
		}
		item.Status = board.Status(itemStatus)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate whiteboards: %w", err)
	}
	return items, nil
}

// GetWhiteboard returns sql.ErrNoRows unwrapped when the id is unknown.
func (s *PostgresStore) GetWhiteboard(ctx context.Context, id string) (Whiteboard, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+whiteboardColumns+` FROM whiteboards WHERE id=$1`, id)
	return scanWhiteboard(row)
}

// GetPublishedWhiteboardByShareID resolves a share token. Drafts are
// indistinguishable from unknown tokens.
func (s *PostgresStore) GetPublishedWhiteboardByShareID(ctx context.Context, shareID string) (Whiteboard, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+whiteboardColumns+`
		FROM whiteboards
		WHERE share_id=$1 AND status=$2
	`, shareID, string(board.StatusPublished))
	return scanWhiteboard(row)
}

func (s *PostgresStore) InsertWhiteboard(ctx context.Context, item Whiteboard) (Whiteboard, error) {
	status := item.Status
	if status == "" {
		status = board.StatusDraft
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO whiteboards (id, name, content, status, share_id, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+whiteboardColumns,
		item.ID, item.Name, nullableJSON(item.Content), string(status), item.ShareID, item.UserID)
	created, err := scanWhiteboard(row)
	if err != nil {
		return Whiteboard{}, fmt.Errorf("insert whiteboard: %w", err)
	}
	return created, nil
}

// UpdateWhiteboard applies the patch and bumps updated_at. Last write wins.
func (s *PostgresStore) UpdateWhiteboard(ctx context.Context, id string, patch WhiteboardPatch) (Whiteboard, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{id}
	argN := 2
	if patch.Name != nil {
		sets = append(sets, fmt.Sprintf("name=$%d", argN))
		args = append(args, *patch.Name)
		argN++
	}
	if patch.SetContent {
		sets = append(sets, fmt.Sprintf("content=$%d", argN))
		args = append(args, nullableJSON(patch.Content))
		argN++
	}
	if patch.Status != nil {
		sets = append(sets, fmt.Sprintf("status=$%d", argN))
		args = append(args, string(*patch.Status))
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE whiteboards
		SET %s
		WHERE id=$1
		RETURNING %s`, strings.Join(sets, ", "), whiteboardColumns), args...)
	updated, err := scanWhiteboard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Whiteboard{}, err
	}
	if err != nil {
		return Whiteboard{}, fmt.Errorf("update whiteboard: %w", err)
	}
	return updated, nil
}

// DeleteWhiteboard removes the board and its comments in one transaction.
func (s *PostgresStore) DeleteWhiteboard(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete whiteboard tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE whiteboard_id=$1`, id); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete comments: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM whiteboards WHERE id=$1`, id)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete whiteboard: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		_ = tx.Rollback()
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete whiteboard: %w", err)
	}
	return nil
}

// ListComments returns the board's comments newest first.
func (s *PostgresStore) ListComments(ctx context.Context, whiteboardID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, x, y, user_id, user_name, COALESCE(user_avatar, ''), whiteboard_id, created_at, updated_at
		FROM comments
		WHERE whiteboard_id=$1
		ORDER BY created_at DESC, id DESC
	`, whiteboardID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.Content, &item.X, &item.Y, &item.UserID, &item.UserName, &item.UserAvatar, &item.WhiteboardID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) (Comment, error) {
	var avatar any
	if item.UserAvatar != "" {
		avatar = item.UserAvatar
	}
	var created Comment
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (id, content, x, y, user_id, user_name, user_avatar, whiteboard_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, content, x, y, user_id, user_name, COALESCE(user_avatar, ''), whiteboard_id, created_at, updated_at
	`, item.ID, item.Content, item.X, item.Y, item.UserID, item.UserName, avatar, item.WhiteboardID).Scan(
		&created.ID, &created.Content, &created.X, &created.Y, &created.UserID, &created.UserName,
		&created.UserAvatar, &created.WhiteboardID, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return created, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
