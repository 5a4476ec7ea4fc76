package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"commentgen/internal/models"
)

// sqliteTimeLayout keeps a fixed-width fraction so text order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteGenerationRepo is the single-file audit log used when DATABASE_URL
// is "sqlite:<path>". Timestamps are stored as UTC text.
type SQLiteGenerationRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteGenerationRepo(db *sql.DB) *SQLiteGenerationRepo {
	return &SQLiteGenerationRepo{db: db, now: time.Now}
}

func (r *SQLiteGenerationRepo) Record(ctx context.Context, g *models.GenerationRecord) error {
	createdAt := r.now().UTC()

	var errorKind sql.NullString
	if g.ErrorKind != nil {
		errorKind = sql.NullString{String: *g.ErrorKind, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO generations (id, request_id, model, style, language, preset, creativity,
			snippet_bytes, comment_bytes, status, error_kind, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID.String(), g.RequestID, g.Model, g.Style, g.Language, g.Preset, g.Creativity,
		g.SnippetBytes, g.CommentBytes, g.Status, errorKind, g.LatencyMS,
		createdAt.Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	g.CreatedAt = createdAt
	return nil
}

func (r *SQLiteGenerationRepo) ListRecent(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, request_id, model, style, language, preset, creativity,
			snippet_bytes, comment_bytes, status, error_kind, latency_ms, created_at
		FROM generations ORDER BY created_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var records []*models.GenerationRecord
	for rows.Next() {
		var (
			g         models.GenerationRecord
			id        string
			errorKind sql.NullString
			createdAt string
		)
		if err := rows.Scan(
			&id, &g.RequestID, &g.Model, &g.Style, &g.Language, &g.Preset, &g.Creativity,
			&g.SnippetBytes, &g.CommentBytes, &g.Status, &errorKind, &g.LatencyMS, &createdAt,
		); err != nil {
			return nil, err
		}

		g.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid generation id %q: %w", id, err)
		}
		if errorKind.Valid {
			kind := errorKind.String
			g.ErrorKind = &kind
		}
		g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
		}
		records = append(records, &g)
	}
	return records, rows.Err()
}

// DeleteBefore removes records created before cutoff.
func (r *SQLiteGenerationRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM generations WHERE created_at < ?", cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune generations: %w", err)
	}
	return res.RowsAffected()
}
