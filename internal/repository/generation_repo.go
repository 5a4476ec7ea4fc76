package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"commentgen/internal/models"
)

// MaxListLimit caps ListRecent regardless of the requested limit.
const MaxListLimit = 100

type GenerationRepo struct {
	pool *pgxpool.Pool
}

func NewGenerationRepo(pool *pgxpool.Pool) *GenerationRepo {
	return &GenerationRepo{pool: pool}
}

func (r *GenerationRepo) Record(ctx context.Context, g *models.GenerationRecord) error {
	query := `INSERT INTO generations (id, request_id, model, style, language, preset, creativity,
			snippet_bytes, comment_bytes, status, error_kind, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		g.ID, g.RequestID, g.Model, g.Style, g.Language, g.Preset, g.Creativity,
		g.SnippetBytes, g.CommentBytes, g.Status, g.ErrorKind, g.LatencyMS,
	).Scan(&g.CreatedAt)
}

func (r *GenerationRepo) ListRecent(ctx context.Context, limit int) ([]*models.GenerationRecord, error) {
	query := `SELECT id, request_id, model, style, language, preset, creativity,
			snippet_bytes, comment_bytes, status, error_kind, latency_ms, created_at
		FROM generations ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	defer rows.Close()

	var records []*models.GenerationRecord
	for rows.Next() {
		g := &models.GenerationRecord{}
		if err := rows.Scan(
			&g.ID, &g.RequestID, &g.Model, &g.Style, &g.Language, &g.Preset, &g.Creativity,
			&g.SnippetBytes, &g.CommentBytes, &g.Status, &g.ErrorKind, &g.LatencyMS, &g.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, g)
	}
	return records, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// DeleteBefore removes records created before cutoff.
func (r *GenerationRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM generations WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune generations: %w", err)
	}
	return tag.RowsAffected(), nil
}
