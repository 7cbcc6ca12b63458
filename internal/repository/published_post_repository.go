package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/linkhubhq/linkhub-api/internal/models"
)

type PublishedPostRepository interface {
	Upsert(ctx context.Context, pp *models.PublishedPost) (int64, error)
	GetByPair(ctx context.Context, draftID, socialAccountID int64) (*models.PublishedPost, error)
	ListByDraftID(ctx context.Context, draftID int64) ([]*models.PublishedPost, error)
	RemoveByDraftID(ctx context.Context, draftID int64) error
}

type publishedPostRepository struct {
	db *sql.DB
}

func NewPublishedPostRepository(db *sql.DB) PublishedPostRepository {
	return &publishedPostRepository{db: db}
}

const publishedPostColumns = `id, draft_id, social_account_id, platform_post_id, status,
	published_at, error_message, metrics, metadata, created_at, updated_at`

// Upsert writes the publish record for a (draft, account) pair. The unique
// constraint on the pair makes a republish update the existing row instead of
// inserting a duplicate.
func (r *publishedPostRepository) Upsert(ctx context.Context, pp *models.PublishedPost) (int64, error) {
	query := `
		INSERT INTO published_posts (
			draft_id,
			social_account_id,
			platform_post_id,
			status,
			published_at,
			error_message,
			metrics,
			metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (draft_id, social_account_id) DO UPDATE SET
			platform_post_id = EXCLUDED.platform_post_id,
			status = EXCLUDED.status,
			published_at = EXCLUDED.published_at,
			error_message = EXCLUDED.error_message,
			metadata = EXCLUDED.metadata,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		pp.DraftID,
		pp.SocialAccountID,
		pp.PlatformPostID,
		pp.Status,
		pp.PublishedAt,
		pp.ErrorMessage,
		pp.Metrics,
		pp.Metadata,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishedPostRepository) GetByPair(ctx context.Context, draftID, socialAccountID int64) (*models.PublishedPost, error) {
	query := `SELECT ` + publishedPostColumns + ` FROM published_posts
		WHERE draft_id = $1 AND social_account_id = $2`

	row := r.db.QueryRowContext(ctx, query, draftID, socialAccountID)

	var pp models.PublishedPost
	err := row.Scan(&pp.ID, &pp.DraftID, &pp.SocialAccountID, &pp.PlatformPostID, &pp.Status,
		&pp.PublishedAt, &pp.ErrorMessage, &pp.Metrics, &pp.Metadata, &pp.CreatedAt, &pp.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &pp, nil
}

func (r *publishedPostRepository) ListByDraftID(ctx context.Context, draftID int64) ([]*models.PublishedPost, error) {
	query := `SELECT ` + publishedPostColumns + ` FROM published_posts
		WHERE draft_id = $1 ORDER BY published_at ASC`

	rows, err := r.db.QueryContext(ctx, query, draftID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.PublishedPost
	for rows.Next() {
		var pp models.PublishedPost
		err := rows.Scan(&pp.ID, &pp.DraftID, &pp.SocialAccountID, &pp.PlatformPostID, &pp.Status,
			&pp.PublishedAt, &pp.ErrorMessage, &pp.Metrics, &pp.Metadata, &pp.CreatedAt, &pp.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &pp)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *publishedPostRepository) RemoveByDraftID(ctx context.Context, draftID int64) error {
	query := `DELETE FROM published_posts WHERE draft_id = $1`
	_, err := r.db.ExecContext(ctx, query, draftID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
