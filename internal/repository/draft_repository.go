package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/linkhubhq/linkhub-api/internal/models"
)

type DraftRepository interface {
	Create(ctx context.Context, tx *sql.Tx, draft *models.Draft) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Draft, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Draft, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Draft, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Draft, error)
	ListScheduledBetween(ctx context.Context, userID int64, from, to time.Time) ([]*models.Draft, error)
	UpdateStatus(ctx context.Context, id int64, from, to string) (bool, error)
	UpdateDecision(ctx context.Context, id int64, status, reason string) error
	MarkPublished(ctx context.Context, id int64, publishedID string) (bool, error)
	IncrementPublishAttempts(ctx context.Context, id int64) (int, error)
	CheckByUserID(ctx context.Context, draftID, userID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type draftRepository struct {
	db *sql.DB
}

func NewDraftRepository(db *sql.DB) DraftRepository {
	return &draftRepository{db: db}
}

const draftColumns = `id, user_id, master_content, platforms, platform_data, media_urls, status,
	scheduled_at, rejection_reason, published_id, publish_attempts, analytics, created_at, updated_at`

func scanDraft(row interface{ Scan(...interface{}) error }) (*models.Draft, error) {
	var d models.Draft
	err := row.Scan(&d.ID, &d.UserID, &d.MasterContent, &d.Platforms, &d.PlatformData,
		&d.MediaURLs, &d.Status, &d.ScheduledAt, &d.RejectionReason, &d.PublishedID,
		&d.PublishAttempts, &d.Analytics, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepository) Create(ctx context.Context, tx *sql.Tx, draft *models.Draft) (int64, error) {
	query := `
		INSERT INTO drafts (user_id, master_content, platforms, platform_data, media_urls, status, scheduled_at, analytics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{draft.UserID, draft.MasterContent, draft.Platforms,
		draft.PlatformData, draft.MediaURLs, draft.Status, draft.ScheduledAt, draft.Analytics}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *draftRepository) GetByID(ctx context.Context, id int64) (*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id = $1`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return draft, nil
}

func (r *draftRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectDrafts(rows)
}

func (r *draftRepository) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, status, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectDrafts(rows)
}

func (r *draftRepository) CountByStatus(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM drafts`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return total, nil
}

func (r *draftRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts
		WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at ASC`

	rows, err := r.db.QueryContext(ctx, query, models.DraftStatusScheduled, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectDrafts(rows)
}

func (r *draftRepository) ListScheduledBetween(ctx context.Context, userID int64, from, to time.Time) ([]*models.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts
		WHERE user_id = $1 AND scheduled_at IS NOT NULL AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	return collectDrafts(rows)
}

// UpdateStatus moves a draft from one status to another. The write is
// conditioned on the expected current status so a concurrent approval and
// poller tick cannot clobber each other; it reports whether a row changed.
func (r *draftRepository) UpdateStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	query := `UPDATE drafts SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *draftRepository) UpdateDecision(ctx context.Context, id int64, status, reason string) error {
	query := `UPDATE drafts SET status = $1, rejection_reason = $2, updated_at = $3
		WHERE id = $4 AND status <> $5`

	_, err := r.db.ExecContext(ctx, query, status, reason, time.Now(), id, models.DraftStatusPublished)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// MarkPublished stamps the draft as published. A draft that is already
// PUBLISHED is left alone; the publish marker is written once.
func (r *draftRepository) MarkPublished(ctx context.Context, id int64, publishedID string) (bool, error) {
	query := `UPDATE drafts SET status = $1, published_id = $2, updated_at = $3
		WHERE id = $4 AND status <> $1`

	result, err := r.db.ExecContext(ctx, query, models.DraftStatusPublished, publishedID, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *draftRepository) IncrementPublishAttempts(ctx context.Context, id int64) (int, error) {
	query := `UPDATE drafts SET publish_attempts = publish_attempts + 1, updated_at = $1
		WHERE id = $2 RETURNING publish_attempts`

	var attempts int
	if err := r.db.QueryRowContext(ctx, query, time.Now(), id).Scan(&attempts); err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return attempts, nil
}

func (r *draftRepository) CheckByUserID(ctx context.Context, draftID, userID int64) (bool, error) {
	query := `SELECT 1 FROM drafts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, draftID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *draftRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM drafts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func collectDrafts(rows *sql.Rows) ([]*models.Draft, error) {
	var drafts []*models.Draft
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		drafts = append(drafts, draft)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return drafts, nil
}
