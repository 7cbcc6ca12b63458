package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

// PublishEnqueuer hands a draft to the background queue. Implemented by the
// queue package; the indirection keeps the service layer free of asynq.
type PublishEnqueuer interface {
	EnqueuePost(ctx context.Context, draftID int64, delay time.Duration) error
}

type DraftService interface {
	Submit(ctx context.Context, userID int64, creation *transfer.DraftCreation, files []*multipart.FileHeader) (int64, error)
	Decide(ctx context.Context, draftID int64, decision *transfer.DraftDecision) (*models.Draft, error)
	List(ctx context.Context, userID int64) ([]*models.Draft, error)
	Info(ctx context.Context, userID, draftID int64) (*models.Draft, []*models.PublishedPost, error)
	Remove(ctx context.Context, userID, draftID int64) error
	Calendar(ctx context.Context, userID int64, from, to time.Time) ([]*models.Draft, error)
	ListForAdmin(ctx context.Context, status string, limit, offset int) ([]*models.Draft, int, error)
	PublishNow(ctx context.Context, userID, draftID int64, req *transfer.PublishRequest) (*transfer.PublishSummary, error)
}

var (
	ErrDraftNotFound       = errors.New("draft not found")
	ErrDraftNotPending     = errors.New("draft is not awaiting a decision")
	ErrDraftNotPublishable = errors.New("draft has not been approved")
)

type draftService struct {
	db        *sql.DB
	dr        repository.DraftRepository
	ar        repository.SocialAccountRepository
	pr        repository.PublishedPostRepository
	media     MediaService
	publisher PublisherService
	enqueuer  PublishEnqueuer
	validate  *validator.Validate
}

func NewDraftService(
	db *sql.DB,
	dr repository.DraftRepository,
	ar repository.SocialAccountRepository,
	pr repository.PublishedPostRepository,
	media MediaService,
	publisher PublisherService,
	enqueuer PublishEnqueuer,
) DraftService {
	return &draftService{
		db:        db,
		dr:        dr,
		ar:        ar,
		pr:        pr,
		media:     media,
		publisher: publisher,
		enqueuer:  enqueuer,
		validate:  validator.New(),
	}
}

// Submit creates a draft. Every submission starts PENDING regardless of its
// schedule; only an approval moves it forward.
func (s *draftService) Submit(ctx context.Context, userID int64, creation *transfer.DraftCreation, files []*multipart.FileHeader) (int64, error) {
	if err := s.validate.Struct(creation); err != nil {
		return 0, err
	}

	var platforms models.StringList
	if creation.Platforms != "" {
		if err := json.Unmarshal([]byte(creation.Platforms), &platforms); err != nil {
			return 0, fmt.Errorf("invalid platforms: %w", err)
		}
	}
	for _, platform := range platforms {
		if _, ok := publishPolicies[platform]; !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
		}
	}

	var platformData models.JSONMap
	if creation.PlatformData != "" {
		if err := json.Unmarshal([]byte(creation.PlatformData), &platformData); err != nil {
			return 0, fmt.Errorf("invalid platform data: %w", err)
		}
	}

	var accountIDs []int64
	if err := json.Unmarshal([]byte(creation.SocialAccountIDs), &accountIDs); err != nil {
		return 0, fmt.Errorf("invalid social account ids: %w", err)
	}
	if len(accountIDs) == 0 {
		return 0, errors.New("at least one social account is required")
	}
	for _, accountID := range accountIDs {
		owned, err := s.ar.CheckByUserID(ctx, accountID, userID)
		if err != nil {
			return 0, err
		}
		if !owned {
			return 0, fmt.Errorf("social account %d not found", accountID)
		}
	}

	var scheduledAt sql.NullTime
	if creation.ScheduledAt != "" {
		t, err := time.Parse(time.RFC3339, creation.ScheduledAt)
		if err != nil {
			return 0, fmt.Errorf("invalid scheduled_at: %w", err)
		}
		scheduledAt = sql.NullTime{Time: t, Valid: true}
	}

	mediaKeys, err := s.media.Upload(ctx, files)
	if err != nil {
		return 0, err
	}

	draft := &models.Draft{
		UserID:        userID,
		MasterContent: creation.MasterContent,
		Platforms:     platforms,
		PlatformData:  platformData,
		MediaURLs:     mediaKeys,
		Status:        models.DraftStatusPending,
		ScheduledAt:   scheduledAt,
	}
	draft.SetTargetAccountIDs(accountIDs)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	defer tx.Rollback()

	id, err := s.dr.Create(ctx, tx, draft)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	slog.Info("draft submitted", "draft_id", id, "user_id", userID, "scheduled", scheduledAt.Valid)
	return id, nil
}

// Decide applies an admin approve/reject. An approval routes the draft by its
// schedule: a future scheduled_at parks it as SCHEDULED for the poller, else
// it becomes APPROVED and the publish is queued immediately. A rejection is
// accepted from any status short of PUBLISHED, which is terminal: deciding a
// published draft returns it unchanged.
func (s *draftService) Decide(ctx context.Context, draftID int64, decision *transfer.DraftDecision) (*models.Draft, error) {
	if err := s.validate.Struct(decision); err != nil {
		return nil, err
	}

	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}
	if draft.Status == models.DraftStatusPublished {
		return draft, nil
	}

	if decision.Decision == transfer.DecisionReject {
		if err := s.dr.UpdateDecision(ctx, draftID, models.DraftStatusRejected, decision.Reason); err != nil {
			return nil, err
		}
		return s.dr.GetByID(ctx, draftID)
	}

	if draft.Status != models.DraftStatusPending {
		return nil, ErrDraftNotPending
	}

	if draft.ScheduledAt.Valid && draft.ScheduledAt.Time.After(time.Now()) {
		if _, err := s.dr.UpdateStatus(ctx, draftID, models.DraftStatusPending, models.DraftStatusScheduled); err != nil {
			return nil, err
		}
	} else {
		moved, err := s.dr.UpdateStatus(ctx, draftID, models.DraftStatusPending, models.DraftStatusApproved)
		if err != nil {
			return nil, err
		}
		if moved {
			if err := s.enqueuer.EnqueuePost(ctx, draftID, 0); err != nil {
				slog.Info(err.Error())
				return nil, err
			}
		}
	}

	return s.dr.GetByID(ctx, draftID)
}

func (s *draftService) List(ctx context.Context, userID int64) ([]*models.Draft, error) {
	return s.dr.GetByUserID(ctx, userID)
}

func (s *draftService) Info(ctx context.Context, userID, draftID int64) (*models.Draft, []*models.PublishedPost, error) {
	owned, err := s.dr.CheckByUserID(ctx, draftID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !owned {
		return nil, nil, ErrDraftNotFound
	}

	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}
	if draft == nil {
		return nil, nil, ErrDraftNotFound
	}

	posts, err := s.pr.ListByDraftID(ctx, draftID)
	if err != nil {
		return nil, nil, err
	}
	return draft, posts, nil
}

func (s *draftService) Remove(ctx context.Context, userID, draftID int64) error {
	owned, err := s.dr.CheckByUserID(ctx, draftID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrDraftNotFound
	}

	if err := s.pr.RemoveByDraftID(ctx, draftID); err != nil {
		return err
	}
	return s.dr.Remove(ctx, draftID)
}

func (s *draftService) Calendar(ctx context.Context, userID int64, from, to time.Time) ([]*models.Draft, error) {
	if !to.After(from) {
		return nil, errors.New("calendar range end must be after start")
	}
	return s.dr.ListScheduledBetween(ctx, userID, from, to)
}

func (s *draftService) ListForAdmin(ctx context.Context, status string, limit, offset int) ([]*models.Draft, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	drafts, err := s.dr.ListByStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.dr.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	return drafts, total, nil
}

// PublishNow runs the fan-out synchronously for an approved draft. A run with
// zero successes leaves the draft status unchanged so it can be retried.
func (s *draftService) PublishNow(ctx context.Context, userID, draftID int64, req *transfer.PublishRequest) (*transfer.PublishSummary, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}

	owned, err := s.dr.CheckByUserID(ctx, draftID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, ErrDraftNotFound
	}

	draft, err := s.dr.GetByID(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrDraftNotFound
	}
	if draft.Status != models.DraftStatusApproved && draft.Status != models.DraftStatusScheduled {
		return nil, ErrDraftNotPublishable
	}

	for _, accountID := range req.SocialAccountIDs {
		owned, err := s.ar.CheckByUserID(ctx, accountID, userID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, fmt.Errorf("social account %d not found", accountID)
		}
	}

	return s.publisher.PublishDraft(ctx, draft, req.SocialAccountIDs)
}
