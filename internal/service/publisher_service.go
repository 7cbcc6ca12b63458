package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PublisherService fans one draft out to its target accounts. Accounts fail
// independently; the draft becomes PUBLISHED as soon as at least one target
// succeeds. All persistence happens here, never in the adapters.
type PublisherService interface {
	PublishDraft(ctx context.Context, draft *models.Draft, accountIDs []int64) (*transfer.PublishSummary, error)
}

type publisherService struct {
	dr         repository.DraftRepository
	ar         repository.SocialAccountRepository
	pr         repository.PublishedPostRepository
	guard      TokenGuard
	publishers map[string]PlatformPublisher
}

func NewPublisherService(
	dr repository.DraftRepository,
	ar repository.SocialAccountRepository,
	pr repository.PublishedPostRepository,
	guard TokenGuard,
	publishers ...PlatformPublisher,
) PublisherService {
	byPlatform := make(map[string]PlatformPublisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	return &publisherService{dr: dr, ar: ar, pr: pr, guard: guard, publishers: byPlatform}
}

func (s *publisherService) PublishDraft(ctx context.Context, draft *models.Draft, accountIDs []int64) (*transfer.PublishSummary, error) {
	if len(accountIDs) == 0 {
		accountIDs = draft.TargetAccountIDs()
	}

	summary := &transfer.PublishSummary{DraftID: draft.ID}
	if len(accountIDs) == 0 {
		return summary, nil
	}

	// Disconnected accounts drop out of the fan-out silently.
	accounts, err := s.ar.ListConnectedByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	summary.TotalCount = len(accounts)

	for _, account := range accounts {
		result, err := s.publishToAccount(ctx, draft, account)
		if err != nil {
			slog.Info("publish failed for account", "draft_id", draft.ID, "account", account.AccountName, "error", err.Error())
			summary.Errors = append(summary.Errors, transfer.AccountError{
				AccountName: account.AccountName,
				Message:     err.Error(),
			})
			continue
		}

		if err := s.recordResult(ctx, draft.ID, account.ID, result); err != nil {
			summary.Errors = append(summary.Errors, transfer.AccountError{
				AccountName: account.AccountName,
				Message:     err.Error(),
			})
			continue
		}
		summary.SuccessCount++
	}

	if summary.SuccessCount > 0 {
		batchID, err := gonanoid.New()
		if err != nil {
			return nil, err
		}
		if _, err := s.dr.MarkPublished(ctx, draft.ID, batchID); err != nil {
			return nil, err
		}
	}

	slog.Info("draft fan-out complete", "draft_id", draft.ID,
		"success", summary.SuccessCount, "total", summary.TotalCount)
	return summary, nil
}

// publishToAccount runs one target: token check, adapter call, and the
// simulated fallback for platforms whose policy allows it.
func (s *publisherService) publishToAccount(ctx context.Context, draft *models.Draft, account *models.SocialAccount) (*transfer.PublishResult, error) {
	publisher, ok := s.publishers[account.Platform]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for platform %s", account.Platform)
	}
	policy := policyFor(account.Platform)

	if err := s.guard.EnsureFresh(ctx, account); err != nil {
		if policy.SimulateOnFailure {
			return s.simulatedResult(account.Platform)
		}
		return nil, err
	}

	result, err := publisher.Publish(ctx, account, draft.ContentFor(account.Platform), draft.MediaURLs)
	if err != nil {
		if policy.SimulateOnFailure {
			slog.Info("publish failed, recording simulated post", "platform", account.Platform, "error", err.Error())
			return s.simulatedResult(account.Platform)
		}
		return nil, err
	}
	return result, nil
}

// simulatedResult stands in for a real post when the platform call failed but
// the policy prefers a tagged placeholder over losing the publish. The id
// prefix and metadata flag keep it distinguishable from real posts.
func (s *publisherService) simulatedResult(platform string) (*transfer.PublishResult, error) {
	suffix, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	return &transfer.PublishResult{
		PlatformPostID: fmt.Sprintf("sim_%s_%s", platform[:2], suffix),
		Method:         "simulated",
		Simulated:      true,
	}, nil
}

func (s *publisherService) recordResult(ctx context.Context, draftID, accountID int64, result *transfer.PublishResult) error {
	metadata := models.JSONMap{
		"method":      result.Method,
		"has_media":   result.HasMedia,
		"media_count": result.MediaCount,
	}
	if result.Fallback {
		metadata["fallback"] = true
	}
	if result.Simulated {
		metadata["simulated"] = true
	}

	_, err := s.pr.Upsert(ctx, &models.PublishedPost{
		DraftID:         draftID,
		SocialAccountID: accountID,
		PlatformPostID:  result.PlatformPostID,
		Status:          models.PublishedPostStatusPublished,
		PublishedAt:     time.Now(),
		Metadata:        metadata,
	})
	return err
}
