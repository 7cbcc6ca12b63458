package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/linkhubhq/linkhub-api/internal/models"
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/internal/service"
)

// PublishSchedulerJob is the per-minute poller behind scheduled drafts. Each
// tick collects due SCHEDULED drafts and fans them out sequentially. A tick
// that overruns the interval is not stacked; the next tick is skipped.
type PublishSchedulerJob struct {
	dr          repository.DraftRepository
	publisher   service.PublisherService
	mu          sync.Mutex
	maxAttempts int
	now         func() time.Time
}

func NewPublishSchedulerJob(dr repository.DraftRepository, publisher service.PublisherService) *PublishSchedulerJob {
	return &PublishSchedulerJob{
		dr:          dr,
		publisher:   publisher,
		maxAttempts: 3,
		now:         time.Now,
	}
}

func (j *PublishSchedulerJob) Run() {
	if !j.mu.TryLock() {
		slog.Info("scheduler tick skipped, previous run still active")
		return
	}
	defer j.mu.Unlock()

	ctx := context.Background()

	due, err := j.dr.ListDue(ctx, j.now())
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if len(due) == 0 {
		return
	}

	slog.Info("scheduler tick", "due", len(due))
	for _, draft := range due {
		j.processDraft(ctx, draft.ID)
	}
}

// processDraft re-fetches and re-verifies the draft before publishing; the
// draft may have been rejected or published between the listing and now.
func (j *PublishSchedulerJob) processDraft(ctx context.Context, draftID int64) {
	draft, err := j.dr.GetByID(ctx, draftID)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if draft == nil || draft.Status != models.DraftStatusScheduled {
		return
	}

	summary, err := j.publisher.PublishDraft(ctx, draft, nil)
	if err != nil {
		slog.Info("scheduled publish failed", "draft_id", draftID, "error", err.Error())
		j.recordFailedAttempt(ctx, draftID)
		return
	}
	if summary.SuccessCount > 0 {
		return
	}

	j.recordFailedAttempt(ctx, draftID)
}

// recordFailedAttempt counts a fully failed run. After the attempt budget is
// spent the draft is parked as REJECTED so the poller stops picking it up.
func (j *PublishSchedulerJob) recordFailedAttempt(ctx context.Context, draftID int64) {
	attempts, err := j.dr.IncrementPublishAttempts(ctx, draftID)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if attempts < j.maxAttempts {
		slog.Info("scheduled publish will be retried", "draft_id", draftID, "attempts", attempts)
		return
	}

	reason := fmt.Sprintf("automatic publishing failed after %d attempts", attempts)
	if err := j.dr.UpdateDecision(ctx, draftID, models.DraftStatusRejected, reason); err != nil {
		slog.Info(err.Error())
		return
	}
	slog.Info("scheduled draft gave up", "draft_id", draftID, "attempts", attempts)
}
