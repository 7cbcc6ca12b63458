package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/linkhubhq/linkhub-api/internal/models"
)

// HandlePublishDraftTask runs one queued fan-out. The draft status is
// re-checked at execution time; a draft that was rejected, deleted or already
// published between enqueue and execution is skipped without error.
func (q *Queue) HandlePublishDraftTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishDraftPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	draft, err := q.dr.GetByID(ctx, payload.DraftID)
	if err != nil {
		return err
	}
	if draft == nil {
		slog.Info("queued draft no longer exists", "draft_id", payload.DraftID)
		return nil
	}
	if draft.Status != models.DraftStatusApproved && draft.Status != models.DraftStatusScheduled {
		slog.Info("queued draft not publishable anymore", "draft_id", draft.ID, "status", draft.Status)
		return nil
	}

	summary, err := q.publisher.PublishDraft(ctx, draft, nil)
	if err != nil {
		return err
	}

	// A zero-success run from an immediate approval leaves the draft
	// APPROVED so the user can trigger it again; only the scheduler applies
	// the bounded-retry policy.
	if summary.SuccessCount == 0 {
		slog.Info("queued publish had no successful targets", "draft_id", draft.ID, "errors", len(summary.Errors))
	}
	return nil
}
