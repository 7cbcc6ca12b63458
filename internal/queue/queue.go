package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Producer pushes publish tasks onto the queue. It satisfies the service
// layer's PublishEnqueuer so approvals never import asynq directly.
type Producer struct {
	client *asynq.Client
}

func NewProducer(client *asynq.Client) *Producer {
	return &Producer{client: client}
}

func (p *Producer) EnqueuePost(ctx context.Context, draftID int64, delay time.Duration) error {
	payload, err := json.Marshal(PublishDraftPayload{DraftID: draftID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishDraft, payload)

	if _, err := p.client.EnqueueContext(ctx, task, asynq.ProcessIn(delay)); err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Info("publish task enqueued", "draft_id", draftID, "delay", delay)
	return nil
}
