package queue

import (
	"github.com/linkhubhq/linkhub-api/internal/repository"
	"github.com/linkhubhq/linkhub-api/internal/service"
)

type Queue struct {
	dr        repository.DraftRepository
	publisher service.PublisherService
}

func NewQueue(
	dr repository.DraftRepository,
	publisher service.PublisherService) *Queue {
	return &Queue{
		dr:        dr,
		publisher: publisher,
	}
}

const TaskTypePublishDraft = "publish:draft"

type PublishDraftPayload struct {
	DraftID int64 `json:"draft_id"`
}
