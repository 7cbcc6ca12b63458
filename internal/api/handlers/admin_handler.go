package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/linkhubhq/linkhub-api/internal/service"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

type AdminHandler struct {
	s service.DraftService
}

func NewAdminHandler(s service.DraftService) *AdminHandler {
	return &AdminHandler{s: s}
}

func (h *AdminHandler) ListDrafts(c *fiber.Ctx) error {
	status := c.Query("status")
	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)

	drafts, total, err := h.s.ListForAdmin(c.Context(), status, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list drafts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"drafts": drafts,
		"total":  total,
	})
}

func (h *AdminHandler) DecideDraft(c *fiber.Ctx) error {
	draftID := c.QueryInt("id", 0)

	var decision transfer.DraftDecision
	if err := c.BodyParser(&decision); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	draft, err := h.s.Decide(c.Context(), int64(draftID), &decision)
	if err != nil {
		if errors.Is(err, service.ErrDraftNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Draft not found",
			})
		}
		if errors.Is(err, service.ErrDraftNotPending) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Draft is not awaiting a decision",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(draft)
}
