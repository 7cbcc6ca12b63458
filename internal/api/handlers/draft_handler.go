package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/linkhubhq/linkhub-api/internal/service"
	"github.com/linkhubhq/linkhub-api/internal/transfer"
)

type DraftHandler struct {
	s service.DraftService
}

func NewDraftHandler(s service.DraftService) *DraftHandler {
	return &DraftHandler{s: s}
}

func (h *DraftHandler) CreateDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)

	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	creation := &transfer.DraftCreation{
		MasterContent:    c.FormValue("master_content"),
		Platforms:        c.FormValue("platforms"),
		PlatformData:     c.FormValue("platform_data"),
		ScheduledAt:      c.FormValue("scheduled_at"),
		SocialAccountIDs: c.FormValue("social_account_ids"),
	}

	draftID, err := h.s.Submit(c.Context(), userID, creation, form.File["files"])
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":      draftID,
		"message": "Draft submitted for review",
	})
}

func (h *DraftHandler) ListDrafts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.QueryInt("id", 0)

	if draftID != 0 {
		draft, posts, err := h.s.Info(c.Context(), userID, int64(draftID))
		if err != nil {
			if errors.Is(err, service.ErrDraftNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Draft not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unable to fetch draft",
			})
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"draft":           draft,
			"published_posts": posts,
		})
	}

	drafts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list drafts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(drafts)
}

func (h *DraftHandler) RemoveDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.QueryInt("id", 0)

	err := h.s.Remove(c.Context(), userID, int64(draftID))
	if err != nil {
		if errors.Is(err, service.ErrDraftNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Draft not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to remove draft",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// Calendar returns the user's scheduled drafts inside a date range. Without
// query parameters it covers the next 30 days.
func (h *DraftHandler) Calendar(c *fiber.Ctx) error {
	userID := GetUserID(c)

	from := time.Now()
	to := from.Add(30 * 24 * time.Hour)

	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid from date",
			})
		}
		from = parsed
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid to date",
			})
		}
		to = parsed
	}

	drafts, err := h.s.Calendar(c.Context(), userID, from, to)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(drafts)
}

func (h *DraftHandler) PublishDraft(c *fiber.Ctx) error {
	userID := GetUserID(c)
	draftID := c.QueryInt("id", 0)

	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	summary, err := h.s.PublishNow(c.Context(), userID, int64(draftID), &req)
	if err != nil {
		if errors.Is(err, service.ErrDraftNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Draft not found",
			})
		}
		if errors.Is(err, service.ErrDraftNotPublishable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Draft has not been approved",
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(summary)
}
