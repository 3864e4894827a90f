package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(s service.PostService) *PostHandler {
	return &PostHandler{s: s}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	pc := &transfer.PostCreation{
		Title:          c.FormValue("title"),
		Caption:        c.FormValue("caption"),
		ContentType:    c.FormValue("content_type"),
		Platforms:      c.FormValue("platforms"),
		ScheduledAt:    c.FormValue("scheduled_at"),
		GeneratePrompt: c.FormValue("generate_prompt"),
	}

	media, err := c.FormFile("media")
	if err != nil {
		media = nil
	}

	postID, scheduled, err := h.s.CreatePost(c.Context(), userID, pc, media)
	if err != nil {
		return errorStatus(c, err)
	}

	message := "Post created"
	if scheduled {
		message = "Post scheduled successfully"
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"post_id": postID,
		"message": message,
	})
}

func (h *PostHandler) PublishNow(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	outcome, err := h.s.PublishNow(c.Context(), userID, int64(postID))
	if err != nil {
		return errorStatus(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(outcome)
}

func (h *PostHandler) SchedulePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	scheduledAt, err := time.Parse(time.RFC3339, c.FormValue("scheduled_at"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid scheduled time format",
		})
	}

	if err := h.s.SchedulePost(c.Context(), userID, int64(postID), scheduledAt); err != nil {
		return errorStatus(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) CancelScheduled(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.CancelScheduled(c.Context(), userID, int64(postID)); err != nil {
		return errorStatus(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) GetStatus(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	status, err := h.s.GetStatus(c.Context(), userID, int64(postID))
	if err != nil {
		return errorStatus(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(postID)); err != nil {
		return errorStatus(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func errorStatus(c *fiber.Ctx, err error) error {
	slog.Info(err.Error())
	status := fiber.StatusInternalServerError
	if errors.Is(err, service.ErrValidation) {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
