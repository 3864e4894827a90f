package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type CredentialHandler struct {
	s service.CredentialService
}

func NewCredentialHandler(s service.CredentialService) *CredentialHandler {
	return &CredentialHandler{s: s}
}

func (h *CredentialHandler) CreateCredential(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var cc transfer.CredentialCreation
	if err := c.BodyParser(&cc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse credential data",
		})
	}

	credentialID, err := h.s.Create(c.Context(), userID, &cc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"credential_id": credentialID,
	})
}

func (h *CredentialHandler) ListCredentials(c *fiber.Ctx) error {
	userID := GetUserID(c)

	creds, err := h.s.List(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list credentials",
		})
	}

	return c.Status(fiber.StatusOK).JSON(creds)
}

func (h *CredentialHandler) TestCredential(c *fiber.Ctx) error {
	userID := GetUserID(c)
	credentialID := c.QueryInt("id", 0)

	if err := h.s.Test(c.Context(), userID, int64(credentialID)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Credential is valid",
	})
}

func (h *CredentialHandler) RemoveCredential(c *fiber.Ctx) error {
	userID := GetUserID(c)
	credentialID := c.QueryInt("id", 0)

	if err := h.s.Remove(c.Context(), userID, int64(credentialID)); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to remove credential",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
