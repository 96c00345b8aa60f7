package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/CejeJoe/gymcoach-sub001/internal/services"
	"github.com/gofiber/fiber/v2"
)

type ThreadHandler struct {
	service threadApplicationService
}

type threadApplicationService interface {
	SendMessage(ctx context.Context, coachID, clientID, senderID int64, body string) (*models.Message, error)
	ListMessages(ctx context.Context, coachID, clientID, actorID int64, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, coachID, clientID, readerID int64) (int, error)
	ListThreads(ctx context.Context, actorID int64) ([]models.ThreadSummary, error)
}

func NewThreadHandler(service *services.ThreadService) *ThreadHandler {
	return &ThreadHandler{service: service}
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

func (h *ThreadHandler) ListThreads(c *fiber.Ctx) error {
	actorID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	summaries, err := h.service.ListThreads(c.Context(), actorID)
	if err != nil {
		return mapThreadError(c, err)
	}

	return c.JSON(fiber.Map{"threads": summaries})
}

func (h *ThreadHandler) ListMessages(c *fiber.Ctx) error {
	coachID, clientID, actorID, err := h.resolvePair(c)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "limit must be a non-negative integer"})
		}
		limit = parsed
	}

	messages, err := h.service.ListMessages(c.Context(), coachID, clientID, actorID, limit)
	if err != nil {
		return mapThreadError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ThreadHandler) SendMessage(c *fiber.Ctx) error {
	coachID, clientID, actorID, err := h.resolvePair(c)
	if err != nil {
		return err
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), coachID, clientID, actorID, req.Body)
	if err != nil {
		return mapThreadError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ThreadHandler) MarkRead(c *fiber.Ctx) error {
	coachID, clientID, actorID, err := h.resolvePair(c)
	if err != nil {
		return err
	}

	updated, err := h.service.MarkRead(c.Context(), coachID, clientID, actorID)
	if err != nil {
		return mapThreadError(c, err)
	}

	return c.JSON(fiber.Map{"updated": updated})
}

// resolvePair reads the actor from the token and the partner from the path
// and orients them into the (coach, client) thread key. A non-nil error has
// already been written to the response.
func (h *ThreadHandler) resolvePair(c *fiber.Ctx) (coachID, clientID, actorID int64, err error) {
	actorID, err = parseActorID(c)
	if err != nil {
		return 0, 0, 0, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	partnerID, err := parseIDParam(c, "partnerId")
	if err != nil {
		return 0, 0, 0, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid partner id"})
	}

	coachID, clientID, ok := threadPair(actorRole(c), actorID, partnerID)
	if !ok {
		return 0, 0, 0, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	return coachID, clientID, actorID, nil
}

func mapThreadError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid message"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Thread not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process thread request"})
	}
}
