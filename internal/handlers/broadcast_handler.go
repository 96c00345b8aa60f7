package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/CejeJoe/gymcoach-sub001/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type BroadcastHandler struct {
	service  broadcastApplicationService
	validate *validator.Validate
}

type broadcastApplicationService interface {
	Schedule(ctx context.Context, coachID int64, input services.ScheduleBroadcastInput) (*models.GroupMessage, error)
	List(ctx context.Context, coachID int64) ([]models.BroadcastStatus, error)
	Status(ctx context.Context, coachID, groupMessageID int64) (*models.BroadcastStatus, error)
	SendNow(ctx context.Context, coachID, groupMessageID int64) (*models.GroupMessage, models.FanoutResult, error)
	Cancel(ctx context.Context, coachID, groupMessageID int64) (*models.GroupMessage, error)
	Confirm(ctx context.Context, recipientID, clientID int64) (time.Time, error)
}

func NewBroadcastHandler(service *services.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{
		service:  service,
		validate: validator.New(),
	}
}

type scheduleBroadcastRequest struct {
	Title               *string          `json:"title" validate:"omitempty,max=200"`
	Body                string           `json:"body" validate:"required"`
	ScheduledAt         string           `json:"scheduled_at"`
	Audience            *models.Audience `json:"audience" validate:"required"`
	RequireConfirmation bool             `json:"require_confirmation"`
	WorkoutID           *int64           `json:"workout_id" validate:"omitempty,gt=0"`
}

func (h *BroadcastHandler) Schedule(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	var req scheduleBroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var scheduledAt time.Time
	if raw := strings.TrimSpace(req.ScheduledAt); raw != "" {
		scheduledAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "scheduled_at must be a valid RFC3339 timestamp"})
		}
	}

	broadcast, err := h.service.Schedule(c.Context(), coachID, services.ScheduleBroadcastInput{
		Title:               req.Title,
		Body:                req.Body,
		ScheduledAt:         scheduledAt,
		Audience:            *req.Audience,
		RequireConfirmation: req.RequireConfirmation,
		WorkoutID:           req.WorkoutID,
	})
	if err != nil {
		return mapBroadcastError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"broadcast": broadcast})
}

func (h *BroadcastHandler) List(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	broadcasts, err := h.service.List(c.Context(), coachID)
	if err != nil {
		return mapBroadcastError(c, err)
	}

	return c.JSON(fiber.Map{"broadcasts": broadcasts})
}

func (h *BroadcastHandler) Status(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	broadcastID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid broadcast id"})
	}

	status, err := h.service.Status(c.Context(), coachID, broadcastID)
	if err != nil {
		return mapBroadcastError(c, err)
	}

	return c.JSON(fiber.Map{"broadcast": status})
}

func (h *BroadcastHandler) SendNow(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	broadcastID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid broadcast id"})
	}

	broadcast, result, err := h.service.SendNow(c.Context(), coachID, broadcastID)
	if err != nil {
		return mapBroadcastError(c, err)
	}

	return c.JSON(fiber.Map{
		"broadcast": broadcast,
		"result":    result,
	})
}

func (h *BroadcastHandler) Cancel(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	broadcastID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid broadcast id"})
	}

	broadcast, err := h.service.Cancel(c.Context(), coachID, broadcastID)
	if err != nil {
		return mapBroadcastError(c, err)
	}

	return c.JSON(fiber.Map{"broadcast": broadcast})
}

func (h *BroadcastHandler) Confirm(c *fiber.Ctx) error {
	if actorRole(c) != "client" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	clientID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	recipientID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid delivery id"})
	}

	confirmedAt, err := h.service.Confirm(c.Context(), recipientID, clientID)
	if err != nil {
		return mapBroadcastError(c, err)
	}

	return c.JSON(fiber.Map{"confirmed_at": confirmedAt.UTC().Format(time.RFC3339Nano)})
}

func (h *BroadcastHandler) requireCoach(c *fiber.Ctx) (int64, error) {
	if actorRole(c) != "coach" {
		return 0, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return 0, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	return coachID, nil
}

func mapBroadcastError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid broadcast"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Broadcast is not in a state that allows this"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process broadcast request"})
	}
}
