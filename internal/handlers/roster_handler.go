package handlers

import (
	"errors"

	"github.com/CejeJoe/gymcoach-sub001/internal/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type RosterHandler struct {
	rosterRepo *repository.RosterRepository
	userRepo   *repository.UserRepository
}

func NewRosterHandler(
	rosterRepo *repository.RosterRepository,
	userRepo *repository.UserRepository,
) *RosterHandler {
	return &RosterHandler{rosterRepo: rosterRepo, userRepo: userRepo}
}

type attachClientRequest struct {
	ClientID int64 `json:"client_id"`
}

type setClientStatusRequest struct {
	Active *bool `json:"active"`
}

func (h *RosterHandler) List(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	links, err := h.rosterRepo.ListByCoach(c.Context(), coachID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list clients"})
	}

	return c.JSON(fiber.Map{"clients": links})
}

// Attach links a client to the coach's roster. Re-attaching a deactivated
// client reactivates the link.
func (h *RosterHandler) Attach(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	var req attachClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.ClientID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_id is required"})
	}

	user, err := h.userRepo.GetByID(c.Context(), req.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to lookup client"})
	}
	if user.Role != "client" {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "client_id must reference a client account"})
	}

	link, err := h.rosterRepo.Link(c.Context(), coachID, req.ClientID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to attach client"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"client": link})
}

// SetStatus toggles a roster link. Deactivating removes the client from
// future audiences without touching the thread history.
func (h *RosterHandler) SetStatus(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	clientID, err := parseIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid client id"})
	}

	var req setClientStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Active == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "active is required"})
	}

	link, err := h.rosterRepo.SetActive(c.Context(), coachID, clientID, *req.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to update client"})
	}

	return c.JSON(fiber.Map{"client": link})
}

func (h *RosterHandler) requireCoach(c *fiber.Ctx) (int64, error) {
	if actorRole(c) != "coach" {
		return 0, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return 0, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	return coachID, nil
}
