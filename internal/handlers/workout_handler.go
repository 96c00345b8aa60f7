package handlers

import (
	"strings"

	"github.com/CejeJoe/gymcoach-sub001/internal/repository"
	"github.com/gofiber/fiber/v2"
)

type WorkoutHandler struct {
	workoutRepo *repository.WorkoutRepository
}

func NewWorkoutHandler(workoutRepo *repository.WorkoutRepository) *WorkoutHandler {
	return &WorkoutHandler{workoutRepo: workoutRepo}
}

type createWorkoutRequest struct {
	Title string  `json:"title"`
	Notes *string `json:"notes"`
}

func (h *WorkoutHandler) List(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	workouts, total, err := h.workoutRepo.ListByCoach(c.Context(), coachID, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list workouts"})
	}

	return c.JSON(fiber.Map{
		"workouts":   workouts,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *WorkoutHandler) Create(c *fiber.Ctx) error {
	coachID, err := h.requireCoach(c)
	if err != nil {
		return err
	}

	var req createWorkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}
	if req.Notes != nil && strings.TrimSpace(*req.Notes) == "" {
		req.Notes = nil
	}

	workout, err := h.workoutRepo.Create(c.Context(), repository.CreateWorkoutInput{
		CoachID: coachID,
		Title:   title,
		Notes:   req.Notes,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create workout"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"workout": workout})
}

func (h *WorkoutHandler) requireCoach(c *fiber.Ctx) (int64, error) {
	if actorRole(c) != "coach" {
		return 0, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return 0, c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	return coachID, nil
}
