package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

var errInvalidActor = errors.New("invalid actor")

func parseActorID(c *fiber.Ctx) (int64, error) {
	value, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, errInvalidActor
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidActor
	}
	return id, nil
}

func actorRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func parseIDParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// threadPair maps the authenticated actor plus the :partnerId path segment
// onto the (coach, client) key of the thread. Only the two pair roles can
// address a thread.
func threadPair(role string, actorID, partnerID int64) (coachID, clientID int64, ok bool) {
	switch role {
	case "coach":
		return actorID, partnerID, true
	case "client":
		return partnerID, actorID, true
	default:
		return 0, 0, false
	}
}
