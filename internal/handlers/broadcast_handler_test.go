package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/CejeJoe/gymcoach-sub001/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type stubBroadcastService struct {
	scheduleResult *models.GroupMessage
	scheduleErr    error
	listResult     []models.BroadcastStatus
	listErr        error
	statusResult   *models.BroadcastStatus
	statusErr      error
	sendResult     *models.GroupMessage
	sendFanout     models.FanoutResult
	sendErr        error
	cancelResult   *models.GroupMessage
	cancelErr      error
	confirmResult  time.Time
	confirmErr     error

	lastCoachID     int64
	lastBroadcastID int64
	lastRecipientID int64
	lastClientID    int64
	lastSchedule    services.ScheduleBroadcastInput
	scheduleCalls   int
}

func (s *stubBroadcastService) Schedule(_ context.Context, coachID int64, input services.ScheduleBroadcastInput) (*models.GroupMessage, error) {
	s.scheduleCalls++
	s.lastCoachID = coachID
	s.lastSchedule = input
	return s.scheduleResult, s.scheduleErr
}

func (s *stubBroadcastService) List(_ context.Context, coachID int64) ([]models.BroadcastStatus, error) {
	s.lastCoachID = coachID
	return s.listResult, s.listErr
}

func (s *stubBroadcastService) Status(_ context.Context, coachID, groupMessageID int64) (*models.BroadcastStatus, error) {
	s.lastCoachID = coachID
	s.lastBroadcastID = groupMessageID
	return s.statusResult, s.statusErr
}

func (s *stubBroadcastService) SendNow(_ context.Context, coachID, groupMessageID int64) (*models.GroupMessage, models.FanoutResult, error) {
	s.lastCoachID = coachID
	s.lastBroadcastID = groupMessageID
	return s.sendResult, s.sendFanout, s.sendErr
}

func (s *stubBroadcastService) Cancel(_ context.Context, coachID, groupMessageID int64) (*models.GroupMessage, error) {
	s.lastCoachID = coachID
	s.lastBroadcastID = groupMessageID
	return s.cancelResult, s.cancelErr
}

func (s *stubBroadcastService) Confirm(_ context.Context, recipientID, clientID int64) (time.Time, error) {
	s.lastRecipientID = recipientID
	s.lastClientID = clientID
	return s.confirmResult, s.confirmErr
}

func newBroadcastTestApp(service broadcastApplicationService, role, userID string) *fiber.App {
	handler := &BroadcastHandler{service: service, validate: validator.New()}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Post("/api/v1/broadcasts", handler.Schedule)
	app.Get("/api/v1/broadcasts", handler.List)
	app.Get("/api/v1/broadcasts/:id", handler.Status)
	app.Post("/api/v1/broadcasts/:id/send", handler.SendNow)
	app.Delete("/api/v1/broadcasts/:id", handler.Cancel)
	app.Post("/api/v1/deliveries/:id/confirm", handler.Confirm)
	return app
}

func TestScheduleBroadcastPassesInputThrough(t *testing.T) {
	service := &stubBroadcastService{
		scheduleResult: &models.GroupMessage{
			ID:      11,
			CoachID: 7,
			Body:    "Leg day moved to 6pm",
			Status:  models.BroadcastStatusScheduled,
		},
	}
	app := newBroadcastTestApp(service, "coach", "7")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/broadcasts", strings.NewReader(`{
		"title": "Schedule change",
		"body": "Leg day moved to 6pm",
		"scheduled_at": "2026-09-01T18:00:00Z",
		"audience": {"type": "clients", "client_ids": [42, 43]},
		"require_confirmation": true
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastCoachID != 7 {
		t.Fatalf("expected coach 7, got %d", service.lastCoachID)
	}
	input := service.lastSchedule
	if input.Audience.Type != models.AudienceClients || len(input.Audience.ClientIDs) != 2 {
		t.Fatalf("audience not passed through: %+v", input.Audience)
	}
	if !input.RequireConfirmation {
		t.Fatal("require_confirmation lost in translation")
	}
	want := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	if !input.ScheduledAt.Equal(want) {
		t.Fatalf("expected scheduled_at %v, got %v", want, input.ScheduledAt)
	}
}

func TestScheduleBroadcastRejectsMalformedAudience(t *testing.T) {
	service := &stubBroadcastService{}
	app := newBroadcastTestApp(service, "coach", "7")

	for _, payload := range []string{
		`{"body": "x", "audience": {"type": "everyone"}}`,
		`{"body": "x", "audience": {"type": "clients"}}`,
		`{"body": "x", "audience": {"type": "all", "client_ids": [1]}}`,
		`{"body": "x"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/broadcasts", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400, got %d", payload, resp.StatusCode)
		}
	}
	if service.scheduleCalls != 0 {
		t.Fatalf("service must not see malformed payloads, saw %d", service.scheduleCalls)
	}
}

func TestScheduleBroadcastRequiresCoachRole(t *testing.T) {
	service := &stubBroadcastService{}
	app := newBroadcastTestApp(service, "client", "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/broadcasts", strings.NewReader(`{
		"body": "x",
		"audience": {"type": "all"}
	}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if service.scheduleCalls != 0 {
		t.Fatal("service must not be called for a client")
	}
}

func TestSendNowReturnsFanoutResult(t *testing.T) {
	service := &stubBroadcastService{
		sendResult: &models.GroupMessage{ID: 11, CoachID: 7, Status: models.BroadcastStatusSent},
		sendFanout: models.FanoutResult{Delivered: 2, Skipped: 1, Failed: []int64{}},
	}
	app := newBroadcastTestApp(service, "coach", "7")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/broadcasts/11/send", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastBroadcastID != 11 {
		t.Fatalf("expected broadcast 11, got %d", service.lastBroadcastID)
	}

	var body struct {
		Result models.FanoutResult `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Result.Delivered != 2 || body.Result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", body.Result)
	}
}

func TestSendNowMapsConflict(t *testing.T) {
	service := &stubBroadcastService{sendErr: services.ErrConflict}
	app := newBroadcastTestApp(service, "coach", "7")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/broadcasts/11/send", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCancelMapsConflictWhenAlreadyFired(t *testing.T) {
	service := &stubBroadcastService{cancelErr: services.ErrConflict}
	app := newBroadcastTestApp(service, "coach", "7")

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/broadcasts/11", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestConfirmRequiresClientRole(t *testing.T) {
	service := &stubBroadcastService{}
	app := newBroadcastTestApp(service, "coach", "7")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/33/confirm", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestConfirmReturnsTimestamp(t *testing.T) {
	confirmedAt := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	service := &stubBroadcastService{confirmResult: confirmedAt}
	app := newBroadcastTestApp(service, "client", "42")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/deliveries/33/confirm", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastRecipientID != 33 || service.lastClientID != 42 {
		t.Fatalf("confirm not scoped: recipient=%d client=%d",
			service.lastRecipientID, service.lastClientID)
	}

	var body struct {
		ConfirmedAt string `json:"confirmed_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.ConfirmedAt != confirmedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected confirmed_at %q", body.ConfirmedAt)
	}
}

func TestStatusMapsNotFound(t *testing.T) {
	service := &stubBroadcastService{statusErr: services.ErrNotFound}
	app := newBroadcastTestApp(service, "coach", "7")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/broadcasts/999", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
