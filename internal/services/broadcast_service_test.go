package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/CejeJoe/gymcoach-sub001/internal/repository"
	"github.com/jackc/pgx/v5"
)

// stubBroadcastStore keeps broadcasts in memory with the same CAS semantics
// the SQL store has: a status update only lands when the current status is
// one of the expected ones.
type stubBroadcastStore struct {
	mu         sync.Mutex
	nextID     int64
	broadcasts map[int64]*models.GroupMessage
}

func newStubBroadcastStore() *stubBroadcastStore {
	return &stubBroadcastStore{nextID: 1, broadcasts: make(map[int64]*models.GroupMessage)}
}

func (s *stubBroadcastStore) add(broadcast models.GroupMessage) *models.GroupMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	broadcast.ID = s.nextID
	s.nextID++
	s.broadcasts[broadcast.ID] = &broadcast
	copied := broadcast
	return &copied
}

func (s *stubBroadcastStore) Create(_ context.Context, input repository.CreateGroupMessageInput) (*models.GroupMessage, error) {
	return s.add(models.GroupMessage{
		CoachID:             input.CoachID,
		Title:               input.Title,
		Body:                input.Body,
		ScheduledAt:         input.ScheduledAt,
		Audience:            input.Audience,
		RequireConfirmation: input.RequireConfirmation,
		WorkoutID:           input.WorkoutID,
		Status:              models.BroadcastStatusScheduled,
	}), nil
}

func (s *stubBroadcastStore) GetByIDForCoach(_ context.Context, id, coachID int64) (*models.GroupMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	broadcast, ok := s.broadcasts[id]
	if !ok || broadcast.CoachID != coachID {
		return nil, pgx.ErrNoRows
	}
	copied := *broadcast
	return &copied, nil
}

func (s *stubBroadcastStore) ListByCoach(_ context.Context, coachID int64) ([]models.GroupMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GroupMessage, 0)
	for _, broadcast := range s.broadcasts {
		if broadcast.CoachID == coachID {
			out = append(out, *broadcast)
		}
	}
	return out, nil
}

func (s *stubBroadcastStore) ListDue(_ context.Context, now time.Time, _ int) ([]models.GroupMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]models.GroupMessage, 0)
	for _, broadcast := range s.broadcasts {
		if broadcast.Status == models.BroadcastStatusScheduled && !broadcast.ScheduledAt.After(now) {
			due = append(due, *broadcast)
		}
	}
	return due, nil
}

func (s *stubBroadcastStore) UpdateStatusIfCurrent(_ context.Context, id int64, current []string, next string) (*models.GroupMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	broadcast, ok := s.broadcasts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	for _, status := range current {
		if broadcast.Status == status {
			broadcast.Status = next
			copied := *broadcast
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type stubRecipientStore struct {
	recipients map[int64]*models.GroupMessageRecipient
	sent       int
	confirmed  int
}

func (s *stubRecipientStore) GetByIDForClient(_ context.Context, id, clientID int64) (*models.GroupMessageRecipient, error) {
	recipient, ok := s.recipients[id]
	if !ok || recipient.ClientID != clientID {
		return nil, pgx.ErrNoRows
	}
	return recipient, nil
}

func (s *stubRecipientStore) ConfirmIfPending(_ context.Context, id, clientID int64) (time.Time, error) {
	recipient, ok := s.recipients[id]
	if !ok || recipient.ClientID != clientID || recipient.ConfirmedAt != nil {
		return time.Time{}, pgx.ErrNoRows
	}
	now := time.Now()
	recipient.ConfirmedAt = &now
	return now, nil
}

func (s *stubRecipientStore) CountsByGroupMessage(_ context.Context, _ int64) (int, int, error) {
	return s.sent, s.confirmed, nil
}

type stubStamper struct {
	stamped []int64
}

func (s *stubStamper) StampConfirmed(_ context.Context, recipientID int64) error {
	s.stamped = append(s.stamped, recipientID)
	return nil
}

type stubWorkouts struct {
	workout *models.Workout
}

func (s *stubWorkouts) GetByID(_ context.Context, _ int64) (*models.Workout, error) {
	if s.workout == nil {
		return nil, pgx.ErrNoRows
	}
	return s.workout, nil
}

type stubFanout struct {
	results []models.FanoutResult
	err     error
	calls   int
}

func (s *stubFanout) Fanout(_ context.Context, _ *models.GroupMessage) (models.FanoutResult, error) {
	result := models.FanoutResult{}
	if s.calls < len(s.results) {
		result = s.results[s.calls]
	}
	s.calls++
	return result, s.err
}

func newTestBroadcastService(store *stubBroadcastStore, fanout *stubFanout) *BroadcastService {
	return NewBroadcastService(store, &stubRecipientStore{}, &stubStamper{}, &stubWorkouts{}, fanout)
}

func TestSendNowTransitionsToSentAndRejectsSecondTrigger(t *testing.T) {
	store := newStubBroadcastStore()
	broadcast := store.add(models.GroupMessage{CoachID: 7, Body: "Leg day moved to 6pm", Status: models.BroadcastStatusScheduled})
	fanout := &stubFanout{results: []models.FanoutResult{{Delivered: 3}}}
	service := newTestBroadcastService(store, fanout)

	final, result, err := service.SendNow(context.Background(), 7, broadcast.ID)
	if err != nil {
		t.Fatalf("SendNow: %v", err)
	}
	if final.Status != models.BroadcastStatusSent {
		t.Fatalf("expected sent, got %q", final.Status)
	}
	if result.Delivered != 3 {
		t.Fatalf("expected 3 delivered, got %d", result.Delivered)
	}

	// The second trigger loses the CAS: no second fan-out.
	_, _, err = service.SendNow(context.Background(), 7, broadcast.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second send, got %v", err)
	}
	if fanout.calls != 1 {
		t.Fatalf("expected exactly one fan-out, got %d", fanout.calls)
	}
}

func TestSendNowWithEmptyAudienceCompletesAsSent(t *testing.T) {
	store := newStubBroadcastStore()
	broadcast := store.add(models.GroupMessage{CoachID: 7, Body: "hello", Status: models.BroadcastStatusScheduled})
	service := newTestBroadcastService(store, &stubFanout{})

	final, result, err := service.SendNow(context.Background(), 7, broadcast.ID)
	if err != nil {
		t.Fatalf("SendNow: %v", err)
	}
	if final.Status != models.BroadcastStatusSent || result.Delivered != 0 {
		t.Fatalf("expected sent with zero deliveries, got %q %+v", final.Status, result)
	}
}

func TestPartialFailureMarksFailedAndRetryOnlyAttemptsRemainder(t *testing.T) {
	store := newStubBroadcastStore()
	broadcast := store.add(models.GroupMessage{CoachID: 7, Body: "hello", Status: models.BroadcastStatusScheduled})
	fanout := &stubFanout{results: []models.FanoutResult{
		{Delivered: 4, Failed: []int64{3}},
		{Delivered: 1, Skipped: 4},
	}}
	service := newTestBroadcastService(store, fanout)

	final, result, err := service.SendNow(context.Background(), 7, broadcast.ID)
	if err != nil {
		t.Fatalf("SendNow: %v", err)
	}
	if final.Status != models.BroadcastStatusFailed {
		t.Fatalf("expected failed, got %q", final.Status)
	}
	if result.Delivered != 4 || len(result.Failed) != 1 {
		t.Fatalf("expected partial result preserved, got %+v", result)
	}

	// Retry re-enters the same trigger; delivered recipients are skipped.
	final, result, err = service.SendNow(context.Background(), 7, broadcast.ID)
	if err != nil {
		t.Fatalf("retry SendNow: %v", err)
	}
	if final.Status != models.BroadcastStatusSent {
		t.Fatalf("expected sent after retry, got %q", final.Status)
	}
	if result.Skipped != 4 || result.Delivered != 1 {
		t.Fatalf("expected retry to skip 4 and deliver 1, got %+v", result)
	}
}

func TestSendNowUnknownBroadcastReturnsNotFound(t *testing.T) {
	service := newTestBroadcastService(newStubBroadcastStore(), &stubFanout{})

	_, _, err := service.SendNow(context.Background(), 7, 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCancelOnlyAllowedWhileScheduled(t *testing.T) {
	store := newStubBroadcastStore()
	scheduled := store.add(models.GroupMessage{CoachID: 7, Body: "a", Status: models.BroadcastStatusScheduled})
	sent := store.add(models.GroupMessage{CoachID: 7, Body: "b", Status: models.BroadcastStatusSent})
	service := newTestBroadcastService(store, &stubFanout{})

	cancelled, err := service.Cancel(context.Background(), 7, scheduled.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.BroadcastStatusCancelled {
		t.Fatalf("expected cancelled, got %q", cancelled.Status)
	}

	if _, err := service.Cancel(context.Background(), 7, sent.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict cancelling a sent broadcast, got %v", err)
	}
}

func TestScheduleValidatesBodyAudienceAndWorkoutOwnership(t *testing.T) {
	store := newStubBroadcastStore()
	workouts := &stubWorkouts{workout: &models.Workout{ID: 4, CoachID: 99}}
	service := NewBroadcastService(store, &stubRecipientStore{}, &stubStamper{}, workouts, &stubFanout{})

	_, err := service.Schedule(context.Background(), 7, ScheduleBroadcastInput{
		Body:     "  ",
		Audience: models.Audience{Type: models.AudienceAll},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty body, got %v", err)
	}

	_, err = service.Schedule(context.Background(), 7, ScheduleBroadcastInput{
		Body:     "hello",
		Audience: models.Audience{Type: models.AudienceClients},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty client list, got %v", err)
	}

	workoutID := int64(4)
	_, err = service.Schedule(context.Background(), 7, ScheduleBroadcastInput{
		Body:      "hello",
		Audience:  models.Audience{Type: models.AudienceAll},
		WorkoutID: &workoutID,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for another coach's workout, got %v", err)
	}
}

func TestScheduleDefaultsDueTimeToNow(t *testing.T) {
	store := newStubBroadcastStore()
	service := newTestBroadcastService(store, &stubFanout{})
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return fixed }

	broadcast, err := service.Schedule(context.Background(), 7, ScheduleBroadcastInput{
		Body:     "hello",
		Audience: models.Audience{Type: models.AudienceAll},
	})
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !broadcast.ScheduledAt.Equal(fixed) {
		t.Fatalf("expected due time %v, got %v", fixed, broadcast.ScheduledAt)
	}
	if broadcast.Status != models.BroadcastStatusScheduled {
		t.Fatalf("expected scheduled, got %q", broadcast.Status)
	}
}

func TestSweepFiresDueBroadcastsThroughTheSameGuard(t *testing.T) {
	store := newStubBroadcastStore()
	due := store.add(models.GroupMessage{
		CoachID:     7,
		Body:        "due",
		Status:      models.BroadcastStatusScheduled,
		ScheduledAt: time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
	})
	store.add(models.GroupMessage{
		CoachID:     7,
		Body:        "future",
		Status:      models.BroadcastStatusScheduled,
		ScheduledAt: time.Date(2026, 8, 1, 13, 0, 0, 0, time.UTC),
	})
	fanout := &stubFanout{results: []models.FanoutResult{{Delivered: 2}}}
	service := newTestBroadcastService(store, fanout)
	service.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	fired, err := service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if fired != 1 || fanout.calls != 1 {
		t.Fatalf("expected exactly the due broadcast to fire, fired=%d calls=%d", fired, fanout.calls)
	}

	updated, err := store.GetByIDForCoach(context.Background(), due.ID, 7)
	if err != nil {
		t.Fatalf("GetByIDForCoach: %v", err)
	}
	if updated.Status != models.BroadcastStatusSent {
		t.Fatalf("expected sent, got %q", updated.Status)
	}

	// A second sweep finds nothing scheduled and does no work.
	fired, err = service.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if fired != 0 || fanout.calls != 1 {
		t.Fatalf("expected idle second sweep, fired=%d calls=%d", fired, fanout.calls)
	}
}

func TestConfirmIsIdempotentAndScopedToTheRecipient(t *testing.T) {
	confirmedAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	recipients := &stubRecipientStore{recipients: map[int64]*models.GroupMessageRecipient{
		5: {ID: 5, GroupMessageID: 1, ClientID: 21},
		6: {ID: 6, GroupMessageID: 1, ClientID: 22, ConfirmedAt: &confirmedAt},
	}}
	stamper := &stubStamper{}
	service := NewBroadcastService(newStubBroadcastStore(), recipients, stamper, &stubWorkouts{}, &stubFanout{})

	first, err := service.Confirm(context.Background(), 5, 21)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if first.IsZero() {
		t.Fatal("expected a confirmation timestamp")
	}
	if len(stamper.stamped) != 1 || stamper.stamped[0] != 5 {
		t.Fatalf("expected thread message stamped for delivery 5, got %v", stamper.stamped)
	}

	second, err := service.Confirm(context.Background(), 5, 21)
	if err != nil {
		t.Fatalf("repeat Confirm: %v", err)
	}
	if !second.Equal(first) {
		t.Fatalf("expected original timestamp on repeat confirm, got %v vs %v", second, first)
	}

	already, err := service.Confirm(context.Background(), 6, 22)
	if err != nil {
		t.Fatalf("Confirm already-confirmed: %v", err)
	}
	if !already.Equal(confirmedAt) {
		t.Fatalf("expected stored timestamp, got %v", already)
	}

	if _, err := service.Confirm(context.Background(), 5, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong client, got %v", err)
	}
	if _, err := service.Confirm(context.Background(), 404, 21); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown delivery, got %v", err)
	}
}
