package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/CejeJoe/gymcoach-sub001/internal/repository"
	"github.com/jackc/pgx/v5"
)

const sweepBatchSize = 50

type groupMessageStore interface {
	Create(ctx context.Context, input repository.CreateGroupMessageInput) (*models.GroupMessage, error)
	GetByIDForCoach(ctx context.Context, id, coachID int64) (*models.GroupMessage, error)
	ListByCoach(ctx context.Context, coachID int64) ([]models.GroupMessage, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.GroupMessage, error)
	UpdateStatusIfCurrent(ctx context.Context, id int64, current []string, next string) (*models.GroupMessage, error)
}

type recipientStore interface {
	GetByIDForClient(ctx context.Context, id, clientID int64) (*models.GroupMessageRecipient, error)
	ConfirmIfPending(ctx context.Context, id, clientID int64) (time.Time, error)
	CountsByGroupMessage(ctx context.Context, groupMessageID int64) (int, int, error)
}

type messageConfirmStamper interface {
	StampConfirmed(ctx context.Context, recipientID int64) error
}

type workoutReader interface {
	GetByID(ctx context.Context, id int64) (*models.Workout, error)
}

type fanoutRunner interface {
	Fanout(ctx context.Context, broadcast *models.GroupMessage) (models.FanoutResult, error)
}

// BroadcastService owns the broadcast lifecycle. Every path that fires a
// broadcast -- the periodic sweep and an explicit send-now -- funnels
// through Trigger, whose status compare-and-swap is the only thing standing
// between a racing sweep and a racing manual send. Whichever loses the CAS
// does no work.
type BroadcastService struct {
	broadcasts groupMessageStore
	recipients recipientStore
	messages   messageConfirmStamper
	workouts   workoutReader
	dispatcher fanoutRunner
	now        func() time.Time
}

func NewBroadcastService(
	broadcasts groupMessageStore,
	recipients recipientStore,
	messages messageConfirmStamper,
	workouts workoutReader,
	dispatcher fanoutRunner,
) *BroadcastService {
	return &BroadcastService{
		broadcasts: broadcasts,
		recipients: recipients,
		messages:   messages,
		workouts:   workouts,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

type ScheduleBroadcastInput struct {
	Title               *string
	Body                string
	ScheduledAt         time.Time
	Audience            models.Audience
	RequireConfirmation bool
	WorkoutID           *int64
}

// Schedule validates and persists a broadcast in the scheduled state. A zero
// ScheduledAt means "due now"; the next sweep (or a send-now) fires it.
// Audience membership is NOT resolved here -- only the audience descriptor
// is stored, and resolution happens at send time.
func (s *BroadcastService) Schedule(
	ctx context.Context,
	coachID int64,
	input ScheduleBroadcastInput,
) (*models.GroupMessage, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, ErrInvalidInput
	}
	if err := input.Audience.Validate(); err != nil {
		return nil, ErrInvalidInput
	}

	if input.WorkoutID != nil {
		workout, err := s.workouts.GetByID(ctx, *input.WorkoutID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if workout.CoachID != coachID {
			return nil, ErrForbidden
		}
	}

	scheduledAt := input.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = s.now()
	}

	return s.broadcasts.Create(ctx, repository.CreateGroupMessageInput{
		CoachID:             coachID,
		Title:               input.Title,
		Body:                body,
		ScheduledAt:         scheduledAt.UTC(),
		Audience:            input.Audience,
		RequireConfirmation: input.RequireConfirmation,
		WorkoutID:           input.WorkoutID,
	})
}

// SendNow fires a broadcast regardless of its due time. A broadcast that is
// already sending, sent, or cancelled yields ErrConflict; a failed one is
// retried and only the previously-failed recipients are attempted.
func (s *BroadcastService) SendNow(
	ctx context.Context,
	coachID int64,
	groupMessageID int64,
) (*models.GroupMessage, models.FanoutResult, error) {
	broadcast, err := s.broadcasts.GetByIDForCoach(ctx, groupMessageID, coachID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.FanoutResult{}, ErrNotFound
		}
		return nil, models.FanoutResult{}, err
	}

	return s.Trigger(ctx, broadcast)
}

// Trigger is the single transition-guarded entry point into fan-out. Only a
// broadcast in scheduled (or failed, for an explicit retry) can move to
// sending, and exactly one caller wins that CAS. Zero resolved recipients is
// not a failure: the broadcast completes as sent with nothing delivered.
func (s *BroadcastService) Trigger(
	ctx context.Context,
	broadcast *models.GroupMessage,
) (*models.GroupMessage, models.FanoutResult, error) {
	sending, err := s.broadcasts.UpdateStatusIfCurrent(
		ctx,
		broadcast.ID,
		[]string{models.BroadcastStatusScheduled, models.BroadcastStatusFailed},
		models.BroadcastStatusSending,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.FanoutResult{}, ErrConflict
		}
		return nil, models.FanoutResult{}, err
	}

	result, fanoutErr := s.dispatcher.Fanout(ctx, sending)

	outcome := models.BroadcastStatusSent
	if fanoutErr != nil || len(result.Failed) > 0 {
		outcome = models.BroadcastStatusFailed
	}

	final, err := s.broadcasts.UpdateStatusIfCurrent(
		ctx,
		sending.ID,
		[]string{models.BroadcastStatusSending},
		outcome,
	)
	if err != nil {
		return nil, result, err
	}
	if fanoutErr != nil {
		return final, result, fanoutErr
	}
	return final, result, nil
}

// Sweep fires every scheduled broadcast whose due time has passed. It shares
// Trigger with SendNow, so a manual send racing the sweep is settled by the
// CAS; the loser's ErrConflict is not an error here.
func (s *BroadcastService) Sweep(ctx context.Context) (int, error) {
	due, err := s.broadcasts.ListDue(ctx, s.now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	fired := 0
	for i := range due {
		broadcast := &due[i]
		final, result, err := s.Trigger(ctx, broadcast)
		if err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			log.Printf("broadcast %d: sweep trigger failed: %v", broadcast.ID, err)
			continue
		}
		fired++
		log.Printf("broadcast %d: fired by sweep: status=%s delivered=%d skipped=%d failed=%d",
			final.ID, final.Status, result.Delivered, result.Skipped, len(result.Failed))
	}

	return fired, nil
}

// Cancel withdraws a broadcast that has not fired yet. Once sending, it can
// only finish.
func (s *BroadcastService) Cancel(
	ctx context.Context,
	coachID int64,
	groupMessageID int64,
) (*models.GroupMessage, error) {
	if _, err := s.broadcasts.GetByIDForCoach(ctx, groupMessageID, coachID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	cancelled, err := s.broadcasts.UpdateStatusIfCurrent(
		ctx,
		groupMessageID,
		[]string{models.BroadcastStatusScheduled},
		models.BroadcastStatusCancelled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return cancelled, nil
}

// Confirm records the recipient's acknowledgement. Confirming twice returns
// the original timestamp; a delivery record that does not exist for this
// client is ErrNotFound.
func (s *BroadcastService) Confirm(
	ctx context.Context,
	recipientID int64,
	clientID int64,
) (time.Time, error) {
	confirmedAt, err := s.recipients.ConfirmIfPending(ctx, recipientID, clientID)
	if err == nil {
		if stampErr := s.messages.StampConfirmed(ctx, recipientID); stampErr != nil {
			log.Printf("delivery %d: confirm stamp on thread message failed: %v", recipientID, stampErr)
		}
		return confirmedAt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, err
	}

	recipient, err := s.recipients.GetByIDForClient(ctx, recipientID, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	if recipient.ConfirmedAt != nil {
		return *recipient.ConfirmedAt, nil
	}
	return time.Time{}, ErrNotFound
}

// Status returns the broadcast with counts derived from its delivery
// records.
func (s *BroadcastService) Status(
	ctx context.Context,
	coachID int64,
	groupMessageID int64,
) (*models.BroadcastStatus, error) {
	broadcast, err := s.broadcasts.GetByIDForCoach(ctx, groupMessageID, coachID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sent, confirmed, err := s.recipients.CountsByGroupMessage(ctx, groupMessageID)
	if err != nil {
		return nil, err
	}

	return &models.BroadcastStatus{
		GroupMessage:   *broadcast,
		SentCount:      sent,
		ConfirmedCount: confirmed,
	}, nil
}

func (s *BroadcastService) List(
	ctx context.Context,
	coachID int64,
) ([]models.BroadcastStatus, error) {
	broadcasts, err := s.broadcasts.ListByCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}

	statuses := make([]models.BroadcastStatus, 0, len(broadcasts))
	for _, broadcast := range broadcasts {
		sent, confirmed, err := s.recipients.CountsByGroupMessage(ctx, broadcast.ID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, models.BroadcastStatus{
			GroupMessage:   broadcast,
			SentCount:      sent,
			ConfirmedCount: confirmed,
		})
	}

	return statuses, nil
}
