package services

import (
	"context"
	"strings"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/CejeJoe/gymcoach-sub001/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rosterPairReader interface {
	PairExists(ctx context.Context, coachID, clientID int64) (bool, error)
}

// ThreadService owns the direct-message log between one coach and one
// client: append with server-assigned total ordering, listing, and
// read-state.
type ThreadService struct {
	db          *pgxpool.Pool
	messageRepo *repository.MessageRepository
	rosterRepo  rosterPairReader
	notifier    threadNotifier
}

func NewThreadService(
	db *pgxpool.Pool,
	messageRepo *repository.MessageRepository,
	rosterRepo rosterPairReader,
	notifier threadNotifier,
) *ThreadService {
	return &ThreadService{
		db:          db,
		messageRepo: messageRepo,
		rosterRepo:  rosterRepo,
		notifier:    notifier,
	}
}

// SendMessage appends to the (coach, client) thread. The sender must be one
// of the two pair members and the pair must exist in the roster.
func (s *ThreadService) SendMessage(
	ctx context.Context,
	coachID int64,
	clientID int64,
	senderID int64,
	body string,
) (*models.Message, error) {
	if coachID <= 0 || clientID <= 0 || coachID == clientID {
		return nil, ErrInvalidInput
	}
	if senderID != coachID && senderID != clientID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	exists, err := s.rosterRepo.PairExists(ctx, coachID, clientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	message, err := txMessageRepo.Append(ctx, repository.AppendMessageInput{
		CoachID:  coachID,
		ClientID: clientID,
		SenderID: senderID,
		Body:     trimmed,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	recipientID := coachID
	if senderID == coachID {
		recipientID = clientID
	}
	if s.notifier != nil {
		s.notifier.NotifyThread(coachID, clientID, recipientID)
	}

	return message, nil
}

// ListMessages returns the thread ascending by (created_at, seq). With a
// positive limit only the most recent messages are returned, still in
// ascending order.
func (s *ThreadService) ListMessages(
	ctx context.Context,
	coachID int64,
	clientID int64,
	actorID int64,
	limit int,
) ([]models.Message, error) {
	if actorID != coachID && actorID != clientID {
		return nil, ErrForbidden
	}

	exists, err := s.rosterRepo.PairExists(ctx, coachID, clientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	return s.messageRepo.ListThread(ctx, coachID, clientID, limit)
}

// MarkRead sets read_at on every unread message authored by the other party
// and reports how many it flipped. Idempotent: nothing new means 0.
func (s *ThreadService) MarkRead(
	ctx context.Context,
	coachID int64,
	clientID int64,
	readerID int64,
) (int, error) {
	if readerID != coachID && readerID != clientID {
		return 0, ErrForbidden
	}

	exists, err := s.rosterRepo.PairExists(ctx, coachID, clientID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}

	return s.messageRepo.MarkThreadRead(ctx, coachID, clientID, readerID)
}

func (s *ThreadService) ListThreads(
	ctx context.Context,
	actorID int64,
) ([]models.ThreadSummary, error) {
	return s.messageRepo.ListThreadsForParticipant(ctx, actorID)
}
