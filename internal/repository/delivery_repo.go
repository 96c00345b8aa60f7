package repository

import (
	"context"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryRepository materializes one broadcast recipient at a time. Unlike
// the other repositories it owns the pool, because a delivery is a single
// transaction: claim the recipient slot, append the thread message, stamp
// sent_at. Either all of it lands or none of it does, so the idempotency
// check never sees a half-delivered recipient.
type DeliveryRepository struct {
	db *pgxpool.Pool
}

func NewDeliveryRepository(db *pgxpool.Pool) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Deliver returns created=false when a delivery record for this recipient
// already exists, which makes re-entrant fan-out a no-op per recipient.
func (r *DeliveryRepository) Deliver(
	ctx context.Context,
	broadcast *models.GroupMessage,
	clientID int64,
) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRecipientRepo := NewRecipientRepository(tx)
	txMessageRepo := NewMessageRepository(tx)

	recipient, created, err := txRecipientRepo.CreateIfAbsent(ctx, broadcast.ID, clientID)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	_, err = txMessageRepo.Append(ctx, AppendMessageInput{
		CoachID:  broadcast.CoachID,
		ClientID: clientID,
		SenderID: broadcast.CoachID,
		Body:     broadcast.Body,
		Broadcast: &BroadcastLink{
			GroupMessageID:       broadcast.ID,
			RecipientID:          recipient.ID,
			Title:                broadcast.Title,
			RequiresConfirmation: broadcast.RequireConfirmation,
			WorkoutID:            broadcast.WorkoutID,
		},
	})
	if err != nil {
		return false, err
	}

	if err := txRecipientRepo.MarkSent(ctx, recipient.ID); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	return true, nil
}
