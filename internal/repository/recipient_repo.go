package repository

import (
	"context"
	"errors"
	"time"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/jackc/pgx/v5"
)

type RecipientRepository struct {
	db DBTX
}

func NewRecipientRepository(db DBTX) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// CreateIfAbsent claims the (group message, client) delivery slot. The
// unique constraint makes this the idempotency anchor for fan-out: created
// is false when a previous attempt already delivered to this client.
func (r *RecipientRepository) CreateIfAbsent(
	ctx context.Context,
	groupMessageID int64,
	clientID int64,
) (*models.GroupMessageRecipient, bool, error) {
	query := `
		INSERT INTO group_message_recipients (group_message_id, client_id)
		VALUES ($1, $2)
		ON CONFLICT (group_message_id, client_id) DO NOTHING
		RETURNING id, group_message_id, client_id, sent_at, confirmed_at
	`

	var recipient models.GroupMessageRecipient
	err := r.db.QueryRow(ctx, query, groupMessageID, clientID).Scan(
		&recipient.ID,
		&recipient.GroupMessageID,
		&recipient.ClientID,
		&recipient.SentAt,
		&recipient.ConfirmedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &recipient, true, nil
}

func (r *RecipientRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE group_message_recipients
		SET sent_at = NOW()
		WHERE id = $1
	`, id)
	return err
}

func (r *RecipientRepository) GetByIDForClient(
	ctx context.Context,
	id int64,
	clientID int64,
) (*models.GroupMessageRecipient, error) {
	query := `
		SELECT id, group_message_id, client_id, sent_at, confirmed_at
		FROM group_message_recipients
		WHERE id = $1 AND client_id = $2
	`

	var recipient models.GroupMessageRecipient
	err := r.db.QueryRow(ctx, query, id, clientID).Scan(
		&recipient.ID,
		&recipient.GroupMessageID,
		&recipient.ClientID,
		&recipient.SentAt,
		&recipient.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}

	return &recipient, nil
}

// ConfirmIfPending stamps confirmed_at once. pgx.ErrNoRows means there was
// no unconfirmed delivery record for this (id, client) pair; the caller
// distinguishes "already confirmed" from "not found".
func (r *RecipientRepository) ConfirmIfPending(
	ctx context.Context,
	id int64,
	clientID int64,
) (time.Time, error) {
	var confirmedAt time.Time
	err := r.db.QueryRow(ctx, `
		UPDATE group_message_recipients
		SET confirmed_at = NOW()
		WHERE id = $1 AND client_id = $2 AND confirmed_at IS NULL
		RETURNING confirmed_at
	`, id, clientID).Scan(&confirmedAt)
	return confirmedAt, err
}

// CountsByGroupMessage derives the sent/confirmed tallies from the delivery
// records; they are never stored.
func (r *RecipientRepository) CountsByGroupMessage(
	ctx context.Context,
	groupMessageID int64,
) (int, int, error) {
	var sent, confirmed int
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE sent_at IS NOT NULL),
			COUNT(*) FILTER (WHERE confirmed_at IS NOT NULL)
		FROM group_message_recipients
		WHERE group_message_id = $1
	`, groupMessageID).Scan(&sent, &confirmed)
	if err != nil {
		return 0, 0, err
	}
	return sent, confirmed, nil
}
