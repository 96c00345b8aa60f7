package repository

import (
	"context"
	"database/sql"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/jackc/pgx/v5"
)

const messageColumns = `
	id, coach_id, client_id, sender_id, body, seq, created_at, read_at,
	group_message_id, group_message_recipient_id, group_title,
	requires_confirmation, confirmed_at, workout_id
`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// BroadcastLink carries the group-message fields stamped onto a thread
// message created by fan-out.
type BroadcastLink struct {
	GroupMessageID       int64
	RecipientID          int64
	Title                *string
	RequiresConfirmation bool
	WorkoutID            *int64
}

type AppendMessageInput struct {
	CoachID   int64
	ClientID  int64
	SenderID  int64
	Body      string
	Broadcast *BroadcastLink
}

// Append inserts the next message of a thread. It must run inside a
// transaction: the advisory lock serializes writers per (coach, client) pair
// for the duration of the tx, which is what keeps (created_at, seq) a
// strictly increasing total order even when NOW() repeats or steps backward.
func (r *MessageRepository) Append(
	ctx context.Context,
	input AppendMessageInput,
) (*models.Message, error) {
	_, err := r.db.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))
	`, input.CoachID, input.ClientID)
	if err != nil {
		return nil, err
	}

	var groupMessageID, recipientID, workoutID *int64
	var groupTitle *string
	requiresConfirmation := false
	if link := input.Broadcast; link != nil {
		groupMessageID = &link.GroupMessageID
		recipientID = &link.RecipientID
		groupTitle = link.Title
		requiresConfirmation = link.RequiresConfirmation
		workoutID = link.WorkoutID
	}

	query := `
		INSERT INTO messages (
			coach_id, client_id, sender_id, body, seq, created_at,
			group_message_id, group_message_recipient_id, group_title,
			requires_confirmation, workout_id
		)
		SELECT
			$1, $2, $3, $4,
			COALESCE(t.max_seq, 0) + 1,
			GREATEST(NOW(), t.max_created + INTERVAL '1 microsecond'),
			$5, $6, $7, $8, $9
		FROM (
			SELECT MAX(seq) AS max_seq, MAX(created_at) AS max_created
			FROM messages
			WHERE coach_id = $1 AND client_id = $2
		) t
		RETURNING ` + messageColumns

	row := r.db.QueryRow(ctx, query,
		input.CoachID,
		input.ClientID,
		input.SenderID,
		input.Body,
		groupMessageID,
		recipientID,
		groupTitle,
		requiresConfirmation,
		workoutID,
	)
	return scanMessage(row)
}

// ListThread returns the thread in ascending (created_at, seq) order. A
// positive limit returns only the most recent messages, still ascending.
func (r *MessageRepository) ListThread(
	ctx context.Context,
	coachID int64,
	clientID int64,
	limit int,
) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE coach_id = $1 AND client_id = $2
		ORDER BY created_at, seq
	`
	args := []any{coachID, clientID}
	if limit > 0 {
		query = `
			SELECT ` + messageColumns + `
			FROM (
				SELECT ` + messageColumns + `
				FROM messages
				WHERE coach_id = $1 AND client_id = $2
				ORDER BY created_at DESC, seq DESC
				LIMIT $3
			) recent
			ORDER BY created_at, seq
		`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}

	return messages, rows.Err()
}

// MarkThreadRead flips read_at on every unread message authored by the other
// party and reports how many rows it touched. A repeat call with nothing new
// returns 0.
func (r *MessageRepository) MarkThreadRead(
	ctx context.Context,
	coachID int64,
	clientID int64,
	readerID int64,
) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET read_at = NOW()
		WHERE coach_id = $1
		  AND client_id = $2
		  AND sender_id <> $3
		  AND read_at IS NULL
	`, coachID, clientID, readerID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// StampConfirmed mirrors a delivery confirmation onto the linked thread
// message.
func (r *MessageRepository) StampConfirmed(
	ctx context.Context,
	recipientID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET confirmed_at = NOW()
		WHERE group_message_recipient_id = $1
		  AND confirmed_at IS NULL
	`, recipientID)
	return err
}

func (r *MessageRepository) ListThreadsForParticipant(
	ctx context.Context,
	participantID int64,
) ([]models.ThreadSummary, error) {
	query := `
		SELECT
			cc.coach_id,
			cc.client_id,
			lm.id,
			lm.sender_id,
			lm.body,
			lm.seq,
			lm.created_at,
			lm.read_at,
			COALESCE(uc.unread_count, 0)
		FROM coach_clients cc
		LEFT JOIN LATERAL (
			SELECT id, sender_id, body, seq, created_at, read_at
			FROM messages
			WHERE coach_id = cc.coach_id AND client_id = cc.client_id
			ORDER BY created_at DESC, seq DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE coach_id = cc.coach_id
			  AND client_id = cc.client_id
			  AND sender_id <> $1
			  AND read_at IS NULL
		) uc ON TRUE
		WHERE cc.coach_id = $1 OR cc.client_id = $1
		ORDER BY COALESCE(lm.created_at, cc.updated_at, cc.created_at) DESC, cc.client_id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ThreadSummary, 0)
	for rows.Next() {
		var summary models.ThreadSummary
		var lastID sql.NullInt64
		var lastSenderID sql.NullInt64
		var lastBody sql.NullString
		var lastSeq sql.NullInt64
		var lastCreatedAt sql.NullTime
		var lastReadAt sql.NullTime

		if err := rows.Scan(
			&summary.CoachID,
			&summary.ClientID,
			&lastID,
			&lastSenderID,
			&lastBody,
			&lastSeq,
			&lastCreatedAt,
			&lastReadAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if lastID.Valid {
			summary.LastMessage = &models.Message{
				ID:        lastID.Int64,
				CoachID:   summary.CoachID,
				ClientID:  summary.ClientID,
				SenderID:  lastSenderID.Int64,
				Body:      lastBody.String,
				Seq:       lastSeq.Int64,
				CreatedAt: lastCreatedAt.Time,
			}
			if lastReadAt.Valid {
				readAt := lastReadAt.Time
				summary.LastMessage.ReadAt = &readAt
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message
	err := row.Scan(
		&message.ID,
		&message.CoachID,
		&message.ClientID,
		&message.SenderID,
		&message.Body,
		&message.Seq,
		&message.CreatedAt,
		&message.ReadAt,
		&message.GroupMessageID,
		&message.GroupMessageRecipientID,
		&message.GroupTitle,
		&message.RequiresConfirmation,
		&message.ConfirmedAt,
		&message.WorkoutID,
	)
	if err != nil {
		return nil, err
	}
	return &message, nil
}
