package repository

import (
	"context"
	"time"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/jackc/pgx/v5"
)

const groupMessageColumns = `
	id, coach_id, title, body, scheduled_at, audience_type,
	COALESCE(audience_client_ids, '{}'), require_confirmation, workout_id,
	status, created_at, updated_at
`

type GroupMessageRepository struct {
	db DBTX
}

func NewGroupMessageRepository(db DBTX) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

type CreateGroupMessageInput struct {
	CoachID             int64
	Title               *string
	Body                string
	ScheduledAt         time.Time
	Audience            models.Audience
	RequireConfirmation bool
	WorkoutID           *int64
}

func (r *GroupMessageRepository) Create(
	ctx context.Context,
	input CreateGroupMessageInput,
) (*models.GroupMessage, error) {
	var clientIDs []int64
	if input.Audience.Type == models.AudienceClients {
		clientIDs = input.Audience.ClientIDs
	}

	query := `
		INSERT INTO group_messages (
			coach_id, title, body, scheduled_at, audience_type,
			audience_client_ids, require_confirmation, workout_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + groupMessageColumns

	row := r.db.QueryRow(ctx, query,
		input.CoachID,
		input.Title,
		input.Body,
		input.ScheduledAt,
		input.Audience.Type,
		clientIDs,
		input.RequireConfirmation,
		input.WorkoutID,
	)
	return scanGroupMessage(row)
}

func (r *GroupMessageRepository) GetByIDForCoach(
	ctx context.Context,
	id int64,
	coachID int64,
) (*models.GroupMessage, error) {
	query := `
		SELECT ` + groupMessageColumns + `
		FROM group_messages
		WHERE id = $1 AND coach_id = $2
	`
	return scanGroupMessage(r.db.QueryRow(ctx, query, id, coachID))
}

func (r *GroupMessageRepository) ListByCoach(
	ctx context.Context,
	coachID int64,
) ([]models.GroupMessage, error) {
	query := `
		SELECT ` + groupMessageColumns + `
		FROM group_messages
		WHERE coach_id = $1
		ORDER BY scheduled_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	broadcasts := make([]models.GroupMessage, 0)
	for rows.Next() {
		broadcast, err := scanGroupMessage(rows)
		if err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, *broadcast)
	}

	return broadcasts, rows.Err()
}

// ListDue returns scheduled broadcasts whose due time has passed. The sweep
// and a manual send may both pick up the same row; the status CAS decides
// which one does the work.
func (r *GroupMessageRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]models.GroupMessage, error) {
	query := `
		SELECT ` + groupMessageColumns + `
		FROM group_messages
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at, id
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	broadcasts := make([]models.GroupMessage, 0)
	for rows.Next() {
		broadcast, err := scanGroupMessage(rows)
		if err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, *broadcast)
	}

	return broadcasts, rows.Err()
}

// UpdateStatusIfCurrent is the compare-and-swap behind every lifecycle
// transition. It returns pgx.ErrNoRows when the broadcast is not in any of
// the expected current statuses, which is how a losing trigger finds out.
func (r *GroupMessageRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	id int64,
	current []string,
	next string,
) (*models.GroupMessage, error) {
	query := `
		UPDATE group_messages
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = ANY($2)
		RETURNING ` + groupMessageColumns

	return scanGroupMessage(r.db.QueryRow(ctx, query, id, current, next))
}

func scanGroupMessage(row pgx.Row) (*models.GroupMessage, error) {
	var broadcast models.GroupMessage
	err := row.Scan(
		&broadcast.ID,
		&broadcast.CoachID,
		&broadcast.Title,
		&broadcast.Body,
		&broadcast.ScheduledAt,
		&broadcast.Audience.Type,
		&broadcast.Audience.ClientIDs,
		&broadcast.RequireConfirmation,
		&broadcast.WorkoutID,
		&broadcast.Status,
		&broadcast.CreatedAt,
		&broadcast.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if broadcast.Audience.Type == models.AudienceAll {
		broadcast.Audience.ClientIDs = nil
	}
	return &broadcast, nil
}
