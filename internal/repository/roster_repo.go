package repository

import (
	"context"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
	"github.com/jackc/pgx/v5"
)

type RosterRepository struct {
	db DBTX
}

func NewRosterRepository(db DBTX) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) Link(
	ctx context.Context,
	coachID int64,
	clientID int64,
) (*models.CoachClient, error) {
	query := `
		INSERT INTO coach_clients (coach_id, client_id)
		VALUES ($1, $2)
		ON CONFLICT (coach_id, client_id)
		DO UPDATE SET active = TRUE, updated_at = NOW()
		RETURNING coach_id, client_id, active, created_at, updated_at
	`

	var link models.CoachClient
	err := r.db.QueryRow(ctx, query, coachID, clientID).Scan(
		&link.CoachID,
		&link.ClientID,
		&link.Active,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &link, nil
}

func (r *RosterRepository) SetActive(
	ctx context.Context,
	coachID int64,
	clientID int64,
	active bool,
) (*models.CoachClient, error) {
	query := `
		UPDATE coach_clients
		SET active = $3, updated_at = NOW()
		WHERE coach_id = $1 AND client_id = $2
		RETURNING coach_id, client_id, active, created_at, updated_at
	`

	var link models.CoachClient
	err := r.db.QueryRow(ctx, query, coachID, clientID, active).Scan(
		&link.CoachID,
		&link.ClientID,
		&link.Active,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &link, nil
}

func (r *RosterRepository) ListByCoach(
	ctx context.Context,
	coachID int64,
) ([]models.CoachClient, error) {
	query := `
		SELECT coach_id, client_id, active, created_at, updated_at
		FROM coach_clients
		WHERE coach_id = $1
		ORDER BY created_at, client_id
	`

	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := make([]models.CoachClient, 0)
	for rows.Next() {
		var link models.CoachClient
		if err := rows.Scan(
			&link.CoachID,
			&link.ClientID,
			&link.Active,
			&link.CreatedAt,
			&link.UpdatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

// PairExists reports whether the coach and client are linked at all, active
// or not. Deactivating a client hides them from audiences but keeps the
// thread history reachable.
func (r *RosterRepository) PairExists(
	ctx context.Context,
	coachID int64,
	clientID int64,
) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM coach_clients
			WHERE coach_id = $1 AND client_id = $2
		)
	`, coachID, clientID).Scan(&exists)
	return exists, err
}

func (r *RosterRepository) ActiveClientIDs(
	ctx context.Context,
	coachID int64,
) ([]int64, error) {
	query := `
		SELECT client_id
		FROM coach_clients
		WHERE coach_id = $1 AND active
		ORDER BY client_id
	`

	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanClientIDs(rows)
}

func (r *RosterRepository) ActiveClientIDsAmong(
	ctx context.Context,
	coachID int64,
	clientIDs []int64,
) ([]int64, error) {
	query := `
		SELECT client_id
		FROM coach_clients
		WHERE coach_id = $1 AND active AND client_id = ANY($2)
		ORDER BY client_id
	`

	rows, err := r.db.Query(ctx, query, coachID, clientIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanClientIDs(rows)
}

func scanClientIDs(rows pgx.Rows) ([]int64, error) {
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
