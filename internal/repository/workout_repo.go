package repository

import (
	"context"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
)

type WorkoutRepository struct {
	db DBTX
}

func NewWorkoutRepository(db DBTX) *WorkoutRepository {
	return &WorkoutRepository{db: db}
}

type CreateWorkoutInput struct {
	CoachID int64
	Title   string
	Notes   *string
}

func (r *WorkoutRepository) Create(
	ctx context.Context,
	input CreateWorkoutInput,
) (*models.Workout, error) {
	query := `
		INSERT INTO workouts (coach_id, title, notes)
		VALUES ($1, $2, $3)
		RETURNING id, coach_id, title, notes, created_at
	`

	var workout models.Workout
	err := r.db.QueryRow(ctx, query, input.CoachID, input.Title, input.Notes).Scan(
		&workout.ID,
		&workout.CoachID,
		&workout.Title,
		&workout.Notes,
		&workout.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workout, nil
}

func (r *WorkoutRepository) GetByID(ctx context.Context, id int64) (*models.Workout, error) {
	query := `
		SELECT id, coach_id, title, notes, created_at
		FROM workouts
		WHERE id = $1
	`

	var workout models.Workout
	err := r.db.QueryRow(ctx, query, id).Scan(
		&workout.ID,
		&workout.CoachID,
		&workout.Title,
		&workout.Notes,
		&workout.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workout, nil
}

func (r *WorkoutRepository) ListByCoach(
	ctx context.Context,
	coachID int64,
	offset int,
	limit int,
) ([]models.Workout, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM workouts WHERE coach_id = $1`, coachID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, coach_id, title, notes, created_at
		FROM workouts
		WHERE coach_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`

	rows, err := r.db.Query(ctx, query, coachID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	workouts := make([]models.Workout, 0)
	for rows.Next() {
		var workout models.Workout
		if err := rows.Scan(
			&workout.ID,
			&workout.CoachID,
			&workout.Title,
			&workout.Notes,
			&workout.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		workouts = append(workouts, workout)
	}

	return workouts, total, rows.Err()
}
