package models

import "time"

type Workout struct {
	ID        int64     `json:"id"`
	CoachID   int64     `json:"coach_id"`
	Title     string    `json:"title"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
