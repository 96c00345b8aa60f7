package models

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	BroadcastStatusScheduled = "scheduled"
	BroadcastStatusSending   = "sending"
	BroadcastStatusSent      = "sent"
	BroadcastStatusFailed    = "failed"
	BroadcastStatusCancelled = "cancelled"
)

const (
	AudienceAll     = "all"
	AudienceClients = "clients"
)

var ErrInvalidAudience = errors.New("invalid audience")

// Audience is a closed variant: either every active client of the coach, or
// an explicit client-id list. Anything else fails to decode.
type Audience struct {
	Type      string  `json:"type"`
	ClientIDs []int64 `json:"client_ids,omitempty"`
}

func (a Audience) Validate() error {
	switch a.Type {
	case AudienceAll:
		if len(a.ClientIDs) > 0 {
			return ErrInvalidAudience
		}
		return nil
	case AudienceClients:
		if len(a.ClientIDs) == 0 {
			return ErrInvalidAudience
		}
		return nil
	default:
		return ErrInvalidAudience
	}
}

func (a *Audience) UnmarshalJSON(data []byte) error {
	type plain Audience
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*a = Audience(decoded)
	return a.Validate()
}

type GroupMessage struct {
	ID                  int64     `json:"id"`
	CoachID             int64     `json:"coach_id"`
	Title               *string   `json:"title,omitempty"`
	Body                string    `json:"body"`
	ScheduledAt         time.Time `json:"scheduled_at"`
	Audience            Audience  `json:"audience"`
	RequireConfirmation bool      `json:"require_confirmation"`
	WorkoutID           *int64    `json:"workout_id,omitempty"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// GroupMessageRecipient is the per-(broadcast, client) delivery record. Its
// uniqueness on (group_message_id, client_id) is what makes fan-out
// re-entrant: a second attempt sees the row and skips.
type GroupMessageRecipient struct {
	ID             int64      `json:"id"`
	GroupMessageID int64      `json:"group_message_id"`
	ClientID       int64      `json:"client_id"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ConfirmedAt    *time.Time `json:"confirmed_at,omitempty"`
}

// FanoutResult reports one fan-out attempt. Failed client ids are data, not
// an error: deliveries that succeeded stay delivered.
type FanoutResult struct {
	Delivered int     `json:"delivered"`
	Skipped   int     `json:"skipped"`
	Failed    []int64 `json:"failed"`
}

// BroadcastStatus is the derived view of a broadcast: counts come from the
// delivery records, never from stored counters.
type BroadcastStatus struct {
	GroupMessage
	SentCount      int `json:"sent_count"`
	ConfirmedCount int `json:"confirmed_count"`
}
