package models

import "time"

// Message is one entry in a coach/client thread. Broadcast-linked messages
// additionally carry the group message fields and a reference to their
// delivery record.
type Message struct {
	ID        int64      `json:"id"`
	CoachID   int64      `json:"coach_id"`
	ClientID  int64      `json:"client_id"`
	SenderID  int64      `json:"sender_id"`
	Body      string     `json:"body"`
	Seq       int64      `json:"seq"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`

	GroupMessageID          *int64     `json:"group_message_id,omitempty"`
	GroupMessageRecipientID *int64     `json:"group_message_recipient_id,omitempty"`
	GroupTitle              *string    `json:"group_title,omitempty"`
	RequiresConfirmation    bool       `json:"requires_confirmation"`
	ConfirmedAt             *time.Time `json:"confirmed_at,omitempty"`
	WorkoutID               *int64     `json:"workout_id,omitempty"`
}

// ThreadSummary is one row of a participant's thread listing. The thread
// itself has no stored identity; the (coach, client) pair is the key.
type ThreadSummary struct {
	CoachID     int64    `json:"coach_id"`
	ClientID    int64    `json:"client_id"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}
