// Package outbox implements the client-side half of the optimistic-send
// contract: a message may be displayed before the server acknowledges it,
// but the authoritative thread is the sole source of truth as soon as one
// is available.
//
// Two rules keep the view duplicate-free without fuzzy matching:
//
//  1. Settling an entry (success or failure) discards it unconditionally.
//     On success the authoritative copy has already been, or will be,
//     returned by the server; the local one is never merged.
//  2. Any refresh that completes after an entry was issued discards it
//     too, because that refresh already reflects the server's verdict.
//     Matching on (sender, body, time window) is deliberately not used.
package outbox

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a locally-fabricated message shown while the server write is in
// flight.
type Entry struct {
	TempID   string
	SenderID int64
	Body     string
	IssuedAt time.Time

	issue uint64
}

type Outbox struct {
	mu      sync.Mutex
	pending map[string]Entry
	// issues counts optimistic writes; a refresh remembers the count at its
	// start so completion can drop every entry issued before it.
	issues uint64
}

func New() *Outbox {
	return &Outbox{pending: make(map[string]Entry)}
}

// Add registers an optimistic entry and returns it with a fresh temp id.
func (o *Outbox) Add(senderID int64, body string) Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.issues++
	entry := Entry{
		TempID:   uuid.NewString(),
		SenderID: senderID,
		Body:     body,
		IssuedAt: time.Now(),
		issue:    o.issues,
	}
	o.pending[entry.TempID] = entry
	return entry
}

// Settle removes an entry once its server write finished, whether it
// succeeded or failed.
func (o *Outbox) Settle(tempID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, tempID)
}

// RefreshToken marks the start of an authoritative refresh.
type RefreshToken struct {
	issuesAtStart uint64
}

func (o *Outbox) BeginRefresh() RefreshToken {
	o.mu.Lock()
	defer o.mu.Unlock()
	return RefreshToken{issuesAtStart: o.issues}
}

// CompleteRefresh drops every entry issued before the refresh began. An
// entry added while the refresh was in flight survives until its own settle
// or a later refresh.
func (o *Outbox) CompleteRefresh(token RefreshToken) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, entry := range o.pending {
		if entry.issue <= token.issuesAtStart {
			delete(o.pending, id)
		}
	}
}

// Pending returns the entries still awaiting a verdict, oldest first.
func (o *Outbox) Pending() []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := make([]Entry, 0, len(o.pending))
	for _, entry := range o.pending {
		entries = append(entries, entry)
	}
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].issue < entries[j-1].issue; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	return entries
}
