package services

import (
	"context"
	"log"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
)

type audienceResolver interface {
	Resolve(ctx context.Context, coachID int64, audience models.Audience) ([]int64, error)
}

type deliverer interface {
	Deliver(ctx context.Context, broadcast *models.GroupMessage, clientID int64) (bool, error)
}

type threadNotifier interface {
	NotifyThread(coachID, clientID, recipientID int64)
}

// FanoutDispatcher expands one broadcast into per-recipient delivery records
// and thread messages. Safe to call repeatedly on the same broadcast:
// recipients delivered by an earlier attempt are skipped.
type FanoutDispatcher struct {
	audience   audienceResolver
	deliveries deliverer
	notifier   threadNotifier
}

func NewFanoutDispatcher(
	audience audienceResolver,
	deliveries deliverer,
	notifier threadNotifier,
) *FanoutDispatcher {
	return &FanoutDispatcher{
		audience:   audience,
		deliveries: deliveries,
		notifier:   notifier,
	}
}

// Fanout resolves the audience at call time and attempts each recipient
// independently. A failed recipient lands in the result's Failed list and
// never aborts the rest of the batch; the returned error is reserved for
// failures that prevent the attempt entirely (audience resolution).
func (d *FanoutDispatcher) Fanout(
	ctx context.Context,
	broadcast *models.GroupMessage,
) (models.FanoutResult, error) {
	result := models.FanoutResult{Failed: make([]int64, 0)}

	recipients, err := d.audience.Resolve(ctx, broadcast.CoachID, broadcast.Audience)
	if err != nil {
		return result, err
	}

	for _, clientID := range recipients {
		created, err := d.deliveries.Deliver(ctx, broadcast, clientID)
		if err != nil {
			log.Printf("broadcast %d: delivery to client %d failed: %v", broadcast.ID, clientID, err)
			result.Failed = append(result.Failed, clientID)
			continue
		}
		if !created {
			result.Skipped++
			continue
		}
		result.Delivered++
		if d.notifier != nil {
			d.notifier.NotifyThread(broadcast.CoachID, clientID, clientID)
		}
	}

	return result, nil
}
