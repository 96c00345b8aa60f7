package services

import (
	"context"

	"github.com/CejeJoe/gymcoach-sub001/internal/models"
)

type rosterAudienceReader interface {
	ActiveClientIDs(ctx context.Context, coachID int64) ([]int64, error)
	ActiveClientIDsAmong(ctx context.Context, coachID int64, clientIDs []int64) ([]int64, error)
}

// AudienceResolver turns an audience descriptor into concrete recipient ids
// against the roster as it is right now. It is a pure read: fan-out calls
// it on every attempt instead of caching membership from authoring time, so
// the audience tracks roster changes between scheduling and firing.
type AudienceResolver struct {
	roster rosterAudienceReader
}

func NewAudienceResolver(roster rosterAudienceReader) *AudienceResolver {
	return &AudienceResolver{roster: roster}
}

// Resolve returns the deduplicated active client ids for the audience.
// Explicit ids that no longer resolve to an active client of this coach are
// dropped silently; the roster may have changed since the broadcast was
// authored and that is not the author's error.
func (r *AudienceResolver) Resolve(
	ctx context.Context,
	coachID int64,
	audience models.Audience,
) ([]int64, error) {
	if err := audience.Validate(); err != nil {
		return nil, ErrInvalidInput
	}

	switch audience.Type {
	case models.AudienceAll:
		return r.roster.ActiveClientIDs(ctx, coachID)
	default:
		requested := dedupeIDs(audience.ClientIDs)
		return r.roster.ActiveClientIDsAmong(ctx, coachID, requested)
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
