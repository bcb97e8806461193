package engine

import (
	"encoding/json"
	"time"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

func roundEvent(typ string, r *Round, at time.Time) events.RoundEvent {
	ev := events.RoundEvent{
		Type:           typ,
		RoundID:        r.ID,
		GameType:       r.GameType,
		SequenceNumber: r.SequenceNumber,
		Status:         string(r.Status),
		SeedHash:       r.SeedHash,
		OccurredAt:     at,
	}
	if r.Outcome != nil {
		ev.Outcome, _ = json.Marshal(r.Outcome)
	}
	// seed só é revelada depois da liquidação
	if r.Status == StatusSettled {
		ev.Seed = r.Seed
	}
	return ev
}

func betEvent(r *Round, b *Bet, at time.Time) events.RoundEvent {
	ev := roundEvent(events.TypeBetResolved, r, at)
	ev.Seed = ""
	ev.BetID = b.ID
	ev.UserID = b.UserID
	ev.Amount = b.Amount
	ev.BetStatus = string(b.Status)
	if b.Payout != nil {
		ev.Payout = *b.Payout
	}
	return ev
}
