package repo

import (
	"database/sql"
	"testing"
	"time"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

func TestToEventHidesSeedUntilSettled(t *testing.T) {
	opened := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	base := roundRow{
		ID: "r1", GameType: "aviator", SequenceNumber: 5,
		OpenedAt: opened, Seed: "secret", SeedHash: "h",
		Outcome: sql.NullString{String: `{"value":"2.10"}`, Valid: true},
	}

	cases := []struct {
		status, typ, shown string
		locked, settled    bool
		seed               string
	}{
		{"OPEN", events.TypeRoundOpened, "OPEN", false, false, ""},
		{"LOCKED", events.TypeRoundLocked, "LOCKED", true, false, ""},
		{"RESOLVING", events.TypeRoundLocked, "LOCKED", true, false, ""},
		{"SETTLED", events.TypeRoundSettled, "SETTLED", true, true, "secret"},
	}
	for _, tc := range cases {
		row := base
		row.Status = tc.status
		row.LockedAt = sql.NullTime{Time: opened.Add(10 * time.Second), Valid: tc.locked}
		row.SettledAt = sql.NullTime{Time: opened.Add(20 * time.Second), Valid: tc.settled}

		ev := row.toEvent()
		if ev.Type != tc.typ || ev.Status != tc.shown || ev.Seed != tc.seed {
			t.Errorf("%s: got type=%s status=%s seed=%q", tc.status, ev.Type, ev.Status, ev.Seed)
		}
		if (len(ev.Outcome) > 0) != (tc.status == "SETTLED") {
			t.Errorf("%s: outcome exposed = %s", tc.status, ev.Outcome)
		}
	}
}
