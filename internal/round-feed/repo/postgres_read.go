package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

var ErrNotFound = errors.New("round not found")

// ReadRepo lê rodadas direto do Postgres quando o cache do feed está vazio
type ReadRepo struct {
	DB *sqlx.DB
}

type roundRow struct {
	ID             string         `db:"id"`
	GameType       string         `db:"game_type"`
	SequenceNumber int64          `db:"sequence_number"`
	Status         string         `db:"status"`
	OpenedAt       time.Time      `db:"opened_at"`
	LockedAt       sql.NullTime   `db:"locked_at"`
	SettledAt      sql.NullTime   `db:"settled_at"`
	Seed           string         `db:"seed"`
	SeedHash       string         `db:"seed_hash"`
	Outcome        sql.NullString `db:"outcome"`
}

const roundCols = `id, game_type, sequence_number, status, opened_at, locked_at, settled_at, seed, seed_hash, outcome`

// toEvent converte a linha no mesmo formato publicado pelo outbox.
// Seed e resultado só aparecem depois de SETTLED.
func (r roundRow) toEvent() events.RoundEvent {
	ev := events.RoundEvent{
		RoundID:        r.ID,
		GameType:       r.GameType,
		SequenceNumber: r.SequenceNumber,
		Status:         r.Status,
		SeedHash:       r.SeedHash,
	}
	switch {
	case r.Status == "SETTLED":
		ev.Type = events.TypeRoundSettled
		ev.Seed = r.Seed
		if r.Outcome.Valid {
			ev.Outcome = []byte(r.Outcome.String)
		}
		if r.SettledAt.Valid {
			ev.OccurredAt = r.SettledAt.Time
		}
	case r.LockedAt.Valid:
		// RESOLVING ainda aparece como LOCKED para o público
		ev.Type = events.TypeRoundLocked
		ev.Status = "LOCKED"
		ev.OccurredAt = r.LockedAt.Time
	default:
		ev.Type = events.TypeRoundOpened
		ev.OccurredAt = r.OpenedAt
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	return ev
}

func (r *ReadRepo) LatestRound(ctx context.Context, gameType string) (events.RoundEvent, error) {
	var row roundRow
	err := r.DB.GetContext(ctx, &row, `
		SELECT `+roundCols+`
		FROM rounds
		WHERE game_type = $1
		ORDER BY sequence_number DESC
		LIMIT 1`, gameType)
	if errors.Is(err, sql.ErrNoRows) {
		return events.RoundEvent{}, fmt.Errorf("%w: game %s", ErrNotFound, gameType)
	}
	if err != nil {
		return events.RoundEvent{}, err
	}
	return row.toEvent(), nil
}

func (r *ReadRepo) RecentSettled(ctx context.Context, gameType string, limit int) ([]events.RoundEvent, error) {
	var rows []roundRow
	err := r.DB.SelectContext(ctx, &rows, `
		SELECT `+roundCols+`
		FROM rounds
		WHERE game_type = $1 AND status = 'SETTLED'
		ORDER BY sequence_number DESC
		LIMIT $2`, gameType, limit)
	if err != nil {
		return nil, err
	}
	out := make([]events.RoundEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEvent())
	}
	return out, nil
}
