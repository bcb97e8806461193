package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/round-service/outbox"
	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/shared/db"
	walletrepo "github.com/radieske/fair-round-engine/internal/wallet-service/repo"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

const (
	roundColumns = `id, game_type, sequence_number, status, opened_at, betting_closes_at,
		locked_at, resolved_at, settled_at, seed, seed_hash, outcome`
	betColumns = `id, round_id, user_id, amount, selection, status, payout, cash_out_multiplier,
		debit_entry_id, credit_entry_id, idempotency_key, created_at, resolved_at`
)

// Postgres implementa engine.Store e outbox.Store. As tabelas de carteira são
// do wallet-service; débitos e créditos passam pelas funções dele dentro da
// mesma transação da aposta.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

type roundRow struct {
	ID              string     `db:"id"`
	GameType        string     `db:"game_type"`
	SequenceNumber  int64      `db:"sequence_number"`
	Status          string     `db:"status"`
	OpenedAt        time.Time  `db:"opened_at"`
	BettingClosesAt time.Time  `db:"betting_closes_at"`
	LockedAt        *time.Time `db:"locked_at"`
	ResolvedAt      *time.Time `db:"resolved_at"`
	SettledAt       *time.Time `db:"settled_at"`
	Seed            string     `db:"seed"`
	SeedHash        string     `db:"seed_hash"`
	Outcome         []byte     `db:"outcome"`
}

func (r roundRow) toRound() (*engine.Round, error) {
	out := &engine.Round{
		ID:              r.ID,
		GameType:        r.GameType,
		SequenceNumber:  r.SequenceNumber,
		Status:          engine.Status(r.Status),
		OpenedAt:        r.OpenedAt.UTC(),
		BettingClosesAt: r.BettingClosesAt.UTC(),
		LockedAt:        r.LockedAt,
		ResolvedAt:      r.ResolvedAt,
		SettledAt:       r.SettledAt,
		Seed:            r.Seed,
		SeedHash:        r.SeedHash,
	}
	if len(r.Outcome) > 0 {
		var o outcome.Outcome
		if err := json.Unmarshal(r.Outcome, &o); err != nil {
			return nil, fmt.Errorf("decode outcome of round %s: %w", r.ID, err)
		}
		out.Outcome = &o
	}
	return out, nil
}

type betRow struct {
	ID                string           `db:"id"`
	RoundID           string           `db:"round_id"`
	UserID            string           `db:"user_id"`
	Amount            int64            `db:"amount"`
	Selection         string           `db:"selection"`
	Status            string           `db:"status"`
	Payout            *int64           `db:"payout"`
	CashOutMultiplier *decimal.Decimal `db:"cash_out_multiplier"`
	DebitEntryID      int64            `db:"debit_entry_id"`
	CreditEntryID     *int64           `db:"credit_entry_id"`
	IdempotencyKey    string           `db:"idempotency_key"`
	CreatedAt         time.Time        `db:"created_at"`
	ResolvedAt        *time.Time       `db:"resolved_at"`
}

func (b betRow) toBet() *engine.Bet {
	return &engine.Bet{
		ID:                b.ID,
		RoundID:           b.RoundID,
		UserID:            b.UserID,
		Amount:            b.Amount,
		Selection:         b.Selection,
		Status:            engine.BetStatus(b.Status),
		Payout:            b.Payout,
		CashOutMultiplier: b.CashOutMultiplier,
		DebitEntryID:      b.DebitEntryID,
		CreditEntryID:     b.CreditEntryID,
		IdempotencyKey:    b.IdempotencyKey,
		CreatedAt:         b.CreatedAt.UTC(),
		ResolvedAt:        b.ResolvedAt,
	}
}

func getRound(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*engine.Round, error) {
	var row roundRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}
	return row.toRound()
}

func getBet(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*engine.Bet, error) {
	var row betRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}
	return row.toBet(), nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, engine.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", engine.ErrNotFound, what, id)
	}
	return err
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) GetRound(ctx context.Context, roundID string) (*engine.Round, error) {
	r, err := getRound(ctx, p.db, `SELECT `+roundColumns+` FROM rounds WHERE id = $1`, roundID)
	return r, notFound(err, "round", roundID)
}

func (p *Postgres) ActiveRound(ctx context.Context, gameType string) (*engine.Round, error) {
	r, err := getRound(ctx, p.db, `SELECT `+roundColumns+` FROM rounds
		WHERE game_type = $1 AND status IN ('OPEN', 'LOCKED', 'RESOLVING')`, gameType)
	return r, notFound(err, "active round for", gameType)
}

func (p *Postgres) RoundHistory(ctx context.Context, gameType string, limit int) ([]engine.Round, error) {
	var rows []roundRow
	err := sqlx.SelectContext(ctx, p.db, &rows, `SELECT `+roundColumns+` FROM rounds
		WHERE game_type = $1 ORDER BY sequence_number DESC LIMIT $2`, gameType, limit)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Round, 0, len(rows))
	for _, row := range rows {
		r, err := row.toRound()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

func (p *Postgres) GetBet(ctx context.Context, betID string) (*engine.Bet, error) {
	b, err := getBet(ctx, p.db, `SELECT `+betColumns+` FROM bets WHERE id = $1`, betID)
	return b, notFound(err, "bet", betID)
}

func (p *Postgres) ListPendingByRound(ctx context.Context, roundID string) ([]engine.Bet, error) {
	var rows []betRow
	err := sqlx.SelectContext(ctx, p.db, &rows, `SELECT `+betColumns+` FROM bets
		WHERE round_id = $1 AND status = 'PENDING' ORDER BY created_at, id`, roundID)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Bet, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toBet())
	}
	return out, nil
}

func (p *Postgres) RoundTotals(ctx context.Context, roundID string) (engine.BetTotals, error) {
	var t engine.BetTotals
	err := p.db.QueryRowxContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'PENDING'),
		       COUNT(*) FILTER (WHERE status = 'WON'),
		       COUNT(*) FILTER (WHERE status = 'LOST'),
		       COUNT(*) FILTER (WHERE status = 'CASHED_OUT'),
		       COUNT(*) FILTER (WHERE status = 'VOID'),
		       COALESCE(SUM(amount), 0),
		       COALESCE(SUM(payout) FILTER (WHERE status IN ('WON', 'CASHED_OUT')), 0),
		       COALESCE(SUM(payout) FILTER (WHERE status = 'VOID'), 0)
		FROM bets WHERE round_id = $1`, roundID).Scan(
		&t.Bets, &t.Pending, &t.Won, &t.Lost, &t.CashedOut, &t.Voided,
		&t.TotalStaked, &t.TotalPaid, &t.TotalRefunded,
	)
	return t, err
}

func (p *Postgres) ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]outbox.Message, error) {
	rows, err := p.db.QueryxContext(ctx, `
		UPDATE outbox o SET claimed_until = NOW() + make_interval(secs => $2)
		FROM (
			SELECT id FROM outbox
			WHERE sent_at IS NULL AND failed_at IS NULL
			  AND (claimed_until IS NULL OR claimed_until < NOW())
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		) c
		WHERE o.id = c.id
		RETURNING o.id, o.payload, o.attempts`, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox: %w", err)
	}
	defer rows.Close()

	var out []outbox.Message
	for rows.Next() {
		var (
			m       outbox.Message
			payload []byte
		)
		if err := rows.Scan(&m.ID, &payload, &m.Attempts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &m.Event); err != nil {
			return nil, fmt.Errorf("decode outbox %d: %w", m.ID, err)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, rows.Err()
}

func (p *Postgres) MarkSent(ctx context.Context, ids []int64) error {
	_, err := p.db.ExecContext(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

func (p *Postgres) MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    claimed_until = NULL,
		    failed_at = CASE WHEN attempts + 1 >= $3 THEN NOW() END
		WHERE id = $1`, id, reason, maxAttempts)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) RoundForUpdate(ctx context.Context, roundID string) (*engine.Round, error) {
	r, err := getRound(ctx, t.tx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1 FOR UPDATE`, roundID)
	return r, notFound(err, "round", roundID)
}

// RoundForShare segura o lock/resolve da rodada até o fim da aposta
func (t *pgTx) RoundForShare(ctx context.Context, roundID string) (*engine.Round, error) {
	r, err := getRound(ctx, t.tx, `SELECT `+roundColumns+` FROM rounds WHERE id = $1 FOR SHARE`, roundID)
	return r, notFound(err, "round", roundID)
}

func (t *pgTx) ActiveRound(ctx context.Context, gameType string) (*engine.Round, error) {
	r, err := getRound(ctx, t.tx, `SELECT `+roundColumns+` FROM rounds
		WHERE game_type = $1 AND status IN ('OPEN', 'LOCKED', 'RESOLVING')`, gameType)
	return r, notFound(err, "active round for", gameType)
}

func (t *pgTx) LastSequence(ctx context.Context, gameType string) (int64, error) {
	var seq int64
	err := t.tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(sequence_number), 0) FROM rounds WHERE game_type = $1`, gameType)
	return seq, err
}

func (t *pgTx) InsertRound(ctx context.Context, r *engine.Round) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO rounds (id, game_type, sequence_number, status, opened_at, betting_closes_at, seed, seed_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.GameType, r.SequenceNumber, string(r.Status), r.OpenedAt, r.BettingClosesAt, r.Seed, r.SeedHash)
	if db.IsUniqueViolation(err, "rounds_one_active_uq") || db.IsUniqueViolation(err, "rounds_game_sequence_uq") {
		return fmt.Errorf("%w: %s", engine.ErrConflict, r.GameType)
	}
	return err
}

func (t *pgTx) UpdateRound(ctx context.Context, r *engine.Round, from engine.Status) error {
	var outcomeJSON sql.NullString
	if r.Outcome != nil {
		b, err := json.Marshal(r.Outcome)
		if err != nil {
			return fmt.Errorf("encode outcome: %w", err)
		}
		outcomeJSON = sql.NullString{String: string(b), Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE rounds
		SET status = $3, locked_at = $4, resolved_at = $5, settled_at = $6, outcome = $7
		WHERE id = $1 AND status = $2`,
		r.ID, string(from), string(r.Status), r.LockedAt, r.ResolvedAt, r.SettledAt, outcomeJSON)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: round %s no longer %s", engine.ErrInvalidTransition, r.ID, from)
	}
	return nil
}

func (t *pgTx) InsertBet(ctx context.Context, b *engine.Bet, exclusive bool) error {
	var exclusiveUser *string
	if exclusive {
		exclusiveUser = &b.UserID
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets (id, round_id, user_id, amount, selection, status, debit_entry_id, idempotency_key, exclusive_user, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.RoundID, b.UserID, b.Amount, b.Selection, string(b.Status), b.DebitEntryID, b.IdempotencyKey, exclusiveUser, b.CreatedAt)
	if db.IsUniqueViolation(err, "bets_one_per_round_uq") {
		return fmt.Errorf("%w: round %s", engine.ErrAlreadyPlaced, b.RoundID)
	}
	return err
}

func (t *pgTx) BetForUpdate(ctx context.Context, betID string) (*engine.Bet, error) {
	b, err := getBet(ctx, t.tx, `SELECT `+betColumns+` FROM bets WHERE id = $1 FOR UPDATE`, betID)
	return b, notFound(err, "bet", betID)
}

func (t *pgTx) FinalizeBet(ctx context.Context, b *engine.Bet) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE bets
		SET status = $2, payout = $3, cash_out_multiplier = $4, credit_entry_id = $5, resolved_at = $6
		WHERE id = $1 AND status = 'PENDING'`,
		b.ID, string(b.Status), b.Payout, b.CashOutMultiplier, b.CreditEntryID, b.ResolvedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: bet %s", engine.ErrAlreadyResolved, b.ID)
	}
	return nil
}

func (t *pgTx) CountPending(ctx context.Context, roundID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM bets WHERE round_id = $1 AND status = 'PENDING'`, roundID)
	return n, err
}

func toLedgerEntry(e walletrepo.Entry) engine.LedgerEntry {
	return engine.LedgerEntry{
		ID:               e.ID,
		UserID:           e.UserID,
		Amount:           e.Amount,
		Direction:        e.Direction,
		Reason:           e.Reason,
		Reference:        e.Reference,
		ResultingBalance: e.ResultingBalance,
		CreatedAt:        e.CreatedAt.UTC(),
	}
}

func walletErr(err error) error {
	switch {
	case errors.Is(err, walletrepo.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", engine.ErrInsufficientBalance, err)
	case errors.Is(err, walletrepo.ErrInvalidAmount):
		return fmt.Errorf("%w: %v", engine.ErrInvalidAmount, err)
	case errors.Is(err, walletrepo.ErrNotFound):
		return fmt.Errorf("%w: %v", engine.ErrNotFound, err)
	}
	return err
}

func (t *pgTx) Debit(ctx context.Context, userID string, amount int64, reason, reference string) (engine.LedgerEntry, error) {
	e, err := walletrepo.Debit(ctx, t.tx, userID, amount, reason, reference)
	if err != nil {
		return engine.LedgerEntry{}, walletErr(err)
	}
	return toLedgerEntry(e), nil
}

func (t *pgTx) Credit(ctx context.Context, userID string, amount int64, reason, reference string) (engine.LedgerEntry, error) {
	e, err := walletrepo.Credit(ctx, t.tx, userID, amount, reason, reference)
	if err != nil {
		return engine.LedgerEntry{}, walletErr(err)
	}
	return toLedgerEntry(e), nil
}

func (t *pgTx) LedgerEntry(ctx context.Context, entryID int64) (*engine.LedgerEntry, error) {
	e, err := walletrepo.GetEntry(ctx, t.tx, entryID)
	if err != nil {
		return nil, walletErr(err)
	}
	le := toLedgerEntry(*e)
	return &le, nil
}

func (t *pgTx) ClaimIdempotency(ctx context.Context, rec engine.IdempotencyRecord) (*engine.IdempotencyRecord, error) {
	prev, err := walletrepo.ClaimKey(ctx, t.tx, walletrepo.Key{
		UserID:      rec.UserID,
		Key:         rec.Key,
		Scope:       rec.Scope,
		Fingerprint: rec.Fingerprint,
	})
	if err != nil || prev == nil {
		return nil, walletErr(err)
	}
	return &engine.IdempotencyRecord{
		UserID:      prev.UserID,
		Key:         prev.Key,
		Scope:       prev.Scope,
		Fingerprint: prev.Fingerprint,
		ResultRef:   prev.ResultRef,
	}, nil
}

func (t *pgTx) CompleteIdempotency(ctx context.Context, userID, key, resultRef string) error {
	return walletErr(walletrepo.CompleteKey(ctx, t.tx, userID, key, resultRef))
}

func (t *pgTx) AppendEvent(ctx context.Context, ev events.RoundEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO outbox (event_type, aggregate_key, payload) VALUES ($1, $2, $3)`,
		ev.Type, ev.Key(), string(payload))
	return err
}
