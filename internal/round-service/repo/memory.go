package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/round-service/outbox"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

// Memory é o Store em memória usado pelo simulador de RTP e pelos testes.
// Um mutex global serializa as transações; rollback desfaz as escritas
// na ordem inversa.
type Memory struct {
	mu      sync.Mutex
	rounds  map[string]*engine.Round
	bets    map[string]*engine.Bet
	order   []string
	wallets map[string]int64
	ledger  []engine.LedgerEntry
	idem    map[[2]string]*engine.IdempotencyRecord
	outbox  []*memOutbox
	now     func() time.Time
}

type memOutbox struct {
	msg          outbox.Message
	sent         bool
	dead         bool
	claimedUntil time.Time
	lastError    string
}

func NewMemory() *Memory {
	return &Memory{
		rounds:  map[string]*engine.Round{},
		bets:    map[string]*engine.Bet{},
		wallets: map[string]int64{},
		idem:    map[[2]string]*engine.IdempotencyRecord{},
		now:     time.Now,
	}
}

func cloneRound(r *engine.Round) *engine.Round {
	c := *r
	return &c
}

func cloneBet(b *engine.Bet) *engine.Bet {
	c := *b
	return &c
}

func (m *Memory) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (m *Memory) GetRound(_ context.Context, roundID string) (*engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("%w: round %s", engine.ErrNotFound, roundID)
	}
	return cloneRound(r), nil
}

func (m *Memory) ActiveRound(_ context.Context, gameType string) (*engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeRound(gameType)
}

func (m *Memory) activeRound(gameType string) (*engine.Round, error) {
	for _, r := range m.rounds {
		if r.GameType == gameType && r.Status.Active() {
			return cloneRound(r), nil
		}
	}
	return nil, fmt.Errorf("%w: no active %s round", engine.ErrNotFound, gameType)
}

func (m *Memory) RoundHistory(_ context.Context, gameType string, limit int) ([]engine.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engine.Round, 0)
	for _, r := range m.rounds {
		if r.GameType == gameType {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber > out[j].SequenceNumber })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) GetBet(_ context.Context, betID string) (*engine.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", engine.ErrNotFound, betID)
	}
	return cloneBet(b), nil
}

func (m *Memory) ListPendingByRound(_ context.Context, roundID string) ([]engine.Bet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Bet
	for _, id := range m.order {
		b := m.bets[id]
		if b.RoundID == roundID && b.Status == engine.BetPending {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *Memory) RoundTotals(_ context.Context, roundID string) (engine.BetTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t engine.BetTotals
	for _, id := range m.order {
		b := m.bets[id]
		if b.RoundID != roundID {
			continue
		}
		t.Bets++
		t.TotalStaked += b.Amount
		var paid int64
		if b.Payout != nil {
			paid = *b.Payout
		}
		switch b.Status {
		case engine.BetPending:
			t.Pending++
		case engine.BetWon:
			t.Won++
			t.TotalPaid += paid
		case engine.BetLost:
			t.Lost++
		case engine.BetCashedOut:
			t.CashedOut++
			t.TotalPaid += paid
		case engine.BetVoid:
			t.Voided++
			t.TotalRefunded += paid
		}
	}
	return t, nil
}

// Deposit credita saldo fora de qualquer rodada
func (m *Memory) Deposit(userID string, amount int64) engine.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m}
	e, _ := tx.Credit(context.Background(), userID, amount, "deposit", "deposit")
	return e
}

func (m *Memory) Balance(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[userID]
}

// Ledger devolve os lançamentos do usuário em ordem de criação
func (m *Memory) Ledger(userID string) []engine.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.LedgerEntry
	for _, e := range m.ledger {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

// Bets devolve todas as apostas de uma rodada
func (m *Memory) Bets(roundID string) []engine.Bet {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.Bet
	for _, id := range m.order {
		if b := m.bets[id]; b.RoundID == roundID {
			out = append(out, *b)
		}
	}
	return out
}

// Events devolve tudo o que já entrou na outbox
func (m *Memory) Events() []events.RoundEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.RoundEvent, 0, len(m.outbox))
	for _, o := range m.outbox {
		out = append(out, o.msg.Event)
	}
	return out
}

func (m *Memory) ClaimBatch(_ context.Context, limit int, lease time.Duration) ([]outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []outbox.Message
	for _, o := range m.outbox {
		if len(out) >= limit {
			break
		}
		if o.sent || o.dead || now.Before(o.claimedUntil) {
			continue
		}
		o.claimedUntil = now.Add(lease)
		out = append(out, o.msg)
	}
	return out, nil
}

func (m *Memory) MarkSent(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if o := m.outboxRow(id); o != nil {
			o.sent = true
		}
	}
	return nil
}

func (m *Memory) MarkFailed(_ context.Context, id int64, reason string, maxAttempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.outboxRow(id)
	if o == nil {
		return fmt.Errorf("outbox message %d not found", id)
	}
	o.msg.Attempts++
	o.lastError = reason
	o.claimedUntil = time.Time{}
	if o.msg.Attempts >= maxAttempts {
		o.dead = true
	}
	return nil
}

// Pending conta mensagens ainda não publicadas nem descartadas
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.outbox {
		if !o.sent && !o.dead {
			n++
		}
	}
	return n
}

func (m *Memory) outboxRow(id int64) *memOutbox {
	if id < 1 || int(id) > len(m.outbox) {
		return nil
	}
	return m.outbox[id-1]
}

// memTx roda com m.mu já travado
type memTx struct {
	m    *Memory
	undo []func()
}

func (tx *memTx) RoundForUpdate(_ context.Context, roundID string) (*engine.Round, error) {
	r, ok := tx.m.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("%w: round %s", engine.ErrNotFound, roundID)
	}
	return cloneRound(r), nil
}

func (tx *memTx) RoundForShare(ctx context.Context, roundID string) (*engine.Round, error) {
	return tx.RoundForUpdate(ctx, roundID)
}

func (tx *memTx) ActiveRound(_ context.Context, gameType string) (*engine.Round, error) {
	return tx.m.activeRound(gameType)
}

func (tx *memTx) LastSequence(_ context.Context, gameType string) (int64, error) {
	var last int64
	for _, r := range tx.m.rounds {
		if r.GameType == gameType && r.SequenceNumber > last {
			last = r.SequenceNumber
		}
	}
	return last, nil
}

func (tx *memTx) InsertRound(_ context.Context, r *engine.Round) error {
	for _, o := range tx.m.rounds {
		if o.GameType != r.GameType {
			continue
		}
		if o.Status.Active() || o.SequenceNumber == r.SequenceNumber {
			return fmt.Errorf("%w: %s round %d", engine.ErrConflict, o.GameType, o.SequenceNumber)
		}
	}
	tx.m.rounds[r.ID] = cloneRound(r)
	tx.undo = append(tx.undo, func() { delete(tx.m.rounds, r.ID) })
	return nil
}

func (tx *memTx) UpdateRound(_ context.Context, r *engine.Round, from engine.Status) error {
	cur, ok := tx.m.rounds[r.ID]
	if !ok {
		return fmt.Errorf("%w: round %s", engine.ErrNotFound, r.ID)
	}
	if cur.Status != from {
		return fmt.Errorf("%w: round %s is %s, expected %s", engine.ErrInvalidTransition, r.ID, cur.Status, from)
	}
	prev := cur
	tx.m.rounds[r.ID] = cloneRound(r)
	tx.undo = append(tx.undo, func() { tx.m.rounds[r.ID] = prev })
	return nil
}

func (tx *memTx) InsertBet(_ context.Context, b *engine.Bet, exclusive bool) error {
	if exclusive {
		for _, o := range tx.m.bets {
			if o.RoundID == b.RoundID && o.UserID == b.UserID {
				return fmt.Errorf("%w: round %s", engine.ErrAlreadyPlaced, b.RoundID)
			}
		}
	}
	tx.m.bets[b.ID] = cloneBet(b)
	tx.m.order = append(tx.m.order, b.ID)
	tx.undo = append(tx.undo, func() {
		delete(tx.m.bets, b.ID)
		tx.m.order = tx.m.order[:len(tx.m.order)-1]
	})
	return nil
}

func (tx *memTx) BetForUpdate(_ context.Context, betID string) (*engine.Bet, error) {
	b, ok := tx.m.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", engine.ErrNotFound, betID)
	}
	return cloneBet(b), nil
}

func (tx *memTx) FinalizeBet(_ context.Context, b *engine.Bet) error {
	cur, ok := tx.m.bets[b.ID]
	if !ok {
		return fmt.Errorf("%w: bet %s", engine.ErrNotFound, b.ID)
	}
	if cur.Status != engine.BetPending {
		return fmt.Errorf("%w: bet %s is %s", engine.ErrAlreadyResolved, b.ID, cur.Status)
	}
	prev := cur
	tx.m.bets[b.ID] = cloneBet(b)
	tx.undo = append(tx.undo, func() { tx.m.bets[b.ID] = prev })
	return nil
}

func (tx *memTx) CountPending(_ context.Context, roundID string) (int, error) {
	n := 0
	for _, b := range tx.m.bets {
		if b.RoundID == roundID && b.Status == engine.BetPending {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) Debit(_ context.Context, userID string, amount int64, reason, reference string) (engine.LedgerEntry, error) {
	if amount <= 0 {
		return engine.LedgerEntry{}, fmt.Errorf("%w: debit %d", engine.ErrInvalidAmount, amount)
	}
	if tx.m.wallets[userID] < amount {
		return engine.LedgerEntry{}, fmt.Errorf("%w: user %s", engine.ErrInsufficientBalance, userID)
	}
	return tx.apply(userID, -amount, engine.DirectionDebit, reason, reference), nil
}

func (tx *memTx) Credit(_ context.Context, userID string, amount int64, reason, reference string) (engine.LedgerEntry, error) {
	if amount <= 0 {
		return engine.LedgerEntry{}, fmt.Errorf("%w: credit %d", engine.ErrInvalidAmount, amount)
	}
	return tx.apply(userID, amount, engine.DirectionCredit, reason, reference), nil
}

func (tx *memTx) apply(userID string, delta int64, direction, reason, reference string) engine.LedgerEntry {
	prev, had := tx.m.wallets[userID]
	tx.m.wallets[userID] = prev + delta
	amount := delta
	if amount < 0 {
		amount = -amount
	}
	entry := engine.LedgerEntry{
		ID:               int64(len(tx.m.ledger) + 1),
		UserID:           userID,
		Amount:           amount,
		Direction:        direction,
		Reason:           reason,
		Reference:        reference,
		ResultingBalance: prev + delta,
		CreatedAt:        tx.m.now().UTC(),
	}
	tx.m.ledger = append(tx.m.ledger, entry)
	tx.undo = append(tx.undo, func() {
		tx.m.ledger = tx.m.ledger[:len(tx.m.ledger)-1]
		if had {
			tx.m.wallets[userID] = prev
		} else {
			delete(tx.m.wallets, userID)
		}
	})
	return entry
}

func (tx *memTx) LedgerEntry(_ context.Context, entryID int64) (*engine.LedgerEntry, error) {
	if entryID < 1 || int(entryID) > len(tx.m.ledger) {
		return nil, fmt.Errorf("%w: ledger entry %d", engine.ErrNotFound, entryID)
	}
	e := tx.m.ledger[entryID-1]
	return &e, nil
}

func (tx *memTx) ClaimIdempotency(_ context.Context, rec engine.IdempotencyRecord) (*engine.IdempotencyRecord, error) {
	k := [2]string{rec.UserID, rec.Key}
	if prev, ok := tx.m.idem[k]; ok {
		c := *prev
		return &c, nil
	}
	c := rec
	c.ResultRef = ""
	tx.m.idem[k] = &c
	tx.undo = append(tx.undo, func() { delete(tx.m.idem, k) })
	return nil, nil
}

func (tx *memTx) CompleteIdempotency(_ context.Context, userID, key, resultRef string) error {
	rec, ok := tx.m.idem[[2]string{userID, key}]
	if !ok {
		return fmt.Errorf("%w: idempotency key %q", engine.ErrNotFound, key)
	}
	prev := rec.ResultRef
	rec.ResultRef = resultRef
	tx.undo = append(tx.undo, func() { rec.ResultRef = prev })
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, ev events.RoundEvent) error {
	id := int64(len(tx.m.outbox) + 1)
	tx.m.outbox = append(tx.m.outbox, &memOutbox{msg: outbox.Message{ID: id, Event: ev}})
	tx.undo = append(tx.undo, func() { tx.m.outbox = tx.m.outbox[:len(tx.m.outbox)-1] })
	return nil
}
