package engine

import (
	"context"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

// Store é a persistência de rodadas, apostas, carteira, idempotência e outbox.
// Toda mutação acontece dentro de InTx; as leituras fora dela não travam nada.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetRound(ctx context.Context, roundID string) (*Round, error)
	ActiveRound(ctx context.Context, gameType string) (*Round, error)
	RoundHistory(ctx context.Context, gameType string, limit int) ([]Round, error)
	GetBet(ctx context.Context, betID string) (*Bet, error)
	ListPendingByRound(ctx context.Context, roundID string) ([]Bet, error)
	RoundTotals(ctx context.Context, roundID string) (BetTotals, error)
}

// Tx é a unidade atômica. Implementações devem usar lock de linha
// (ou equivalente) nos métodos ForUpdate/ForShare.
type Tx interface {
	RoundForUpdate(ctx context.Context, roundID string) (*Round, error)
	RoundForShare(ctx context.Context, roundID string) (*Round, error)
	ActiveRound(ctx context.Context, gameType string) (*Round, error)
	LastSequence(ctx context.Context, gameType string) (int64, error)
	// InsertRound retorna ErrConflict se já existe rodada ativa para o jogo
	InsertRound(ctx context.Context, r *Round) error
	// UpdateRound grava status/timestamps/outcome só se o status atual for from
	UpdateRound(ctx context.Context, r *Round, from Status) error

	// InsertBet retorna ErrAlreadyPlaced quando exclusive e o usuário já apostou
	InsertBet(ctx context.Context, b *Bet, exclusive bool) error
	BetForUpdate(ctx context.Context, betID string) (*Bet, error)
	// FinalizeBet grava o estado terminal só se a aposta ainda estiver PENDING
	FinalizeBet(ctx context.Context, b *Bet) error
	CountPending(ctx context.Context, roundID string) (int, error)

	// Carteira: um UPDATE condicional por chamada, um lançamento por mutação
	Debit(ctx context.Context, userID string, amount int64, reason, reference string) (LedgerEntry, error)
	Credit(ctx context.Context, userID string, amount int64, reason, reference string) (LedgerEntry, error)
	LedgerEntry(ctx context.Context, entryID int64) (*LedgerEntry, error)

	// ClaimIdempotency reserva (userId, key). Retorna nil se reservou agora,
	// ou o registro existente se a chave já foi usada.
	ClaimIdempotency(ctx context.Context, rec IdempotencyRecord) (*IdempotencyRecord, error)
	CompleteIdempotency(ctx context.Context, userID, key, resultRef string) error

	AppendEvent(ctx context.Context, ev events.RoundEvent) error
}
