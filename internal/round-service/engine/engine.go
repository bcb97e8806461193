// Package engine é o núcleo de rodadas: máquina de estados, livro de apostas
// e liquidação. Uma instância atende todos os jogos registrados; cada jogo
// entra com seu gerador de resultado e sua tabela de pagamento.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

const maxHistory = 100

type Engine struct {
	store Store
	games map[string]*Game
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Engine)

// WithClock troca o relógio (testes)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store Store, games []*Game, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		games: make(map[string]*Game, len(games)),
		log:   log,
		now:   time.Now,
	}
	for _, g := range games {
		e.games[g.Type()] = g
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Game retorna o jogo registrado para o tipo
func (e *Engine) Game(gameType string) (*Game, error) {
	g, ok := e.games[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, gameType)
	}
	return g, nil
}

// Games lista os jogos em ordem alfabética
func (e *Engine) Games() []*Game {
	out := make([]*Game, 0, len(e.games))
	for _, g := range e.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

func (e *Engine) Now() time.Time { return e.now().UTC() }

// OpenRound cria a próxima rodada do jogo. Seed vazia gera uma nova.
func (e *Engine) OpenRound(ctx context.Context, gameType, seed string) (*Round, error) {
	game, err := e.Game(gameType)
	if err != nil {
		return nil, err
	}
	if seed == "" {
		if seed, err = outcome.NewSeed(); err != nil {
			return nil, fmt.Errorf("new seed: %w", err)
		}
	}

	now := e.Now()
	var round *Round
	err = e.store.InTx(ctx, func(tx Tx) error {
		if active, err := tx.ActiveRound(ctx, gameType); err == nil {
			return fmt.Errorf("%w: %s round %d is %s", ErrConflict, gameType, active.SequenceNumber, active.Status)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		last, err := tx.LastSequence(ctx, gameType)
		if err != nil {
			return err
		}
		round = &Round{
			ID:              uuid.NewString(),
			GameType:        gameType,
			SequenceNumber:  last + 1,
			Status:          StatusOpen,
			OpenedAt:        now,
			BettingClosesAt: now.Add(game.Config.BettingWindow),
			Seed:            seed,
			SeedHash:        outcome.HashSeed(seed),
		}
		if err := tx.InsertRound(ctx, round); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, roundEvent(events.TypeRoundOpened, round, now))
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(gameType, string(StatusOpen))
	e.log.Info("round opened",
		zap.String("game_type", gameType),
		zap.String("round_id", round.ID),
		zap.Int64("sequence", round.SequenceNumber),
		zap.Time("betting_closes_at", round.BettingClosesAt),
	)
	return round, nil
}

// LockRound fecha as apostas (OPEN -> LOCKED). Apostas concorrentes ou
// entram antes do lock ou recebem ErrRoundClosed.
func (e *Engine) LockRound(ctx context.Context, roundID string) (*Round, error) {
	now := e.Now()
	var round *Round
	err := e.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.RoundForUpdate(ctx, roundID)
		if err != nil {
			return err
		}
		if r.Status != StatusOpen {
			return fmt.Errorf("%w: lock %s round in %s", ErrInvalidTransition, r.GameType, r.Status)
		}
		r.Status = StatusLocked
		r.LockedAt = &now
		if err := tx.UpdateRound(ctx, r, StatusOpen); err != nil {
			return err
		}
		round = r
		return tx.AppendEvent(ctx, roundEvent(events.TypeRoundLocked, r, now))
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(round.GameType, string(StatusLocked))
	e.log.Info("round locked", zap.String("game_type", round.GameType), zap.String("round_id", round.ID))
	return round, nil
}

// ResolveRound calcula o resultado uma única vez (LOCKED -> RESOLVING).
// Se já foi resolvida, devolve o resultado gravado junto com ErrAlreadyResolved.
func (e *Engine) ResolveRound(ctx context.Context, roundID string) (outcome.Outcome, error) {
	now := e.Now()
	var (
		result   outcome.Outcome
		gameType string
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.RoundForUpdate(ctx, roundID)
		if err != nil {
			return err
		}
		if r.Outcome != nil {
			result = *r.Outcome
			return fmt.Errorf("%w: round %s", ErrAlreadyResolved, r.ID)
		}
		if r.Status != StatusLocked {
			return fmt.Errorf("%w: resolve %s round in %s", ErrInvalidTransition, r.GameType, r.Status)
		}
		game, err := e.Game(r.GameType)
		if err != nil {
			return err
		}
		o, err := game.Generator.Generate(r.Seed, r.gameContext())
		if err != nil {
			return fmt.Errorf("%w: generate outcome: %v", ErrInvariantViolation, err)
		}
		r.Outcome = &o
		r.Status = StatusResolving
		r.ResolvedAt = &now
		if err := tx.UpdateRound(ctx, r, StatusLocked); err != nil {
			return err
		}
		result, gameType = o, r.GameType
		return nil
	})
	if err != nil {
		return result, err
	}
	metrics.RecordTransition(gameType, string(StatusResolving))
	e.log.Info("round resolved", zap.String("game_type", gameType), zap.String("round_id", roundID), zap.String("outcome", result.Value))
	return result, nil
}

// SettleRound fecha a rodada (RESOLVING -> SETTLED) quando não resta aposta PENDING.
func (e *Engine) SettleRound(ctx context.Context, roundID string) (*Round, error) {
	now := e.Now()
	var round *Round
	err := e.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.RoundForUpdate(ctx, roundID)
		if err != nil {
			return err
		}
		if r.Status == StatusSettled {
			return fmt.Errorf("%w: round %s", ErrAlreadySettled, r.ID)
		}
		if r.Status != StatusResolving {
			return fmt.Errorf("%w: settle %s round in %s", ErrInvalidTransition, r.GameType, r.Status)
		}
		n, err := tx.CountPending(ctx, r.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %d bets pending in round %s", ErrIncompleteSettlement, n, r.ID)
		}
		r.Status = StatusSettled
		r.SettledAt = &now
		if err := tx.UpdateRound(ctx, r, StatusResolving); err != nil {
			return err
		}
		round = r
		return tx.AppendEvent(ctx, roundEvent(events.TypeRoundSettled, r, now))
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(round.GameType, string(StatusSettled))
	e.log.Info("round settled", zap.String("game_type", round.GameType), zap.String("round_id", round.ID))
	return round, nil
}

// GetActiveRound substitui a antiga referência global de "rodada atual"
func (e *Engine) GetActiveRound(ctx context.Context, gameType string) (*Round, error) {
	if _, err := e.Game(gameType); err != nil {
		return nil, err
	}
	return e.store.ActiveRound(ctx, gameType)
}

func (e *Engine) GetRound(ctx context.Context, roundID string) (*Round, error) {
	return e.store.GetRound(ctx, roundID)
}

// GetRoundHistory retorna as últimas rodadas do jogo, mais recente primeiro
func (e *Engine) GetRoundHistory(ctx context.Context, gameType string, limit int) ([]Round, error) {
	if _, err := e.Game(gameType); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	return e.store.RoundHistory(ctx, gameType, limit)
}

func (e *Engine) GetBet(ctx context.Context, betID string) (*Bet, error) {
	return e.store.GetBet(ctx, betID)
}

// ListPendingByRound lista as apostas ainda não liquidadas da rodada
func (e *Engine) ListPendingByRound(ctx context.Context, roundID string) ([]Bet, error) {
	return e.store.ListPendingByRound(ctx, roundID)
}

// FlightMultiplier é o multiplicador corrente de uma rodada de crash:
// 1.00 enquanto OPEN, e^(rate*t) desde o lock.
func (e *Engine) FlightMultiplier(r *Round) (decimal.Decimal, error) {
	game, err := e.Game(r.GameType)
	if err != nil {
		return decimal.Zero, err
	}
	if game.Flight == nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrCashOutNotSupported, r.GameType)
	}
	if r.Status != StatusLocked || r.LockedAt == nil {
		return outcome.OneX, nil
	}
	return game.Flight.FlightMultiplier(e.Now().Sub(*r.LockedAt)), nil
}

// ResolveAt é o instante a partir do qual a rodada travada pode ser resolvida.
// Para crash, é o fim do voo; para os demais, o próprio lock.
func (e *Engine) ResolveAt(r *Round) (time.Time, error) {
	if r.LockedAt == nil {
		return time.Time{}, fmt.Errorf("%w: round %s not locked", ErrInvalidTransition, r.ID)
	}
	game, err := e.Game(r.GameType)
	if err != nil {
		return time.Time{}, err
	}
	if game.Flight == nil {
		return *r.LockedAt, nil
	}
	o, err := game.Generator.Generate(r.Seed, r.gameContext())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: generate outcome: %v", ErrInvariantViolation, err)
	}
	if o.Multiplier == nil {
		return time.Time{}, fmt.Errorf("%w: crash outcome without multiplier", ErrInvariantViolation)
	}
	return r.LockedAt.Add(game.Flight.FlightDuration(*o.Multiplier)), nil
}
