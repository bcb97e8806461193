package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-service/payout"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

// Settle liquida as apostas PENDING de uma rodada resolvida, uma transação por
// aposta. Falha em uma aposta não interrompe as demais; ela fica PENDING para a
// próxima passada. O relatório sai do estado persistido, então chamar de novo
// numa rodada liquidada devolve o mesmo relatório.
func (e *Engine) Settle(ctx context.Context, roundID string) (SettlementReport, error) {
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return SettlementReport{}, err
	}
	if round.Status != StatusResolving && round.Status != StatusSettled {
		return SettlementReport{}, fmt.Errorf("%w: settle bets of %s round in %s", ErrInvalidTransition, round.GameType, round.Status)
	}
	if round.Outcome == nil {
		return SettlementReport{}, fmt.Errorf("%w: round %s has no outcome", ErrInvariantViolation, round.ID)
	}
	game, err := e.Game(round.GameType)
	if err != nil {
		return SettlementReport{}, err
	}

	var (
		failures  []BetFailure
		violation bool
	)
	if round.Status == StatusResolving {
		start := time.Now()
		pending, err := e.store.ListPendingByRound(ctx, round.ID)
		if err != nil {
			return SettlementReport{}, err
		}
		for _, p := range pending {
			b, err := e.settleBet(ctx, game, round, p.ID)
			switch {
			case err == nil:
				metrics.RecordBetResolved(game.Type(), string(b.Status), *b.Payout)
			case errors.Is(err, ErrAlreadyResolved):
				// outra passada chegou antes
			case errors.Is(err, ErrInvariantViolation):
				violation = true
				failures = append(failures, BetFailure{BetID: p.ID, Error: err.Error()})
				metrics.RecordInvariantViolation(game.Type())
				e.log.Error("settlement invariant violated",
					zap.String("round_id", round.ID), zap.String("bet_id", p.ID), zap.Error(err))
			default:
				failures = append(failures, BetFailure{BetID: p.ID, Error: err.Error()})
				e.log.Warn("bet settlement failed, will retry",
					zap.String("round_id", round.ID), zap.String("bet_id", p.ID), zap.Error(err))
			}
		}
		metrics.ObserveSettle(game.Type(), time.Since(start).Seconds())
	}

	totals, err := e.store.RoundTotals(ctx, round.ID)
	if err != nil {
		return SettlementReport{}, err
	}
	report := SettlementReport{
		RoundID:        round.ID,
		GameType:       round.GameType,
		SequenceNumber: round.SequenceNumber,
		Outcome:        round.Outcome,
		BetTotals:      totals,
		Failures:       failures,
	}

	switch {
	case violation:
		return report, fmt.Errorf("%w: round %s held for inspection", ErrInvariantViolation, round.ID)
	case totals.Pending > 0 || len(failures) > 0:
		return report, fmt.Errorf("%w: %d pending, %d failed", ErrPartialSettlement, totals.Pending, len(failures))
	}
	return report, nil
}

// Report devolve o agregado de uma rodada sem liquidar nada
func (e *Engine) Report(ctx context.Context, roundID string) (SettlementReport, error) {
	round, err := e.store.GetRound(ctx, roundID)
	if err != nil {
		return SettlementReport{}, err
	}
	totals, err := e.store.RoundTotals(ctx, round.ID)
	if err != nil {
		return SettlementReport{}, err
	}
	return SettlementReport{
		RoundID:        round.ID,
		GameType:       round.GameType,
		SequenceNumber: round.SequenceNumber,
		Outcome:        round.Outcome,
		BetTotals:      totals,
	}, nil
}

func (e *Engine) settleBet(ctx context.Context, game *Game, round *Round, betID string) (*Bet, error) {
	now := e.Now()
	var settled *Bet
	err := e.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if b.Status != BetPending {
			return fmt.Errorf("%w: bet %s is %s", ErrAlreadyResolved, b.ID, b.Status)
		}
		if err := checkDebit(ctx, tx, b); err != nil {
			return err
		}

		mult, err := game.Rule.Multiplier(b.Selection, *round.Outcome)
		if err != nil {
			return fmt.Errorf("%w: payout for bet %s: %v", ErrInvariantViolation, b.ID, err)
		}
		amount := payout.Amount(b.Amount, mult)
		if amount > 0 {
			entry, err := tx.Credit(ctx, b.UserID, amount, ReasonBetWon, b.ID)
			if err != nil {
				return err
			}
			b.Status = BetWon
			b.CreditEntryID = &entry.ID
		} else {
			amount = 0
			b.Status = BetLost
		}
		b.Payout = &amount
		b.ResolvedAt = &now
		if err := tx.FinalizeBet(ctx, b); err != nil {
			return err
		}
		settled = b
		return tx.AppendEvent(ctx, betEvent(round, b, now))
	})
	return settled, err
}

// checkDebit confere que a aposta tem o débito correspondente no livro
func checkDebit(ctx context.Context, tx Tx, b *Bet) error {
	entry, err := tx.LedgerEntry(ctx, b.DebitEntryID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: bet %s has no debit entry", ErrInvariantViolation, b.ID)
	}
	if err != nil {
		return err
	}
	if entry.Direction != DirectionDebit || entry.Amount != b.Amount || entry.UserID != b.UserID || entry.Reference != b.ID {
		return fmt.Errorf("%w: bet %s debit mismatch (entry %d: %s %d for %s)",
			ErrInvariantViolation, b.ID, entry.ID, entry.Direction, entry.Amount, entry.UserID)
	}
	return nil
}
