package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/round-service/payout"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

// Escopos de idempotência
const (
	ScopePlaceBet = "place_bet"
	ScopeCashOut  = "cash_out"
)

type PlaceBetRequest struct {
	RoundID        string
	UserID         string
	Amount         int64
	Selection      string
	IdempotencyKey string
}

type CashOutRequest struct {
	BetID          string
	UserID         string
	IdempotencyKey string
	// Multiplier nil significa "o multiplicador corrente"
	Multiplier *decimal.Decimal
}

func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// claim reserva a chave dentro da tx. Retorna o ID do resultado anterior
// quando é um replay legítimo, ou "" quando a chave foi reservada agora.
func claim(ctx context.Context, tx Tx, rec IdempotencyRecord) (string, error) {
	prev, err := tx.ClaimIdempotency(ctx, rec)
	if err != nil {
		return "", err
	}
	if prev == nil {
		return "", nil
	}
	if prev.Scope != rec.Scope || prev.Fingerprint != rec.Fingerprint {
		return "", fmt.Errorf("%w: key %q", ErrDuplicateRequest, rec.Key)
	}
	if prev.ResultRef == "" {
		return "", fmt.Errorf("%w: key %q still in flight", ErrDuplicateRequest, rec.Key)
	}
	return prev.ResultRef, nil
}

// PlaceBet debita a carteira e registra a aposta na mesma transação.
// Repetir a chamada com a mesma chave e os mesmos parâmetros devolve a aposta original.
func (e *Engine) PlaceBet(ctx context.Context, req PlaceBetRequest) (*Bet, error) {
	bet, game, err := e.placeBet(ctx, req)
	if err != nil {
		gameType := "unknown"
		if game != nil {
			gameType = game.Type()
		}
		metrics.RecordBetRejected(gameType, string(Classify(err)))
		return nil, err
	}
	return bet, nil
}

func (e *Engine) placeBet(ctx context.Context, req PlaceBetRequest) (*Bet, *Game, error) {
	if req.IdempotencyKey == "" {
		return nil, nil, ErrMissingIdempotencyKey
	}
	if req.UserID == "" || req.RoundID == "" {
		return nil, nil, fmt.Errorf("%w: user and round are required", ErrInvalidRequest)
	}
	round, err := e.store.GetRound(ctx, req.RoundID)
	if err != nil {
		return nil, nil, err
	}
	game, err := e.Game(round.GameType)
	if err != nil {
		return nil, nil, err
	}
	cfg := game.Config
	if req.Amount <= 0 || req.Amount < cfg.MinBet || (cfg.MaxBet > 0 && req.Amount > cfg.MaxBet) {
		return nil, game, fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidAmount, req.Amount, cfg.MinBet, cfg.MaxBet)
	}
	if err := game.Rule.Validate(req.Selection); err != nil {
		return nil, game, fmt.Errorf("%w: %v", ErrInvalidSelection, err)
	}

	rec := IdempotencyRecord{
		UserID:      req.UserID,
		Key:         req.IdempotencyKey,
		Scope:       ScopePlaceBet,
		Fingerprint: fingerprint(ScopePlaceBet, req.RoundID, strconv.FormatInt(req.Amount, 10), req.Selection),
	}

	now := e.Now()
	var (
		bet      *Bet
		replayed bool
	)
	err = e.store.InTx(ctx, func(tx Tx) error {
		prevID, err := claim(ctx, tx, rec)
		if err != nil {
			return err
		}
		if prevID != "" {
			bet, err = tx.BetForUpdate(ctx, prevID)
			replayed = true
			return err
		}

		r, err := tx.RoundForShare(ctx, req.RoundID)
		if err != nil {
			return err
		}
		if r.Status != StatusOpen || !now.Before(r.BettingClosesAt) {
			return fmt.Errorf("%w: round %s is %s", ErrRoundClosed, r.ID, r.Status)
		}

		b := &Bet{
			ID:             uuid.NewString(),
			RoundID:        r.ID,
			UserID:         req.UserID,
			Amount:         req.Amount,
			Selection:      req.Selection,
			Status:         BetPending,
			IdempotencyKey: req.IdempotencyKey,
			CreatedAt:      now,
		}
		entry, err := tx.Debit(ctx, req.UserID, req.Amount, ReasonBetPlaced, b.ID)
		if err != nil {
			return err
		}
		b.DebitEntryID = entry.ID
		if err := tx.InsertBet(ctx, b, cfg.OneBetPerRound); err != nil {
			return err
		}
		if err := tx.CompleteIdempotency(ctx, req.UserID, req.IdempotencyKey, b.ID); err != nil {
			return err
		}
		bet = b
		return nil
	})
	if err != nil {
		return nil, game, err
	}
	if replayed {
		e.log.Info("bet replayed", zap.String("bet_id", bet.ID), zap.String("user_id", req.UserID))
		return bet, game, nil
	}
	metrics.RecordBetPlaced(game.Type(), bet.Amount)
	e.log.Info("bet placed",
		zap.String("game_type", game.Type()),
		zap.String("round_id", bet.RoundID),
		zap.String("bet_id", bet.ID),
		zap.String("user_id", bet.UserID),
		zap.Int64("amount", bet.Amount),
		zap.String("selection", bet.Selection),
	)
	return bet, game, nil
}

// CashOut encerra uma aposta de crash no multiplicador corrente e credita na hora.
// Rodada e aposta são conferidas dentro da mesma transação que grava o crédito.
func (e *Engine) CashOut(ctx context.Context, req CashOutRequest) (*Bet, error) {
	if req.IdempotencyKey == "" {
		return nil, ErrMissingIdempotencyKey
	}
	if req.BetID == "" || req.UserID == "" {
		return nil, fmt.Errorf("%w: bet and user are required", ErrInvalidRequest)
	}
	if req.Multiplier != nil && req.Multiplier.LessThan(outcome.OneX) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMultiplier, req.Multiplier.String())
	}
	existing, err := e.store.GetBet(ctx, req.BetID)
	if err != nil {
		return nil, err
	}
	if existing.UserID != req.UserID {
		return nil, fmt.Errorf("%w: bet %s", ErrNotFound, req.BetID)
	}
	round, err := e.store.GetRound(ctx, existing.RoundID)
	if err != nil {
		return nil, err
	}
	game, err := e.Game(round.GameType)
	if err != nil {
		return nil, err
	}
	if !game.SupportsCashOut() {
		return nil, fmt.Errorf("%w: %s", ErrCashOutNotSupported, game.Type())
	}

	requested := ""
	if req.Multiplier != nil {
		requested = req.Multiplier.StringFixed(2)
	}
	rec := IdempotencyRecord{
		UserID:      req.UserID,
		Key:         req.IdempotencyKey,
		Scope:       ScopeCashOut,
		Fingerprint: fingerprint(ScopeCashOut, req.BetID, requested),
	}

	now := e.Now()
	var (
		bet      *Bet
		replayed bool
	)
	err = e.store.InTx(ctx, func(tx Tx) error {
		prevID, err := claim(ctx, tx, rec)
		if err != nil {
			return err
		}
		if prevID != "" {
			bet, err = tx.BetForUpdate(ctx, prevID)
			replayed = true
			return err
		}

		r, err := tx.RoundForShare(ctx, existing.RoundID)
		if err != nil {
			return err
		}
		b, err := tx.BetForUpdate(ctx, req.BetID)
		if err != nil {
			return err
		}
		if b.Status != BetPending {
			return fmt.Errorf("%w: bet %s is %s", ErrAlreadyResolved, b.ID, b.Status)
		}
		if r.Status != StatusOpen && r.Status != StatusLocked {
			return fmt.Errorf("%w: round %s is %s", ErrTooLate, r.ID, r.Status)
		}

		o, err := game.Generator.Generate(r.Seed, r.gameContext())
		if err != nil {
			return fmt.Errorf("%w: generate outcome: %v", ErrInvariantViolation, err)
		}
		if o.Multiplier == nil {
			return fmt.Errorf("%w: crash outcome without multiplier", ErrInvariantViolation)
		}
		crash := *o.Multiplier

		current := outcome.OneX
		if r.Status == StatusLocked && r.LockedAt != nil {
			current = game.Flight.FlightMultiplier(now.Sub(*r.LockedAt))
		}
		// o voo já passou do crash mesmo que o driver ainda não tenha resolvido
		if current.GreaterThanOrEqual(crash) {
			return fmt.Errorf("%w: round crashed at %s", ErrTooLate, crash.StringFixed(2))
		}
		// auto cash-out já disparou; a liquidação paga o alvo
		if target, ok := payout.ParseAuto(b.Selection); ok && current.GreaterThanOrEqual(target) {
			return fmt.Errorf("%w: auto cash-out at %s already triggered", ErrTooLate, target.StringFixed(2))
		}

		m := current
		if req.Multiplier != nil {
			m = req.Multiplier.Truncate(2)
			if m.GreaterThan(current) {
				return fmt.Errorf("%w: requested %s above current %s", ErrInvalidMultiplier, m.StringFixed(2), current.StringFixed(2))
			}
		}
		if m.GreaterThanOrEqual(crash) {
			return fmt.Errorf("%w: round crashed at %s", ErrTooLate, crash.StringFixed(2))
		}

		amount := payout.Amount(b.Amount, m)
		entry, err := tx.Credit(ctx, b.UserID, amount, ReasonCashOut, b.ID)
		if err != nil {
			return err
		}
		b.Status = BetCashedOut
		b.Payout = &amount
		b.CashOutMultiplier = &m
		b.CreditEntryID = &entry.ID
		b.ResolvedAt = &now
		if err := tx.FinalizeBet(ctx, b); err != nil {
			return err
		}
		if err := tx.CompleteIdempotency(ctx, req.UserID, req.IdempotencyKey, b.ID); err != nil {
			return err
		}
		bet = b
		return tx.AppendEvent(ctx, betEvent(r, b, now))
	})
	if err != nil {
		return nil, err
	}
	if !replayed {
		metrics.RecordBetResolved(game.Type(), string(BetCashedOut), *bet.Payout)
		e.log.Info("bet cashed out",
			zap.String("bet_id", bet.ID),
			zap.String("round_id", bet.RoundID),
			zap.String("multiplier", bet.CashOutMultiplier.StringFixed(2)),
			zap.Int64("payout", *bet.Payout),
		)
	}
	return bet, nil
}

// VoidBet cancela uma aposta pendente e estorna o valor apostado.
// Só é possível enquanto a rodada não foi liquidada.
func (e *Engine) VoidBet(ctx context.Context, betID, reason string) (*Bet, error) {
	existing, err := e.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	now := e.Now()
	var bet *Bet
	var gameType string
	err = e.store.InTx(ctx, func(tx Tx) error {
		r, err := tx.RoundForShare(ctx, existing.RoundID)
		if err != nil {
			return err
		}
		if r.Status == StatusSettled {
			return fmt.Errorf("%w: round %s", ErrAlreadySettled, r.ID)
		}
		b, err := tx.BetForUpdate(ctx, betID)
		if err != nil {
			return err
		}
		if b.Status != BetPending {
			return fmt.Errorf("%w: bet %s is %s", ErrAlreadyResolved, b.ID, b.Status)
		}
		entry, err := tx.Credit(ctx, b.UserID, b.Amount, ReasonBetVoid, b.ID)
		if err != nil {
			return err
		}
		refund := b.Amount
		b.Status = BetVoid
		b.Payout = &refund
		b.CreditEntryID = &entry.ID
		b.ResolvedAt = &now
		if err := tx.FinalizeBet(ctx, b); err != nil {
			return err
		}
		bet, gameType = b, r.GameType
		return tx.AppendEvent(ctx, betEvent(r, b, now))
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordBetResolved(gameType, string(BetVoid), bet.Amount)
	e.log.Warn("bet voided", zap.String("bet_id", bet.ID), zap.String("reason", reason))
	return bet, nil
}
