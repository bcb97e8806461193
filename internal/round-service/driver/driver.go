// Package driver avança as rodadas de cada jogo no tempo. Tick é idempotente:
// vários ticks concorrentes (no mesmo processo ou em réplicas) só fazem
// cada transição uma vez, porque toda transição é um CAS no store.
package driver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
)

// Passos executados por um tick
const (
	StepOpened   = "opened"
	StepLocked   = "locked"
	StepResolved = "resolved"
	StepSettled  = "settled"
)

// Gate evita ticks redundantes entre réplicas. Não é necessário para a
// correção, só economiza transações.
type Gate interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Result struct {
	GameType string        `json:"gameType"`
	RoundID  string        `json:"roundId,omitempty"`
	Status   engine.Status `json:"status,omitempty"`
	Steps    []string      `json:"steps"`
}

type Driver struct {
	eng      *engine.Engine
	log      *zap.Logger
	interval time.Duration
	gate     Gate
}

type Option func(*Driver)

func WithGate(g Gate) Option { return func(d *Driver) { d.gate = g } }

func New(eng *engine.Engine, log *zap.Logger, interval time.Duration, opts ...Option) *Driver {
	d := &Driver{eng: eng, log: log, interval: interval}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ignorable são erros de corrida com outro tick: o estado já avançou
func ignorable(err error) bool {
	return errors.Is(err, engine.ErrConflict) ||
		errors.Is(err, engine.ErrInvalidTransition) ||
		errors.Is(err, engine.ErrAlreadyResolved) ||
		errors.Is(err, engine.ErrAlreadySettled)
}

// Tick leva a rodada ativa do jogo o mais longe possível agora.
// Em erro a rodada fica no último estado gravado e o próximo tick tenta de novo.
func (d *Driver) Tick(ctx context.Context, gameType string) (Result, error) {
	res := Result{GameType: gameType, Steps: []string{}}
	game, err := d.eng.Game(gameType)
	if err != nil {
		return res, err
	}

	r, err := d.eng.GetActiveRound(ctx, gameType)
	if errors.Is(err, engine.ErrNotFound) {
		if !game.Config.AutoRun {
			return res, nil
		}
		opened, err := d.eng.OpenRound(ctx, gameType, "")
		if err != nil {
			if ignorable(err) {
				return res, nil
			}
			return res, err
		}
		res.RoundID, res.Status = opened.ID, opened.Status
		res.Steps = append(res.Steps, StepOpened)
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.RoundID, res.Status = r.ID, r.Status

	if r.Status == engine.StatusOpen {
		if d.eng.Now().Before(r.BettingClosesAt) {
			return res, nil
		}
		locked, err := d.eng.LockRound(ctx, r.ID)
		if err != nil {
			if ignorable(err) {
				return res, nil
			}
			return res, err
		}
		r = locked
		res.Status = r.Status
		res.Steps = append(res.Steps, StepLocked)
	}

	if r.Status == engine.StatusLocked {
		at, err := d.eng.ResolveAt(r)
		if err != nil {
			return res, err
		}
		if d.eng.Now().Before(at) {
			return res, nil
		}
		if _, err := d.eng.ResolveRound(ctx, r.ID); err != nil && !errors.Is(err, engine.ErrAlreadyResolved) {
			if ignorable(err) {
				return res, nil
			}
			return res, err
		}
		r.Status = engine.StatusResolving
		res.Status = r.Status
		res.Steps = append(res.Steps, StepResolved)
	}

	if r.Status == engine.StatusResolving {
		report, err := d.eng.Settle(ctx, r.ID)
		if err != nil {
			return res, err
		}
		if report.Pending > 0 {
			return res, nil
		}
		if _, err := d.eng.SettleRound(ctx, r.ID); err != nil {
			if ignorable(err) {
				return res, nil
			}
			return res, err
		}
		res.Status = engine.StatusSettled
		res.Steps = append(res.Steps, StepSettled)
		d.log.Info("round complete",
			zap.String("game_type", gameType),
			zap.String("round_id", r.ID),
			zap.Int("bets", report.Bets),
			zap.Int64("staked", report.TotalStaked),
			zap.Int64("paid", report.TotalPaid),
		)
	}
	return res, nil
}

// Run dispara um loop de ticks por jogo com autoRun até o contexto acabar
func (d *Driver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, game := range d.eng.Games() {
		if !game.Config.AutoRun {
			continue
		}
		gameType := game.Type()
		g.Go(func() error {
			d.loop(ctx, gameType)
			return nil
		})
	}
	return g.Wait()
}

func (d *Driver) loop(ctx context.Context, gameType string) {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	d.log.Info("driver started", zap.String("game_type", gameType), zap.Duration("interval", d.interval))
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.tickOnce(ctx, gameType)
		}
	}
}

func (d *Driver) tickOnce(ctx context.Context, gameType string) {
	if d.gate != nil {
		release, ok, err := d.gate.TryAcquire(ctx, "tick:"+gameType, d.interval)
		if err != nil {
			d.log.Debug("tick gate unavailable", zap.String("game_type", gameType), zap.Error(err))
		} else if !ok {
			return
		} else {
			defer release()
		}
	}

	if _, err := d.Tick(ctx, gameType); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		class := engine.Classify(err)
		metrics.RecordTickError(gameType, string(class))
		lvl := zapcore.WarnLevel
		if class == engine.ClassInvariant {
			lvl = zapcore.ErrorLevel
		}
		if ce := d.log.Check(lvl, "tick failed"); ce != nil {
			ce.Write(zap.String("game_type", gameType), zap.String("class", string(class)), zap.Error(err))
		}
	}
}
