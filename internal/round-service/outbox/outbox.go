// Package outbox publica os eventos de rodada gravados na mesma transação das
// mutações. O relay reivindica lotes com lease, publica em todos os sinks e só
// então marca como enviado; falhas voltam para a fila até o limite de tentativas.
package outbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

type Message struct {
	ID       int64
	Event    events.RoundEvent
	Attempts int
}

type Store interface {
	ClaimBatch(ctx context.Context, limit int, lease time.Duration) ([]Message, error)
	MarkSent(ctx context.Context, ids []int64) error
	MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int) error
}

// Publisher entrega um evento para um sink externo
type Publisher interface {
	Name() string
	Publish(ctx context.Context, ev events.RoundEvent) error
}

type Relay struct {
	store      Store
	publishers []Publisher
	log        *zap.Logger

	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Lease       time.Duration
}

func NewRelay(store Store, log *zap.Logger, publishers ...Publisher) *Relay {
	return &Relay{
		store:       store,
		publishers:  publishers,
		log:         log,
		Interval:    time.Second,
		BatchSize:   100,
		MaxAttempts: 10,
		Lease:       30 * time.Second,
	}
}

// Run roda até o contexto ser cancelado
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("outbox relay", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// RunOnce publica um lote e devolve quantas mensagens saíram
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	batch, err := r.store.ClaimBatch(ctx, r.BatchSize, r.Lease)
	if err != nil {
		return 0, err
	}
	metrics.SetOutboxBatch(len(batch))
	if len(batch) == 0 {
		return 0, nil
	}

	sent := make([]int64, 0, len(batch))
	for _, m := range batch {
		if err := r.publish(ctx, m.Event); err != nil {
			r.log.Warn("outbox publish failed",
				zap.Int64("id", m.ID),
				zap.String("type", m.Event.Type),
				zap.String("round_id", m.Event.RoundID),
				zap.Int("attempts", m.Attempts+1),
				zap.Error(err),
			)
			if merr := r.store.MarkFailed(ctx, m.ID, err.Error(), r.MaxAttempts); merr != nil {
				// o que já saiu é confirmado antes de abortar o lote
				return r.markSent(ctx, sent, merr)
			}
			if m.Attempts+1 >= r.MaxAttempts {
				r.log.Error("outbox message dropped", zap.Int64("id", m.ID), zap.String("type", m.Event.Type))
			}
			continue
		}
		sent = append(sent, m.ID)
	}
	return r.markSent(ctx, sent, nil)
}

func (r *Relay) markSent(ctx context.Context, sent []int64, cause error) (int, error) {
	if len(sent) == 0 {
		return 0, cause
	}
	if err := r.store.MarkSent(ctx, sent); err != nil {
		return 0, errors.Join(cause, err)
	}
	return len(sent), cause
}

// publish entrega em todos os sinks; qualquer falha devolve a mensagem para a fila
// (consumidores deduplicam por tipo+round+bet)
func (r *Relay) publish(ctx context.Context, ev events.RoundEvent) error {
	var errs []error
	for _, p := range r.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			metrics.RecordOutboxFailure(p.Name())
			errs = append(errs, err)
			continue
		}
		metrics.RecordOutboxPublished(p.Name(), 1)
	}
	return errors.Join(errs...)
}
