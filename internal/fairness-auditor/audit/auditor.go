// Package audit refaz o sorteio de cada rodada liquidada a partir da seed revelada
// e confere com o resultado anunciado.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/fairness-auditor/dto"
	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	skafka "github.com/radieske/fair-round-engine/internal/shared/kafka"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

const dlqRetries = 3

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Sink recebe as violações (tópico DLQ de fairness)
type Sink interface {
	Report(ctx context.Context, v dto.Violation) error
}

type Auditor struct {
	log        *zap.Logger
	generators map[string]outcome.Generator
	sink       Sink
	now        func() time.Time
	backoff    time.Duration
}

func New(log *zap.Logger, generators map[string]outcome.Generator, sink Sink) *Auditor {
	return &Auditor{log: log, generators: generators, sink: sink, now: time.Now, backoff: 300 * time.Millisecond}
}

// Verify confere um round.settled. Devolve nil quando a rodada é reproduzível
// ou quando o evento não é auditável (tipo ou jogo desconhecido).
func (a *Auditor) Verify(ev events.RoundEvent) *dto.Violation {
	if ev.Type != events.TypeRoundSettled {
		return nil
	}
	gen, ok := a.generators[ev.GameType]
	if !ok {
		metrics.RecordAudit(ev.GameType, "unknown_game")
		return nil
	}

	violation := func(reason, expected, got string) *dto.Violation {
		metrics.RecordAudit(ev.GameType, reason)
		return &dto.Violation{
			RoundID:        ev.RoundID,
			GameType:       ev.GameType,
			SequenceNumber: ev.SequenceNumber,
			Reason:         reason,
			Expected:       expected,
			Got:            got,
			Event:          ev,
			DetectedAt:     a.now().UTC(),
		}
	}

	if !outcome.VerifySeed(ev.Seed, ev.SeedHash) {
		return violation(dto.ReasonSeedMismatch, ev.SeedHash, outcome.HashSeed(ev.Seed))
	}

	var announced outcome.Outcome
	if err := json.Unmarshal(ev.Outcome, &announced); err != nil || len(ev.Outcome) == 0 {
		return violation(dto.ReasonMalformed, "", string(ev.Outcome))
	}
	want, err := gen.Generate(ev.Seed, outcome.GameContext{
		GameType:       ev.GameType,
		RoundID:        ev.RoundID,
		SequenceNumber: ev.SequenceNumber,
	})
	if err != nil {
		return violation(dto.ReasonOutcomeMismatch, "generate: "+err.Error(), string(ev.Outcome))
	}

	// compara a forma canônica (re-serializada) dos dois resultados
	wantJSON, _ := json.Marshal(want)
	gotJSON, _ := json.Marshal(announced)
	if !bytes.Equal(wantJSON, gotJSON) {
		return violation(dto.ReasonOutcomeMismatch, string(wantJSON), string(gotJSON))
	}

	metrics.RecordAudit(ev.GameType, "ok")
	return nil
}

// Handle decodifica uma mensagem e envia a violação, se houver, para o sink
func (a *Auditor) Handle(ctx context.Context, value []byte) error {
	var ev events.RoundEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		a.log.Warn("invalid message", zap.Error(err))
		return nil
	}
	v := a.Verify(ev)
	if v == nil {
		return nil
	}
	a.log.Error("fairness violation",
		zap.String("round_id", v.RoundID),
		zap.String("game_type", v.GameType),
		zap.Int64("sequence", v.SequenceNumber),
		zap.String("reason", v.Reason),
	)

	var err error
	for i := 0; i < dlqRetries; i++ {
		if err = a.sink.Report(ctx, *v); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.backoff * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("report violation %s: %w", v.RoundID, err)
}

// Run consome round.settled até o contexto ser cancelado
func (a *Auditor) Run(ctx context.Context, r Reader) error {
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if err := a.Handle(ctx, m.Value); err != nil {
			a.log.Error("audit message", zap.Error(err))
		}
	}
}

// KafkaSink publica violações no tópico de DLQ, chave = roundId
type KafkaSink struct {
	W *kafka.Writer
}

func (s KafkaSink) Report(ctx context.Context, v dto.Violation) error {
	return skafka.WriteJSON(ctx, s.W, v.RoundID, v)
}
