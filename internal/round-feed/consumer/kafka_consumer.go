package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/dto"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Cache interface {
	SetLatest(ctx context.Context, ev events.RoundEvent) (bool, error)
	PushHistory(ctx context.Context, ev events.RoundEvent) error
}

type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// DeadLetter recebe mensagens que não decodificam (ex.: *kafka.Writer da DLQ)
type DeadLetter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Processor consome eventos de rodada do Kafka, atualiza o cache do feed
// e repassa a atualização para as instâncias do round-feed via Pub/Sub
type Processor struct {
	Log       *zap.Logger
	Reader    Reader
	Cache     Cache
	Broadcast Broadcaster
	Channel   string
	DLQ       DeadLetter // opcional
}

// Run inicia o loop principal de consumo até o contexto ser cancelado
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			metrics.RecordFeedError("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		p.Handle(ctx, m)
	}
}

// Handle processa uma mensagem. Erros são contados e logados, nunca param o consumo.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) {
	metrics.RecordFeedEvent("consumed")

	var ev events.RoundEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid message", zap.Int64("offset", m.Offset), zap.Error(err))
		metrics.RecordFeedError("decode")
		if p.DLQ != nil {
			dead := kafka.Message{Key: m.Key, Value: m.Value, Headers: append(m.Headers, kafka.Header{Key: "error", Value: []byte(err.Error())})}
			if err := p.DLQ.WriteMessages(ctx, dead); err != nil {
				p.Log.Warn("dlq write failed", zap.Error(err))
			}
		}
		return
	}
	// feed é público: resultados individuais de aposta ficam fora
	if ev.Type == events.TypeBetResolved || ev.GameType == "" {
		metrics.RecordFeedEvent("skipped")
		return
	}

	applied, err := p.Cache.SetLatest(ctx, ev)
	if err != nil {
		// cache fora do ar não bloqueia o broadcast
		p.Log.Warn("redis set failed", zap.String("round_id", ev.RoundID), zap.Error(err))
		metrics.RecordFeedError("cache")
		applied = true
	}
	if ev.Type == events.TypeRoundSettled {
		if err := p.Cache.PushHistory(ctx, ev); err != nil {
			p.Log.Warn("redis history failed", zap.String("round_id", ev.RoundID), zap.Error(err))
			metrics.RecordFeedError("history")
		}
	}
	if !applied {
		metrics.RecordFeedEvent("stale")
		return
	}

	b, _ := json.Marshal(dto.Update{GameType: ev.GameType, Event: ev})
	if err := p.Broadcast.Publish(ctx, p.Channel, b); err != nil {
		p.Log.Warn("broadcast failed", zap.String("round_id", ev.RoundID), zap.Error(err))
		metrics.RecordFeedError("broadcast")
		return
	}
	metrics.RecordFeedEvent("broadcast")
}
