package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

// KafkaPublisher escreve eventos de rodada e, em paralelo, os bet.resolved no tópico próprio.
// Chave = roundId, então todos os eventos de uma rodada caem na mesma partição.
type KafkaPublisher struct {
	Rounds *kafka.Writer
	Bets   *kafka.Writer
}

func NewKafkaPublisher(rounds, bets *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Rounds: rounds, Bets: bets}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Publish(ctx context.Context, ev events.RoundEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	w := p.Rounds
	if ev.Type == events.TypeBetResolved && p.Bets != nil {
		w = p.Bets
	}
	msg := kafka.Message{
		Key:   []byte(ev.Key()),
		Value: b,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "game_type", Value: []byte(ev.GameType)},
		},
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", w.Topic, err)
	}
	return nil
}
