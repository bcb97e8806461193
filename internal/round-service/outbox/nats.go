package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

// NATSPublisher publica em <prefix>.<type>.<gameType>, com Nats-Msg-Id para
// deduplicação do JetStream quando o relay repete um envio.
type NATSPublisher struct {
	js     jetstream.JetStream
	prefix string
}

func NewNATSPublisher(js jetstream.JetStream, prefix string) *NATSPublisher {
	return &NATSPublisher{js: js, prefix: prefix}
}

func (p *NATSPublisher) Name() string { return "nats" }

func Subject(prefix string, ev events.RoundEvent) string {
	return fmt.Sprintf("%s.%s.%s", prefix, ev.Type, ev.GameType)
}

func (p *NATSPublisher) Publish(ctx context.Context, ev events.RoundEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	msg := nats.NewMsg(Subject(p.prefix, ev))
	msg.Data = data
	msg.Header.Set(jetstream.MsgIDHeader, dedupID(ev))
	_, err = p.js.PublishMsg(ctx, msg)
	return err
}

func dedupID(ev events.RoundEvent) string {
	if ev.BetID != "" {
		return ev.Type + ":" + ev.BetID
	}
	return ev.Type + ":" + ev.RoundID
}
