package consumer_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/cache"
	"github.com/radieske/fair-round-engine/internal/round-feed/consumer"
	"github.com/radieske/fair-round-engine/internal/round-feed/dto"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

type memCache struct {
	mu      sync.Mutex
	latest  map[string]events.RoundEvent
	history []events.RoundEvent
	fail    bool
}

func (c *memCache) SetLatest(_ context.Context, ev events.RoundEvent) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false, errors.New("redis down")
	}
	if prev, ok := c.latest[ev.GameType]; ok && !cache.Newer(ev, prev) {
		return false, nil
	}
	c.latest[ev.GameType] = ev
	return true, nil
}

func (c *memCache) PushHistory(_ context.Context, ev events.RoundEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, ev)
	return nil
}

type recorder struct {
	mu      sync.Mutex
	updates []dto.Update
}

func (r *recorder) Publish(_ context.Context, channel string, payload []byte) error {
	var u dto.Update
	if err := json.Unmarshal(payload, &u); err != nil {
		return err
	}
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

type chanReader chan kafka.Message

func (c chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-c:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func ev(typ string, seq int64) kafka.Message {
	b, _ := json.Marshal(events.RoundEvent{Type: typ, RoundID: "r", GameType: "aviator", SequenceNumber: seq})
	return kafka.Message{Value: b}
}

type dlq struct{ msgs []kafka.Message }

func (d *dlq) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	d.msgs = append(d.msgs, msgs...)
	return nil
}

func newProcessor(c consumer.Cache) (*consumer.Processor, *recorder) {
	rec := &recorder{}
	return &consumer.Processor{Log: zap.NewNop(), Cache: c, Broadcast: rec, Channel: "test"}, rec
}

func TestHandleIgnoresStaleEvents(t *testing.T) {
	mc := &memCache{latest: map[string]events.RoundEvent{}}
	p, rec := newProcessor(mc)
	ctx := context.Background()

	p.Handle(ctx, ev(events.TypeRoundOpened, 2))
	p.Handle(ctx, ev(events.TypeRoundSettled, 1)) // rodada anterior chegando atrasada
	p.Handle(ctx, ev(events.TypeRoundLocked, 2))
	p.Handle(ctx, ev(events.TypeRoundLocked, 2)) // reentrega

	if rec.len() != 2 {
		t.Fatalf("broadcasts = %d, want 2", rec.len())
	}
	if got := mc.latest["aviator"]; got.SequenceNumber != 2 || got.Type != events.TypeRoundLocked {
		t.Fatalf("latest = %+v", got)
	}
	if len(mc.history) != 1 || mc.history[0].SequenceNumber != 1 {
		t.Fatalf("history = %+v", mc.history)
	}
}

func TestHandleSkipsBetEventsAndGarbage(t *testing.T) {
	mc := &memCache{latest: map[string]events.RoundEvent{}}
	p, rec := newProcessor(mc)
	dead := &dlq{}
	p.DLQ = dead
	ctx := context.Background()

	p.Handle(ctx, kafka.Message{Value: []byte("{not json")})
	p.Handle(ctx, ev(events.TypeBetResolved, 1))
	if rec.len() != 0 || len(mc.latest) != 0 {
		t.Fatalf("unexpected side effects: %d broadcasts, %d cached", rec.len(), len(mc.latest))
	}
	if len(dead.msgs) != 1 || string(dead.msgs[0].Value) != "{not json" {
		t.Fatalf("dlq = %+v", dead.msgs)
	}
}

func TestHandleBroadcastsWhenCacheDown(t *testing.T) {
	p, rec := newProcessor(&memCache{fail: true})
	p.Handle(context.Background(), ev(events.TypeRoundOpened, 1))
	if rec.len() != 1 {
		t.Fatalf("broadcasts = %d", rec.len())
	}
}

func TestRunConsumesUntilCancel(t *testing.T) {
	mc := &memCache{latest: map[string]events.RoundEvent{}}
	p, rec := newProcessor(mc)
	r := make(chanReader, 2)
	p.Reader = r
	r <- ev(events.TypeRoundOpened, 1)
	r <- ev(events.TypeRoundLocked, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for rec.len() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run = %v", err)
	}
	if rec.len() != 2 {
		t.Fatalf("broadcasts = %d", rec.len())
	}
}
