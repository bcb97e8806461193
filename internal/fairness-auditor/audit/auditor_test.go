package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/fairness-auditor/dto"
	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

type sink struct {
	got   []dto.Violation
	fails int
}

func (s *sink) Report(_ context.Context, v dto.Violation) error {
	if s.fails > 0 {
		s.fails--
		return errors.New("kafka unavailable")
	}
	s.got = append(s.got, v)
	return nil
}

func diceGenerator(t *testing.T) outcome.Generator {
	t.Helper()
	gen, err := outcome.New(config.GameConfig{Type: "ludo-dice", Kind: config.KindDice})
	if err != nil {
		t.Fatal(err)
	}
	return gen
}

// settled monta o evento exatamente como o round-service publicaria
func settled(t *testing.T, gen outcome.Generator, seed string) events.RoundEvent {
	t.Helper()
	gc := outcome.GameContext{GameType: "ludo-dice", RoundID: "r-42", SequenceNumber: 42}
	o, err := gen.Generate(seed, gc)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := json.Marshal(o)
	return events.RoundEvent{
		Type:           events.TypeRoundSettled,
		RoundID:        gc.RoundID,
		GameType:       gc.GameType,
		SequenceNumber: gc.SequenceNumber,
		Status:         "SETTLED",
		Outcome:        b,
		Seed:           seed,
		SeedHash:       outcome.HashSeed(seed),
	}
}

func newAuditor(t *testing.T, s Sink) *Auditor {
	a := New(zap.NewNop(), map[string]outcome.Generator{"ludo-dice": diceGenerator(t)}, s)
	a.backoff = time.Millisecond
	return a
}

func TestVerify(t *testing.T) {
	a := newAuditor(t, &sink{})
	gen := diceGenerator(t)

	if v := a.Verify(settled(t, gen, "seed-1")); v != nil {
		t.Fatalf("honest round flagged: %+v", v)
	}

	locked := settled(t, gen, "seed-1")
	locked.Type = events.TypeRoundLocked
	if v := a.Verify(locked); v != nil {
		t.Fatalf("non-settled event audited: %+v", v)
	}

	unknown := settled(t, gen, "seed-1")
	unknown.GameType = "poker"
	if v := a.Verify(unknown); v != nil {
		t.Fatalf("unknown game flagged: %+v", v)
	}

	badSeed := settled(t, gen, "seed-1")
	badSeed.Seed = "seed-2"
	if v := a.Verify(badSeed); v == nil || v.Reason != dto.ReasonSeedMismatch {
		t.Fatalf("seed mismatch = %+v", v)
	}

	// resultado anunciado de outra seed válida
	other := settled(t, gen, "seed-1")
	var o outcome.Outcome
	_ = json.Unmarshal(other.Outcome, &o)
	o.Value = "tampered"
	other.Outcome, _ = json.Marshal(o)
	if v := a.Verify(other); v == nil || v.Reason != dto.ReasonOutcomeMismatch {
		t.Fatalf("outcome mismatch = %+v", v)
	}

	garbage := settled(t, gen, "seed-1")
	garbage.Outcome = nil
	if v := a.Verify(garbage); v == nil || v.Reason != dto.ReasonMalformed {
		t.Fatalf("malformed = %+v", v)
	}
}

func TestHandleRetriesSink(t *testing.T) {
	s := &sink{fails: 2}
	a := newAuditor(t, s)
	ev := settled(t, diceGenerator(t), "seed-9")
	ev.SeedHash = outcome.HashSeed("other")
	b, _ := json.Marshal(ev)

	if err := a.Handle(context.Background(), b); err != nil {
		t.Fatal(err)
	}
	if len(s.got) != 1 || s.got[0].RoundID != "r-42" {
		t.Fatalf("reported = %+v", s.got)
	}

	s.fails = dlqRetries
	if err := a.Handle(context.Background(), b); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestHandleIgnoresGarbage(t *testing.T) {
	s := &sink{}
	if err := newAuditor(t, s).Handle(context.Background(), []byte("nope")); err != nil || len(s.got) != 0 {
		t.Fatalf("err=%v reported=%d", err, len(s.got))
	}
}
