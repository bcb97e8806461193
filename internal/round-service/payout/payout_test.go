package payout_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/round-service/payout"
	"github.com/radieske/fair-round-engine/internal/shared/config"
)

func rule(t *testing.T, g config.GameConfig) payout.Rule {
	t.Helper()
	if g.PayoutMode == "" {
		g.PayoutMode = config.PayoutTag
	}
	gen, err := outcome.New(g)
	if err != nil {
		t.Fatalf("generator: %v", err)
	}
	r, err := payout.New(g, gen)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	return r
}

func TestAmountTruncates(t *testing.T) {
	cases := []struct {
		stake int64
		mult  string
		want  int64
	}{
		{100, "2", 200},
		{50, "2.00", 100},
		{33, "1.98", 65}, // 65.34
		{10, "0", 0},
		{7, "36", 252},
	}
	for _, c := range cases {
		if got := payout.Amount(c.stake, decimal.RequireFromString(c.mult)); got != c.want {
			t.Errorf("Amount(%d, %s) = %d, want %d", c.stake, c.mult, got, c.want)
		}
	}
}

func TestRouletteTable(t *testing.T) {
	r := rule(t, config.GameConfig{Type: "roulette", Kind: config.KindRoulette, Payouts: map[string]string{
		"number": "36", "red": "2", "black": "2", "dozen": "3",
	}})
	o := outcome.Outcome{Value: "17", Tags: outcome.RouletteTags(17)}

	cases := []struct {
		sel  string
		want string
	}{
		{"number:17", "36"},
		{"number:18", "0"},
		{"black", "2"},
		{"red", "0"},
		{"dozen:2", "3"},
	}
	for _, c := range cases {
		if err := r.Validate(c.sel); err != nil {
			t.Fatalf("validate %s: %v", c.sel, err)
		}
		m, err := r.Multiplier(c.sel, o)
		if err != nil {
			t.Fatalf("multiplier %s: %v", c.sel, err)
		}
		if !m.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s: multiplier %s, want %s", c.sel, m, c.want)
		}
	}

	for _, bad := range []string{"green", "odd", "number:37", "purple", ""} {
		if err := r.Validate(bad); !errors.Is(err, payout.ErrInvalidSelection) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidSelection", bad, err)
		}
	}
}

func TestColorPredictionScenario(t *testing.T) {
	r := rule(t, config.GameConfig{Type: "color", Kind: config.KindWeighted,
		Outcomes: []config.WeightedOutcome{{Value: "red", Weight: 45}, {Value: "green", Weight: 45}, {Value: "violet", Weight: 10}},
		Payouts:  map[string]string{"red": "2", "green": "2", "violet": "4.5"},
	})
	m, err := r.Multiplier("red", outcome.Outcome{Value: "red", Tags: []string{"red"}})
	if err != nil {
		t.Fatalf("multiplier: %v", err)
	}
	if got := payout.Amount(100, m); got != 200 {
		t.Fatalf("payout %d, want 200", got)
	}
}

func TestTierTable(t *testing.T) {
	r := rule(t, config.GameConfig{Type: "jackpot", Kind: config.KindWeighted, PayoutMode: config.PayoutTier,
		Outcomes: []config.WeightedOutcome{{Value: "miss", Weight: 9, Tags: []string{"tier:miss"}}, {Value: "x5", Weight: 1, Tags: []string{"tier:x5"}}},
		Payouts:  map[string]string{"tier:x5": "5"},
	})
	if err := r.Validate("tier:x5"); err == nil {
		t.Fatal("only spin is a valid jackpot selection")
	}
	win, _ := r.Multiplier("spin", outcome.Outcome{Value: "x5", Tags: []string{"tier:x5"}})
	miss, _ := r.Multiplier("spin", outcome.Outcome{Value: "miss", Tags: []string{"tier:miss"}})
	if !win.Equal(decimal.NewFromInt(5)) || !miss.IsZero() {
		t.Fatalf("win=%s miss=%s", win, miss)
	}
}

func TestCrashRule(t *testing.T) {
	r := rule(t, config.GameConfig{Type: "aviator", Kind: config.KindCrash, PayoutMode: config.PayoutCrash,
		Crash: &config.CrashConfig{HouseEdge: "0.03", MaxMultiplier: "100", FlightRate: 0.1},
	})
	crash := decimal.RequireFromString("3.40")
	o := outcome.Outcome{Value: "3.40", Tags: []string{"crash"}, Multiplier: &crash}

	cases := []struct {
		sel  string
		want string
	}{
		{"manual", "0"},
		{"auto:2.00", "2"},
		{"auto:3.39", "3.39"},
		{"auto:3.40", "0"},
		{"auto:3.41", "0"},
	}
	for _, c := range cases {
		m, err := r.Multiplier(c.sel, o)
		if err != nil {
			t.Fatalf("%s: %v", c.sel, err)
		}
		if !m.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("%s: multiplier %s, want %s", c.sel, m, c.want)
		}
	}

	for _, bad := range []string{"auto:1.00", "auto:100.01", "auto:2.555", "auto:x", "red"} {
		if err := r.Validate(bad); !errors.Is(err, payout.ErrInvalidSelection) {
			t.Errorf("Validate(%q) = %v, want ErrInvalidSelection", bad, err)
		}
	}
}
