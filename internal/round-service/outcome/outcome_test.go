package outcome_test

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/shared/config"
)

func gameConfigs() []config.GameConfig {
	return []config.GameConfig{
		{Type: "aviator", Kind: config.KindCrash, Crash: &config.CrashConfig{HouseEdge: "0.03", MaxMultiplier: "1000", FlightRate: 0.12}},
		{Type: "color", Kind: config.KindWeighted, Outcomes: []config.WeightedOutcome{
			{Value: "red", Weight: 45}, {Value: "green", Weight: 45}, {Value: "violet", Weight: 10},
		}},
		{Type: "roulette", Kind: config.KindRoulette},
		{Type: "andar-bahar", Kind: config.KindAndarBahar},
		{Type: "teen-patti", Kind: config.KindTeenPatti},
		{Type: "ludo", Kind: config.KindDice},
	}
}

func mustGenerator(t *testing.T, g config.GameConfig) outcome.Generator {
	t.Helper()
	gen, err := outcome.New(g)
	if err != nil {
		t.Fatalf("new generator %s: %v", g.Type, err)
	}
	return gen
}

func TestGenerateIsDeterministic(t *testing.T) {
	for _, g := range gameConfigs() {
		t.Run(g.Type, func(t *testing.T) {
			gen := mustGenerator(t, g)
			gc := outcome.GameContext{GameType: g.Type, RoundID: "r-1", SequenceNumber: 42}

			first, err := gen.Generate("S1", gc)
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			second, err := gen.Generate("S1", gc)
			if err != nil {
				t.Fatalf("generate again: %v", err)
			}
			if first.Value != second.Value || !reflect.DeepEqual(first.Tags, second.Tags) || !reflect.DeepEqual(first.Cards, second.Cards) {
				t.Fatalf("outcome changed between calls: %+v vs %+v", first, second)
			}
			if first.Multiplier != nil && !first.Multiplier.Equal(*second.Multiplier) {
				t.Fatalf("multiplier changed: %s vs %s", first.Multiplier, second.Multiplier)
			}
		})
	}
}

func TestGenerateVariesWithSeed(t *testing.T) {
	for _, g := range gameConfigs() {
		t.Run(g.Type, func(t *testing.T) {
			gen := mustGenerator(t, g)
			seen := make(map[string]struct{})
			for i := 0; i < 200; i++ {
				o, err := gen.Generate(fmt.Sprintf("seed-%d", i), outcome.GameContext{GameType: g.Type, SequenceNumber: 1})
				if err != nil {
					t.Fatalf("generate: %v", err)
				}
				seen[o.Value] = struct{}{}
			}
			if len(seen) < 2 {
				t.Fatalf("expected varied outcomes, got %v", seen)
			}
		})
	}
}

func TestGenerateRejectsEmptySeed(t *testing.T) {
	for _, g := range gameConfigs() {
		gen := mustGenerator(t, g)
		if _, err := gen.Generate("", outcome.GameContext{GameType: g.Type}); err == nil {
			t.Fatalf("%s: expected error for empty seed", g.Type)
		}
	}
}

func TestOutcomeTagsInsideDomain(t *testing.T) {
	for _, g := range gameConfigs() {
		gen := mustGenerator(t, g)
		domain := make(map[string]bool)
		for _, d := range gen.Domain() {
			domain[d] = true
		}
		for i := 0; i < 300; i++ {
			o, err := gen.Generate(fmt.Sprintf("d-%d", i), outcome.GameContext{GameType: g.Type, SequenceNumber: int64(i)})
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			for _, tag := range o.Tags {
				if !domain[tag] {
					t.Fatalf("%s: tag %q outside domain", g.Type, tag)
				}
			}
		}
	}
}

func TestRouletteTags(t *testing.T) {
	cases := []struct {
		n    int
		want []string
	}{
		{0, []string{"number:0", "green"}},
		{1, []string{"number:1", "red", "odd", "low", "dozen:1", "column:1"}},
		{17, []string{"number:17", "black", "odd", "low", "dozen:2", "column:2"}},
		{36, []string{"number:36", "red", "even", "high", "dozen:3", "column:3"}},
	}
	for _, c := range cases {
		if got := outcome.RouletteTags(c.n); !reflect.DeepEqual(got, c.want) {
			t.Errorf("RouletteTags(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestEvaluateHand(t *testing.T) {
	c := func(rank int, suit byte) outcome.Card { return outcome.Card{Rank: rank, Suit: suit} }
	cases := []struct {
		name string
		hand [3]outcome.Card
		want int
	}{
		{"trail", [3]outcome.Card{c(9, 'S'), c(9, 'H'), c(9, 'D')}, outcome.Trail},
		{"pure sequence", [3]outcome.Card{c(5, 'S'), c(6, 'S'), c(7, 'S')}, outcome.PureSequence},
		{"sequence a23", [3]outcome.Card{c(14, 'S'), c(2, 'H'), c(3, 'S')}, outcome.Sequence},
		{"color", [3]outcome.Card{c(2, 'C'), c(9, 'C'), c(13, 'C')}, outcome.Color},
		{"pair", [3]outcome.Card{c(4, 'C'), c(4, 'D'), c(13, 'C')}, outcome.Pair},
		{"high card", [3]outcome.Card{c(2, 'C'), c(9, 'D'), c(13, 'C')}, outcome.HighCard},
	}
	for _, tc := range cases {
		if got := outcome.EvaluateHand(tc.hand).Category; got != tc.want {
			t.Errorf("%s: category %d, want %d", tc.name, got, tc.want)
		}
	}

	akq := outcome.EvaluateHand([3]outcome.Card{c(14, 'S'), c(13, 'H'), c(12, 'S')})
	a23 := outcome.EvaluateHand([3]outcome.Card{c(14, 'S'), c(2, 'H'), c(3, 'S')})
	kqj := outcome.EvaluateHand([3]outcome.Card{c(13, 'S'), c(12, 'H'), c(11, 'S')})
	if akq.Compare(a23) <= 0 || a23.Compare(kqj) <= 0 {
		t.Fatalf("sequence order broken: akq=%v a23=%v kqj=%v", akq, a23, kqj)
	}

	pairKing := outcome.EvaluateHand([3]outcome.Card{c(13, 'S'), c(13, 'H'), c(2, 'S')})
	pairQueen := outcome.EvaluateHand([3]outcome.Card{c(12, 'S'), c(12, 'H'), c(14, 'S')})
	if pairKing.Compare(pairQueen) <= 0 {
		t.Fatalf("higher pair must win")
	}
}

func TestCrashBounds(t *testing.T) {
	gen := mustGenerator(t, gameConfigs()[0]).(outcome.Crash)
	maxM := decimal.NewFromInt(1000)
	for i := 0; i < 2000; i++ {
		o, err := gen.Generate(fmt.Sprintf("c-%d", i), outcome.GameContext{GameType: "aviator", SequenceNumber: int64(i)})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		m := *o.Multiplier
		if m.LessThan(outcome.OneX) || m.GreaterThan(maxM) {
			t.Fatalf("multiplier %s out of bounds", m)
		}
		if !m.Equal(m.Truncate(2)) {
			t.Fatalf("multiplier %s has more than 2 decimals", m)
		}
	}
}

func TestCrashFlightClock(t *testing.T) {
	gen := mustGenerator(t, gameConfigs()[0]).(outcome.Crash)
	if !gen.FlightMultiplier(0).Equal(outcome.OneX) {
		t.Fatalf("flight must start at 1.00")
	}
	target := decimal.RequireFromString("3.40")
	d := gen.FlightDuration(target)
	if got := gen.FlightMultiplier(d); got.LessThan(target) {
		t.Fatalf("flight at %s reached %s, want >= %s", d, got, target)
	}
}

// chi-quadrado contra os pesos configurados; limiar p = 0.001
func assertDistribution(t *testing.T, observed, expected []float64) {
	t.Helper()
	chi := stat.ChiSquare(observed, expected)
	crit := distuv.ChiSquared{K: float64(len(observed) - 1)}.Quantile(0.999)
	if chi > crit {
		t.Fatalf("chi-square %.2f above critical %.2f (obs=%v exp=%v)", chi, crit, observed, expected)
	}
}

func TestColorPredictionDistribution(t *testing.T) {
	g := gameConfigs()[1]
	gen := mustGenerator(t, g)
	const n = 20000
	idx := map[string]int{"red": 0, "green": 1, "violet": 2}
	obs := make([]float64, 3)
	for i := 0; i < n; i++ {
		o, err := gen.Generate(fmt.Sprintf("color-%d", i), outcome.GameContext{GameType: g.Type, SequenceNumber: int64(i)})
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		obs[idx[o.Value]]++
	}
	assertDistribution(t, obs, []float64{0.45 * n, 0.45 * n, 0.10 * n})
}

func TestDiceDistribution(t *testing.T) {
	gen := outcome.Dice{}
	const n = 12000
	obs := make([]float64, 6)
	exp := make([]float64, 6)
	for i := range exp {
		exp[i] = n / 6.0
	}
	for i := 0; i < n; i++ {
		o, _ := gen.Generate(fmt.Sprintf("dice-%d", i), outcome.GameContext{GameType: "ludo", SequenceNumber: int64(i)})
		var face int
		fmt.Sscanf(o.Value, "%d", &face)
		obs[face-1]++
	}
	assertDistribution(t, obs, exp)
}

func TestRouletteDistribution(t *testing.T) {
	gen := outcome.Roulette{}
	const n = 37000
	obs := make([]float64, 37)
	exp := make([]float64, 37)
	for i := range exp {
		exp[i] = n / 37.0
	}
	for i := 0; i < n; i++ {
		o, _ := gen.Generate(fmt.Sprintf("wheel-%d", i), outcome.GameContext{GameType: "roulette", SequenceNumber: int64(i)})
		var num int
		fmt.Sscanf(o.Value, "%d", &num)
		obs[num]++
	}
	assertDistribution(t, obs, exp)
}

func TestCrashSurvivalMatchesEdge(t *testing.T) {
	gen := mustGenerator(t, gameConfigs()[0])
	const n = 20000
	two := decimal.NewFromInt(2)
	var above float64
	for i := 0; i < n; i++ {
		o, _ := gen.Generate(fmt.Sprintf("fly-%d", i), outcome.GameContext{GameType: "aviator", SequenceNumber: int64(i)})
		if o.Multiplier.GreaterThanOrEqual(two) {
			above++
		}
	}
	// P(m >= 2) = (1-edge)/2 = 0.485
	if got := above / n; math.Abs(got-0.485) > 0.02 {
		t.Fatalf("P(m>=2) = %.4f, want ~0.485", got)
	}
}

func TestSeedCommitment(t *testing.T) {
	seed, err := outcome.NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if len(seed) != 64 {
		t.Fatalf("seed length %d, want 64 hex chars", len(seed))
	}
	hash := outcome.HashSeed(seed)
	if !outcome.VerifySeed(seed, hash) {
		t.Fatal("seed does not verify against its own hash")
	}
	if outcome.VerifySeed(seed+"x", hash) {
		t.Fatal("tampered seed verified")
	}
}
