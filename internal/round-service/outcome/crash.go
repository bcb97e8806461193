package outcome

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/shared/config"
)

// OneX é o multiplicador mínimo de qualquer rodada de crash.
var OneX = decimal.NewFromInt(1)

// Crash sorteia o ponto de crash: m = floor((1-edge)/(1-u) * 100) / 100,
// com u uniforme em [0,1), limitado a [1.00, Max].
type Crash struct {
	Edge decimal.Decimal
	Max  decimal.Decimal
	Rate float64
}

func newCrash(c *config.CrashConfig) (Crash, error) {
	if c == nil {
		return Crash{}, errors.New("crash: missing config")
	}
	edge, err := decimal.NewFromString(c.HouseEdge)
	if err != nil {
		return Crash{}, fmt.Errorf("crash: house edge: %w", err)
	}
	if edge.IsNegative() || edge.GreaterThanOrEqual(OneX) {
		return Crash{}, fmt.Errorf("crash: house edge %s out of [0,1)", edge)
	}
	maxM, err := decimal.NewFromString(c.MaxMultiplier)
	if err != nil {
		return Crash{}, fmt.Errorf("crash: max multiplier: %w", err)
	}
	if maxM.LessThanOrEqual(OneX) {
		return Crash{}, fmt.Errorf("crash: max multiplier %s must exceed 1", maxM)
	}
	if c.FlightRate <= 0 {
		return Crash{}, errors.New("crash: flight rate must be positive")
	}
	return Crash{Edge: edge, Max: maxM, Rate: c.FlightRate}, nil
}

func (c Crash) Generate(seed string, gc GameContext) (Outcome, error) {
	if seed == "" {
		return Outcome{}, ErrEmptySeed
	}
	u := NewStream(seed, gc).Float64()
	raw := (1 - c.Edge.InexactFloat64()) / (1 - u)

	m := decimal.NewFromFloat(raw).Truncate(2)
	if m.LessThan(OneX) {
		m = OneX
	}
	if m.GreaterThan(c.Max) {
		m = c.Max
	}
	return Outcome{Value: m.StringFixed(2), Tags: []string{"crash"}, Multiplier: &m}, nil
}

func (Crash) Domain() []string { return []string{"crash"} }

// FlightMultiplier é o multiplicador exibido após elapsed de voo:
// e^(rate*t), truncado em 2 casas e limitado ao máximo.
func (c Crash) FlightMultiplier(elapsed time.Duration) decimal.Decimal {
	if elapsed <= 0 {
		return OneX
	}
	m := decimal.NewFromFloat(math.Exp(c.Rate * elapsed.Seconds())).Truncate(2)
	if m.GreaterThan(c.Max) {
		return c.Max
	}
	if m.LessThan(OneX) {
		return OneX
	}
	return m
}

// FlightDuration é o tempo de voo até atingir o multiplicador m
func (c Crash) FlightDuration(m decimal.Decimal) time.Duration {
	if m.LessThanOrEqual(OneX) {
		return 0
	}
	secs := math.Log(m.InexactFloat64()) / c.Rate
	// arredonda para cima para o relógio nunca ficar atrás do crash
	return time.Duration(math.Ceil(secs*1000)) * time.Millisecond
}
