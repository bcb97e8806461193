package payout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
)

// Seleções do crash: "manual" (só ganha via cash-out) ou "auto:<mult>".
const (
	SelectionManual = "manual"
	autoPrefix      = "auto:"
)

var minAuto = decimal.RequireFromString("1.01")

// CrashRule liquida o auto cash-out contra o ponto de crash.
// O ponto de crash já é perda: o alvo precisa ficar estritamente abaixo dele,
// a mesma regra do cash-out manual. Apostas manuais que não saíram a tempo perdem.
type CrashRule struct {
	Max decimal.Decimal
}

// ParseAuto extrai o alvo de "auto:2.50"
func ParseAuto(selection string) (decimal.Decimal, bool) {
	raw, ok := strings.CutPrefix(selection, autoPrefix)
	if !ok {
		return decimal.Decimal{}, false
	}
	m, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return m, true
}

func (c CrashRule) Validate(selection string) error {
	if selection == SelectionManual {
		return nil
	}
	m, ok := ParseAuto(selection)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, selection)
	}
	if m.LessThan(minAuto) || m.GreaterThan(c.Max) || !m.Equal(m.Truncate(2)) {
		return fmt.Errorf("%w: auto cash-out %s out of range", ErrInvalidSelection, m)
	}
	return nil
}

func (c CrashRule) Multiplier(selection string, o outcome.Outcome) (decimal.Decimal, error) {
	if err := c.Validate(selection); err != nil {
		return decimal.Zero, err
	}
	if o.Multiplier == nil {
		return decimal.Zero, fmt.Errorf("%w: outcome has no crash point", ErrInvalidSelection)
	}
	target, ok := ParseAuto(selection)
	if !ok {
		return decimal.Zero, nil // manual
	}
	if target.LessThan(*o.Multiplier) {
		return target, nil
	}
	return decimal.Zero, nil
}
