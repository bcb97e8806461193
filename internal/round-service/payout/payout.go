// Package payout calcula o pagamento de uma aposta a partir da seleção e do
// resultado da rodada. As tabelas vêm de configuração; aqui só existe a regra.
package payout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/shared/config"
)

var ErrInvalidSelection = errors.New("payout: invalid selection")

// Rule é a tabela de pagamento de um jogo. Funções puras, sem efeito colateral.
type Rule interface {
	// Validate rejeita seleções fora do domínio do jogo
	Validate(selection string) error
	// Multiplier retorna o multiplicador total (inclui o stake); 0 = perdeu
	Multiplier(selection string, o outcome.Outcome) (decimal.Decimal, error)
}

// Amount aplica o multiplicador ao valor apostado, truncando para inteiro
func Amount(stake int64, mult decimal.Decimal) int64 {
	if mult.Sign() <= 0 {
		return 0
	}
	return decimal.NewFromInt(stake).Mul(mult).Floor().IntPart()
}

// New monta a regra de pagamento do jogo
func New(g config.GameConfig, gen outcome.Generator) (Rule, error) {
	switch g.PayoutMode {
	case config.PayoutCrash:
		c, ok := gen.(outcome.Crash)
		if !ok {
			return nil, fmt.Errorf("game %s: crash payout needs crash generator", g.Type)
		}
		return CrashRule{Max: c.Max}, nil
	case config.PayoutTier:
		table, err := parseTable(g.Payouts)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", g.Type, err)
		}
		return TierTable{table: table}, nil
	case config.PayoutTag, "":
		table, err := parseTable(g.Payouts)
		if err != nil {
			return nil, fmt.Errorf("game %s: %w", g.Type, err)
		}
		return NewTagTable(table, gen.Domain()), nil
	}
	return nil, fmt.Errorf("game %s: unknown payout mode %q", g.Type, g.PayoutMode)
}

func parseTable(raw map[string]string) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty payout table")
	}
	out := make(map[string]decimal.Decimal, len(raw))
	for k, v := range raw {
		m, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("payout %q: %w", k, err)
		}
		if m.Sign() <= 0 {
			return nil, fmt.Errorf("payout %q must be positive", k)
		}
		out[k] = m
	}
	return out, nil
}

// TagTable paga quando a seleção está entre as tags do resultado.
// A chave da tabela é a seleção exata ou o seu tipo (prefixo antes de ':').
type TagTable struct {
	table  map[string]decimal.Decimal
	domain map[string]bool
}

func NewTagTable(table map[string]decimal.Decimal, domain []string) TagTable {
	d := make(map[string]bool, len(domain))
	for _, s := range domain {
		d[s] = true
	}
	return TagTable{table: table, domain: d}
}

func (t TagTable) lookup(selection string) (decimal.Decimal, bool) {
	if m, ok := t.table[selection]; ok {
		return m, true
	}
	if kind, _, found := strings.Cut(selection, ":"); found {
		m, ok := t.table[kind]
		return m, ok
	}
	return decimal.Decimal{}, false
}

func (t TagTable) Validate(selection string) error {
	if !t.domain[selection] {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, selection)
	}
	if _, ok := t.lookup(selection); !ok {
		return fmt.Errorf("%w: %q is not offered", ErrInvalidSelection, selection)
	}
	return nil
}

func (t TagTable) Multiplier(selection string, o outcome.Outcome) (decimal.Decimal, error) {
	m, ok := t.lookup(selection)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidSelection, selection)
	}
	if !o.Has(selection) {
		return decimal.Zero, nil
	}
	return m, nil
}

// TierTable paga pelo tier sorteado; a única seleção é "spin".
type TierTable struct {
	table map[string]decimal.Decimal
}

const SelectionSpin = "spin"

func (TierTable) Validate(selection string) error {
	if selection != SelectionSpin {
		return fmt.Errorf("%w: %q", ErrInvalidSelection, selection)
	}
	return nil
}

func (t TierTable) Multiplier(selection string, o outcome.Outcome) (decimal.Decimal, error) {
	if err := t.Validate(selection); err != nil {
		return decimal.Zero, err
	}
	for _, tag := range o.Tags {
		if m, ok := t.table[tag]; ok {
			return m, nil
		}
	}
	return decimal.Zero, nil
}
