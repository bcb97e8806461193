// Package outcome implementa os geradores de resultado por tipo de jogo.
//
// Todo gerador é uma função pura de (seed, GameContext): mesma entrada, mesmo
// resultado. Isso permite refazer resolveRound com segurança e auditar rodadas
// depois que a seed é revelada.
package outcome

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/shared/config"
)

var (
	ErrEmptySeed   = errors.New("outcome: empty seed")
	ErrUnknownKind = errors.New("outcome: unknown game kind")
)

// GameContext carrega os dados da rodada que entram no sorteio.
type GameContext struct {
	GameType       string
	RoundID        string
	SequenceNumber int64
}

// Outcome é o resultado de uma rodada.
// Tags é o conjunto de seleções vencedoras (ex: "red", "number:17", "hand:a").
type Outcome struct {
	Value      string              `json:"value"`
	Tags       []string            `json:"tags"`
	Multiplier *decimal.Decimal    `json:"multiplier,omitempty"`
	Cards      map[string][]string `json:"cards,omitempty"`
}

// Has indica se a tag faz parte do resultado
func (o Outcome) Has(tag string) bool { return slices.Contains(o.Tags, tag) }

// Generator produz o resultado de uma rodada a partir da seed.
type Generator interface {
	Generate(seed string, gc GameContext) (Outcome, error)
	// Domain lista todas as tags que o gerador pode emitir.
	Domain() []string
}

// New monta o gerador correspondente ao kind configurado
func New(g config.GameConfig) (Generator, error) {
	switch g.Kind {
	case config.KindCrash:
		return newCrash(g.Crash)
	case config.KindWeighted:
		return newWeighted(g.Outcomes)
	case config.KindRoulette:
		return Roulette{}, nil
	case config.KindAndarBahar:
		return newAndarBahar(g.FirstSide)
	case config.KindTeenPatti:
		return TeenPatti{}, nil
	case config.KindDice:
		return Dice{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, g.Kind)
}
