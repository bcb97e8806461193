package engine

import (
	"fmt"

	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/round-service/payout"
	"github.com/radieske/fair-round-engine/internal/shared/config"
)

// Game junta a configuração de um tipo de jogo com seu gerador e sua tabela.
type Game struct {
	Config    config.GameConfig
	Generator outcome.Generator
	Rule      payout.Rule
	// Flight só existe em jogos de crash (relógio de voo e teto)
	Flight *outcome.Crash
}

func NewGame(cfg config.GameConfig) (*Game, error) {
	gen, err := outcome.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", cfg.Type, err)
	}
	rule, err := payout.New(cfg, gen)
	if err != nil {
		return nil, err
	}
	g := &Game{Config: cfg, Generator: gen, Rule: rule}
	if c, ok := gen.(outcome.Crash); ok {
		g.Flight = &c
	}
	return g, nil
}

// NewGames monta todos os jogos configurados
func NewGames(cfgs []config.GameConfig) ([]*Game, error) {
	out := make([]*Game, 0, len(cfgs))
	for _, c := range cfgs {
		g, err := NewGame(c)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (g *Game) Type() string { return g.Config.Type }

func (g *Game) SupportsCashOut() bool { return g.Flight != nil }
