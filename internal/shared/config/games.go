package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tipos de gerador suportados
const (
	KindCrash      = "crash"
	KindWeighted   = "weighted"
	KindRoulette   = "roulette"
	KindAndarBahar = "andar_bahar"
	KindTeenPatti  = "teen_patti"
	KindDice       = "dice"
)

// Modos de pagamento
const (
	PayoutTag   = "tag"   // seleção ganha se estiver nas tags do resultado
	PayoutTier  = "tier"  // multiplicador vem do tier sorteado (jackpot)
	PayoutCrash = "crash" // auto cash-out contra o ponto de crash
)

// GameConfig descreve um tipo de jogo: gerador, limites e tabela de pagamento.
// Multiplicadores ficam como string decimal para não perder precisão.
type GameConfig struct {
	Type           string            `yaml:"type"`
	Kind           string            `yaml:"kind"`
	PayoutMode     string            `yaml:"payoutMode"`
	MinBet         int64             `yaml:"minBet"`
	MaxBet         int64             `yaml:"maxBet"`
	BettingWindow  time.Duration     `yaml:"bettingWindow"`
	OneBetPerRound bool              `yaml:"oneBetPerRound"`
	AutoRun        bool              `yaml:"autoRun"`
	Payouts        map[string]string `yaml:"payouts"`
	Outcomes       []WeightedOutcome `yaml:"outcomes,omitempty"`
	Crash          *CrashConfig      `yaml:"crash,omitempty"`
	FirstSide      string            `yaml:"firstSide,omitempty"` // andar_bahar
}

// WeightedOutcome é uma entrada de sorteio discreto com peso inteiro.
type WeightedOutcome struct {
	Value  string   `yaml:"value"`
	Weight int      `yaml:"weight"`
	Tags   []string `yaml:"tags"`
}

// CrashConfig parametriza o multiplicador de crash e a curva de voo.
type CrashConfig struct {
	HouseEdge     string  `yaml:"houseEdge"`
	MaxMultiplier string  `yaml:"maxMultiplier"`
	FlightRate    float64 `yaml:"flightRate"` // m(t) = e^(rate*t), t em segundos
}

type gamesFile struct {
	Games []GameConfig `yaml:"games"`
}

// LoadGames lê o arquivo YAML de jogos
func LoadGames(path string) ([]GameConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read games file: %w", err)
	}
	return ParseGames(b)
}

// ParseGames decodifica e valida a configuração de jogos
func ParseGames(data []byte) ([]GameConfig, error) {
	var f gamesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse games: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Games))
	for i := range f.Games {
		g := &f.Games[i]
		if g.Type == "" {
			return nil, fmt.Errorf("game #%d: type required", i)
		}
		if _, dup := seen[g.Type]; dup {
			return nil, fmt.Errorf("game %s: duplicated type", g.Type)
		}
		seen[g.Type] = struct{}{}
		if g.MinBet <= 0 || g.MaxBet < g.MinBet {
			return nil, fmt.Errorf("game %s: invalid bet limits [%d,%d]", g.Type, g.MinBet, g.MaxBet)
		}
		if g.BettingWindow <= 0 {
			return nil, fmt.Errorf("game %s: bettingWindow must be positive", g.Type)
		}
		if g.PayoutMode == "" {
			g.PayoutMode = PayoutTag
			if g.Kind == KindCrash {
				g.PayoutMode = PayoutCrash
			}
		}
		switch g.Kind {
		case KindCrash:
			if g.Crash == nil {
				return nil, fmt.Errorf("game %s: crash section required", g.Type)
			}
		case KindWeighted:
			if len(g.Outcomes) == 0 {
				return nil, fmt.Errorf("game %s: outcomes required", g.Type)
			}
		case KindRoulette, KindAndarBahar, KindTeenPatti, KindDice:
		default:
			return nil, fmt.Errorf("game %s: unknown kind %q", g.Type, g.Kind)
		}
	}
	return f.Games, nil
}
