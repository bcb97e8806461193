// Package sim roda rodadas offline com os geradores e tabelas reais de cada
// jogo e resume o retorno ao jogador (RTP) por seleção.
package sim

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/round-service/outcome"
	"github.com/radieske/fair-round-engine/internal/round-service/payout"
	"github.com/radieske/fair-round-engine/internal/shared/config"
)

var ErrNoRounds = errors.New("sim: rounds must be positive")

// alvos de auto cash-out usados nos jogos de crash
var crashTargets = []string{"auto:1.50", "auto:2.00", "auto:5.00", "auto:10.00"}

type Options struct {
	Rounds int
	// BaseSeed deriva a seed de cada rodada; mesma base, mesmo relatório
	BaseSeed string
	// OnRound é chamado a cada rodada simulada (barra de progresso)
	OnRound func()
}

type SelectionStats struct {
	Selection string  `json:"selection"`
	Bets      int     `json:"bets"`
	Hits      int     `json:"hits"`
	HitRate   float64 `json:"hitRate"`
	RTP       float64 `json:"rtp"`
	StdDev    float64 `json:"stdDev"`
}

type Report struct {
	GameType   string           `json:"gameType"`
	Rounds     int              `json:"rounds"`
	Selections []SelectionStats `json:"selections"`
	Outcomes   map[string]int   `json:"outcomes"`
	// só preenchidos quando a distribuição teórica é conhecida
	ChiSquare *float64 `json:"chiSquare,omitempty"`
	PValue    *float64 `json:"pValue,omitempty"`
}

// Selections lista as seleções aceitas pela tabela do jogo
func Selections(g *engine.Game) []string {
	cands := append([]string{}, g.Generator.Domain()...)
	cands = append(cands, payout.SelectionSpin)
	if g.SupportsCashOut() {
		cands = append(cands, crashTargets...)
	}
	var out []string
	for _, s := range cands {
		if g.Rule.Validate(s) == nil {
			out = append(out, s)
		}
	}
	return out
}

// Run simula opts.Rounds rodadas do jogo com stake unitário em cada seleção
func Run(g *engine.Game, opts Options) (Report, error) {
	if opts.Rounds <= 0 {
		return Report{}, ErrNoRounds
	}
	sels := Selections(g)
	returns := make([][]float64, len(sels))
	for i := range returns {
		returns[i] = make([]float64, 0, opts.Rounds)
	}
	hits := make([]int, len(sels))
	counts := make(map[string]int)

	for i := 0; i < opts.Rounds; i++ {
		seed := outcome.HashSeed(fmt.Sprintf("%s:%s:%d", opts.BaseSeed, g.Type(), i))
		gc := outcome.GameContext{
			GameType:       g.Type(),
			RoundID:        "sim-" + strconv.Itoa(i),
			SequenceNumber: int64(i + 1),
		}
		o, err := g.Generator.Generate(seed, gc)
		if err != nil {
			return Report{}, fmt.Errorf("round %d: %w", i, err)
		}
		counts[o.Value]++
		for j, s := range sels {
			m, err := g.Rule.Multiplier(s, o)
			if err != nil {
				return Report{}, fmt.Errorf("round %d selection %s: %w", i, s, err)
			}
			f := m.InexactFloat64()
			if f > 0 {
				hits[j]++
			}
			returns[j] = append(returns[j], f)
		}
		if opts.OnRound != nil {
			opts.OnRound()
		}
	}

	rep := Report{GameType: g.Type(), Rounds: opts.Rounds, Outcomes: counts}
	for j, s := range sels {
		mean, sd := stat.MeanStdDev(returns[j], nil)
		rep.Selections = append(rep.Selections, SelectionStats{
			Selection: s,
			Bets:      opts.Rounds,
			Hits:      hits[j],
			HitRate:   float64(hits[j]) / float64(opts.Rounds),
			RTP:       mean,
			StdDev:    sd,
		})
	}
	if probs := Expected(g.Config); probs != nil {
		chi, p := goodnessOfFit(counts, probs, opts.Rounds)
		rep.ChiSquare, rep.PValue = &chi, &p
	}
	return rep, nil
}

// Expected devolve a probabilidade teórica de cada valor de resultado,
// ou nil quando o jogo não tem distribuição fechada (crash, cartas).
func Expected(cfg config.GameConfig) map[string]float64 {
	switch cfg.Kind {
	case config.KindWeighted:
		total := 0
		for _, o := range cfg.Outcomes {
			total += o.Weight
		}
		out := make(map[string]float64, len(cfg.Outcomes))
		for _, o := range cfg.Outcomes {
			out[o.Value] += float64(o.Weight) / float64(total)
		}
		return out
	case config.KindRoulette:
		return uniform(0, 36)
	case config.KindDice:
		return uniform(1, 6)
	}
	return nil
}

func uniform(lo, hi int) map[string]float64 {
	out := make(map[string]float64, hi-lo+1)
	for n := lo; n <= hi; n++ {
		out[strconv.Itoa(n)] = 1 / float64(hi-lo+1)
	}
	return out
}

func goodnessOfFit(counts map[string]int, probs map[string]float64, rounds int) (float64, float64) {
	keys := make([]string, 0, len(probs))
	for k := range probs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	obs := make([]float64, len(keys))
	exp := make([]float64, len(keys))
	for i, k := range keys {
		obs[i] = float64(counts[k])
		exp[i] = probs[k] * float64(rounds)
	}
	chi := stat.ChiSquare(obs, exp)
	if len(keys) < 2 {
		return chi, 1
	}
	p := distuv.ChiSquared{K: float64(len(keys) - 1)}.Survival(chi)
	return chi, p
}
