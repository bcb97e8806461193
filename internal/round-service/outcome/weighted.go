package outcome

import (
	"errors"
	"fmt"

	"github.com/radieske/fair-round-engine/internal/shared/config"
)

// Weighted sorteia uma entrada discreta proporcional ao peso.
// Usado em color-prediction e jackpot.
type Weighted struct {
	entries []config.WeightedOutcome
	total   int
}

func newWeighted(entries []config.WeightedOutcome) (Weighted, error) {
	if len(entries) == 0 {
		return Weighted{}, errors.New("weighted: no outcomes")
	}
	w := Weighted{entries: make([]config.WeightedOutcome, 0, len(entries))}
	for _, e := range entries {
		if e.Weight <= 0 {
			return Weighted{}, fmt.Errorf("weighted: outcome %q has weight %d", e.Value, e.Weight)
		}
		if len(e.Tags) == 0 {
			e.Tags = []string{e.Value}
		}
		w.entries = append(w.entries, e)
		w.total += e.Weight
	}
	return w, nil
}

func (w Weighted) Generate(seed string, gc GameContext) (Outcome, error) {
	if seed == "" {
		return Outcome{}, ErrEmptySeed
	}
	n := NewStream(seed, gc).IntN(w.total)
	for _, e := range w.entries {
		if n < e.Weight {
			return Outcome{Value: e.Value, Tags: append([]string(nil), e.Tags...)}, nil
		}
		n -= e.Weight
	}
	// inalcançável: n < total
	return Outcome{}, errors.New("weighted: draw out of range")
}

func (w Weighted) Domain() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, e := range w.entries {
		for _, t := range e.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Probabilities retorna a probabilidade configurada de cada valor
func (w Weighted) Probabilities() map[string]float64 {
	out := make(map[string]float64, len(w.entries))
	for _, e := range w.entries {
		out[e.Value] += float64(e.Weight) / float64(w.total)
	}
	return out
}
