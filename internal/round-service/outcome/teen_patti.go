package outcome

import "slices"

// Categorias de mão, da menor para a maior.
const (
	HighCard = iota + 1
	Pair
	Color
	Sequence
	PureSequence
	Trail
)

var categoryNames = map[int]string{
	HighCard:     "high_card",
	Pair:         "pair",
	Color:        "color",
	Sequence:     "sequence",
	PureSequence: "pure_sequence",
	Trail:        "trail",
}

// Hand é a avaliação de uma mão de três cartas.
type Hand struct {
	Category int
	Key      []int // desempate, comparado em ordem
}

// EvaluateHand classifica três cartas. A-K-Q é a maior sequência e A-2-3 a segunda.
func EvaluateHand(cs [3]Card) Hand {
	r := []int{cs[0].Rank, cs[1].Rank, cs[2].Rank}
	slices.Sort(r)
	slices.Reverse(r) // desc
	flush := cs[0].Suit == cs[1].Suit && cs[1].Suit == cs[2].Suit

	if r[0] == r[1] && r[1] == r[2] {
		return Hand{Category: Trail, Key: []int{r[0]}}
	}
	if high, ok := sequenceHigh(r); ok {
		if flush {
			return Hand{Category: PureSequence, Key: []int{high}}
		}
		return Hand{Category: Sequence, Key: []int{high}}
	}
	if flush {
		return Hand{Category: Color, Key: r}
	}
	switch {
	case r[0] == r[1]:
		return Hand{Category: Pair, Key: []int{r[0], r[2]}}
	case r[1] == r[2]:
		return Hand{Category: Pair, Key: []int{r[1], r[0]}}
	}
	return Hand{Category: HighCard, Key: r}
}

func sequenceHigh(desc []int) (int, bool) {
	switch {
	case desc[0] == 14 && desc[1] == 13 && desc[2] == 12:
		return 16, true
	case desc[0] == 14 && desc[1] == 3 && desc[2] == 2:
		return 15, true
	case desc[0]-desc[1] == 1 && desc[1]-desc[2] == 1:
		return desc[0], true
	}
	return 0, false
}

// Compare retorna >0 se h vence o, <0 se perde e 0 em empate
func (h Hand) Compare(o Hand) int {
	if h.Category != o.Category {
		return h.Category - o.Category
	}
	return slices.Compare(h.Key, o.Key)
}

// TeenPatti distribui duas mãos (A e B) alternadas de um baralho embaralhado.
type TeenPatti struct{}

func (TeenPatti) Generate(seed string, gc GameContext) (Outcome, error) {
	if seed == "" {
		return Outcome{}, ErrEmptySeed
	}
	deck := shuffledDeck(NewStream(seed, gc))
	a := [3]Card{deck[0], deck[2], deck[4]}
	b := [3]Card{deck[1], deck[3], deck[5]}
	ha, hb := EvaluateHand(a), EvaluateHand(b)

	var value string
	var winner Hand
	switch c := ha.Compare(hb); {
	case c > 0:
		value, winner = "hand:a", ha
	case c < 0:
		value, winner = "hand:b", hb
	default:
		value, winner = "tie", ha
	}
	return Outcome{
		Value: value,
		Tags:  []string{value, "rank:" + categoryNames[winner.Category]},
		Cards: map[string][]string{
			"a": cardStrings(a[:]),
			"b": cardStrings(b[:]),
		},
	}, nil
}

func (TeenPatti) Domain() []string {
	out := []string{"hand:a", "hand:b", "tie"}
	for c := HighCard; c <= Trail; c++ {
		out = append(out, "rank:"+categoryNames[c])
	}
	return out
}
