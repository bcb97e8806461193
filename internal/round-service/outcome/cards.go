package outcome

import "strconv"

// Card usa rank 2..14 (ás alto) e naipe S/H/D/C.
type Card struct {
	Rank int
	Suit byte
}

func (c Card) String() string {
	var r string
	switch c.Rank {
	case 11:
		r = "J"
	case 12:
		r = "Q"
	case 13:
		r = "K"
	case 14:
		r = "A"
	default:
		r = strconv.Itoa(c.Rank)
	}
	return r + string(c.Suit)
}

var suits = [...]byte{'S', 'H', 'D', 'C'}

// shuffledDeck embaralha um baralho de 52 cartas com Fisher-Yates sobre o stream.
func shuffledDeck(s *Stream) []Card {
	deck := make([]Card, 0, 52)
	for _, suit := range suits {
		for rank := 2; rank <= 14; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := s.IntN(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

func cardStrings(cs []Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}
