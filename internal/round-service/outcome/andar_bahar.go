package outcome

import "fmt"

// AndarBahar abre um coringa e distribui alternadamente entre andar e bahar
// até sair uma carta do mesmo valor. O lado que recebe essa carta vence.
type AndarBahar struct {
	First string // lado que recebe a primeira carta
}

func newAndarBahar(first string) (AndarBahar, error) {
	switch first {
	case "":
		return AndarBahar{First: "andar"}, nil
	case "andar", "bahar":
		return AndarBahar{First: first}, nil
	}
	return AndarBahar{}, fmt.Errorf("andar_bahar: invalid first side %q", first)
}

func (a AndarBahar) Generate(seed string, gc GameContext) (Outcome, error) {
	if seed == "" {
		return Outcome{}, ErrEmptySeed
	}
	deck := shuffledDeck(NewStream(seed, gc))
	joker := deck[0]

	sides := [2]string{"andar", "bahar"}
	if a.First == "bahar" {
		sides = [2]string{"bahar", "andar"}
	}
	dealt := map[string][]Card{"andar": nil, "bahar": nil}
	for i, c := range deck[1:] {
		side := sides[i%2]
		dealt[side] = append(dealt[side], c)
		if c.Rank == joker.Rank {
			return Outcome{
				Value: side,
				Tags:  []string{side},
				Cards: map[string][]string{
					"joker": {joker.String()},
					"andar": cardStrings(dealt["andar"]),
					"bahar": cardStrings(dealt["bahar"]),
				},
			}, nil
		}
	}
	// inalcançável: restam três cartas do mesmo valor do coringa
	return Outcome{}, fmt.Errorf("andar_bahar: no match for joker %s", joker)
}

func (AndarBahar) Domain() []string { return []string{"andar", "bahar"} }
