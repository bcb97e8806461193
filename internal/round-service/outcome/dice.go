package outcome

import "strconv"

// Dice é o dado de seis faces do Ludo.
type Dice struct{}

func (Dice) Generate(seed string, gc GameContext) (Outcome, error) {
	if seed == "" {
		return Outcome{}, ErrEmptySeed
	}
	face := NewStream(seed, gc).IntN(6) + 1
	tags := []string{"face:" + strconv.Itoa(face)}
	if face%2 == 1 {
		tags = append(tags, "odd")
	} else {
		tags = append(tags, "even")
	}
	if face <= 3 {
		tags = append(tags, "low")
	} else {
		tags = append(tags, "high")
	}
	return Outcome{Value: strconv.Itoa(face), Tags: tags}, nil
}

func (Dice) Domain() []string {
	out := make([]string, 0, 10)
	for f := 1; f <= 6; f++ {
		out = append(out, "face:"+strconv.Itoa(f))
	}
	return append(out, "odd", "even", "low", "high")
}
