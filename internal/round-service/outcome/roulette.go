package outcome

import "strconv"

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// Roulette é a roleta europeia (0–36, um zero).
type Roulette struct{}

func (Roulette) Generate(seed string, gc GameContext) (Outcome, error) {
	if seed == "" {
		return Outcome{}, ErrEmptySeed
	}
	n := NewStream(seed, gc).IntN(37)
	return Outcome{Value: strconv.Itoa(n), Tags: RouletteTags(n)}, nil
}

// RouletteTags lista as apostas vencedoras para o número n
func RouletteTags(n int) []string {
	tags := []string{"number:" + strconv.Itoa(n)}
	if n == 0 {
		return append(tags, "green")
	}
	if redNumbers[n] {
		tags = append(tags, "red")
	} else {
		tags = append(tags, "black")
	}
	if n%2 == 1 {
		tags = append(tags, "odd")
	} else {
		tags = append(tags, "even")
	}
	if n <= 18 {
		tags = append(tags, "low")
	} else {
		tags = append(tags, "high")
	}
	tags = append(tags,
		"dozen:"+strconv.Itoa((n-1)/12+1),
		"column:"+strconv.Itoa((n-1)%3+1),
	)
	return tags
}

func (Roulette) Domain() []string {
	out := make([]string, 0, 37+13)
	for n := 0; n <= 36; n++ {
		out = append(out, "number:"+strconv.Itoa(n))
	}
	out = append(out, "red", "black", "green", "odd", "even", "low", "high")
	for i := 1; i <= 3; i++ {
		out = append(out, "dozen:"+strconv.Itoa(i), "column:"+strconv.Itoa(i))
	}
	return out
}
