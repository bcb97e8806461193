package engine_test

import (
	"path/filepath"
	"testing"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/shared/config"
)

// o arquivo versionado precisa montar todos os jogos sem erro
func TestShippedGamesConfig(t *testing.T) {
	cfgs, err := config.LoadGames(filepath.Join("..", "..", "..", "config", "games.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	games, err := engine.NewGames(cfgs)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{
		"aviator": true, "color-prediction": false, "jackpot": false, "roulette": false,
		"andar-bahar": false, "teen-patti": false, "ludo-dice": false,
	}
	if len(games) != len(want) {
		t.Fatalf("games = %d, want %d", len(games), len(want))
	}
	for _, g := range games {
		cashOut, ok := want[g.Type()]
		if !ok {
			t.Fatalf("unexpected game %s", g.Type())
		}
		if g.SupportsCashOut() != cashOut {
			t.Errorf("%s: supports cash-out = %v", g.Type(), g.SupportsCashOut())
		}
	}
}
