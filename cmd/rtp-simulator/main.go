package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cheggaaa/pb/v3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/rtp-simulator/sim"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	gamesFile := flag.String("games", cfg.GamesFile, "arquivo de configuração dos jogos")
	only := flag.String("game", "", "simula só este tipo de jogo")
	rounds := flag.Int("rounds", 100000, "rodadas por jogo")
	seed := flag.String("seed", "rtp-simulator", "seed base das rodadas")
	asJSON := flag.Bool("json", false, "imprime o relatório em JSON")
	quiet := flag.Bool("quiet", false, "esconde a barra de progresso")
	flag.Parse()

	log, err := logger.FromConfig("rtp-simulator", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfgs, err := config.LoadGames(*gamesFile)
	if err != nil {
		log.Fatal("load games", zap.Error(err))
	}
	games, err := engine.NewGames(cfgs)
	if err != nil {
		log.Fatal("build games", zap.Error(err))
	}

	var reports []sim.Report
	for _, g := range games {
		if *only != "" && g.Type() != *only {
			continue
		}
		bar := pb.StartNew(*rounds)
		if *quiet {
			bar.SetWriter(io.Discard)
		}
		bar.Set("prefix", g.Type()+" ")
		rep, err := sim.Run(g, sim.Options{Rounds: *rounds, BaseSeed: *seed, OnRound: func() { bar.Increment() }})
		bar.Finish()
		if err != nil {
			log.Fatal("simulation failed", zap.String("game", g.Type()), zap.Error(err))
		}
		reports = append(reports, rep)
	}
	if len(reports) == 0 {
		log.Fatal("no game simulated", zap.String("game", *only))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			log.Fatal("encode report", zap.Error(err))
		}
		return
	}
	printTable(os.Stdout, reports)
}

func printTable(out io.Writer, reports []sim.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GAME\tSELECTION\tROUNDS\tHIT RATE\tRTP\tSTDDEV")
	for _, r := range reports {
		for _, s := range r.Selections {
			fmt.Fprintf(w, "%s\t%s\t%d\t%.4f\t%.4f\t%.4f\n", r.GameType, s.Selection, s.Bets, s.HitRate, s.RTP, s.StdDev)
		}
		if r.PValue != nil {
			fmt.Fprintf(w, "%s\t(chi-square)\t%d\tχ²=%.2f\tp=%.4f\t\n", r.GameType, r.Rounds, *r.ChiSquare, *r.PValue)
		}
	}
	w.Flush()
}
