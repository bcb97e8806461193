package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/db"
	"github.com/radieske/fair-round-engine/internal/shared/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	dir := flag.String("dir", "migrations", "diretório com os arquivos .up.sql/.down.sql")
	dsn := flag.String("dsn", cfg.PostgresDSN, "DSN do Postgres")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "uso: migrate [flags] up|down\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log, err := logger.FromConfig("migrate", cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cmd := flag.Arg(0)
	if cmd != "up" && cmd != "down" {
		flag.Usage()
		os.Exit(2)
	}

	pg, err := db.ConnectPostgres(*dsn)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	m := db.NewMigrator(pg.DB, *dir, log)
	if cmd == "up" {
		err = m.Up(ctx)
	} else {
		err = m.Down(ctx)
	}
	if err != nil {
		log.Fatal("migration failed", zap.String("cmd", cmd), zap.Error(err))
	}
	log.Info("migration done", zap.String("cmd", cmd))
}
