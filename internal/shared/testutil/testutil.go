// Package testutil sobe um Postgres de teste a partir de TEST_POSTGRES_DSN.
// Sem banco disponível os testes de integração são pulados.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/shared/db"
)

const EnvDSN = "TEST_POSTGRES_DSN"

// SetupTestDB conecta, aplica as migrações e limpa as tabelas
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping integration test", EnvDSN)
	}
	conn, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Skipf("open postgres: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		t.Skipf("postgres unreachable: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	dir, err := migrationsDir()
	if err != nil {
		t.Fatalf("locate migrations: %v", err)
	}
	if err := db.NewMigrator(conn.DB, dir, zap.NewNop()).Up(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	Truncate(t, conn)
	return conn
}

// Truncate esvazia as tabelas do domínio
func Truncate(t *testing.T, conn *sqlx.DB) {
	t.Helper()
	_, err := conn.Exec(`TRUNCATE outbox, bets, rounds, idempotency_keys, wallet_ledger, wallets RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// migrationsDir sobe a partir do diretório do teste até achar o go.mod
func migrationsDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return filepath.Join(dir, "migrations"), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
