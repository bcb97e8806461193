package repo_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/round-service/repo"
	"github.com/radieske/fair-round-engine/internal/shared/config"
	"github.com/radieske/fair-round-engine/internal/shared/testutil"
	walletrepo "github.com/radieske/fair-round-engine/internal/wallet-service/repo"
)

func diceGame(t *testing.T) *engine.Game {
	t.Helper()
	g, err := engine.NewGame(config.GameConfig{
		Type:          "ludo-dice",
		Kind:          config.KindDice,
		PayoutMode:    config.PayoutTag,
		MinBet:        1,
		MaxBet:        100_000,
		BettingWindow: time.Minute,
		Payouts:       map[string]string{"odd": "1.95", "even": "1.95"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestPostgresRoundLifecycle(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := repo.NewPostgres(conn)
	wallets := walletrepo.NewPostgres(conn)
	eng := engine.New(store, []*engine.Game{diceGame(t)}, zap.NewNop())

	if _, err := wallets.Deposit(ctx, "u1", 1000, "seed-deposit"); err != nil {
		t.Fatal(err)
	}
	if _, err := wallets.Deposit(ctx, "u2", 1000, ""); err != nil {
		t.Fatal(err)
	}

	r, err := eng.OpenRound(ctx, "ludo-dice", "fixed-seed")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.OpenRound(ctx, "ludo-dice", ""); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("second open: want ErrConflict, got %v", err)
	}

	req := engine.PlaceBetRequest{RoundID: r.ID, UserID: "u1", Amount: 100, Selection: "odd", IdempotencyKey: "k1"}
	b1, err := eng.PlaceBet(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	again, err := eng.PlaceBet(ctx, req)
	if err != nil || again.ID != b1.ID {
		t.Fatalf("replay: %v", err)
	}
	if _, err := eng.PlaceBet(ctx, engine.PlaceBetRequest{RoundID: r.ID, UserID: "u2", Amount: 5000, Selection: "even", IdempotencyKey: "k2"}); !errors.Is(err, engine.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if _, err := eng.PlaceBet(ctx, engine.PlaceBetRequest{RoundID: r.ID, UserID: "u2", Amount: 100, Selection: "even", IdempotencyKey: "k2"}); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.LockRound(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ResolveRound(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	report, err := eng.Settle(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if report.Bets != 2 || report.Won != 1 || report.Lost != 1 || report.TotalPaid != 195 {
		t.Fatalf("report %+v", report)
	}
	if _, err := eng.SettleRound(ctx, r.ID); err != nil {
		t.Fatal(err)
	}
	again2, err := eng.Settle(ctx, r.ID)
	if err != nil || again2.TotalPaid != report.TotalPaid || again2.Won != report.Won {
		t.Fatalf("second settle: %v %+v", err, again2)
	}

	w1, _ := wallets.GetOrCreateWallet(ctx, "u1")
	w2, _ := wallets.GetOrCreateWallet(ctx, "u2")
	if w1.BalanceCents+w2.BalanceCents != 2000-200+195 {
		t.Fatalf("balances %d + %d", w1.BalanceCents, w2.BalanceCents)
	}

	msgs, err := store.ClaimBatch(ctx, 100, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	// opened, locked, 2x bet.resolved, settled
	if len(msgs) != 5 {
		t.Fatalf("outbox has %d messages", len(msgs))
	}
	if again, _ := store.ClaimBatch(ctx, 100, time.Minute); len(again) != 0 {
		t.Fatalf("leased messages claimed twice")
	}
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	if err := store.MarkSent(ctx, ids); err != nil {
		t.Fatal(err)
	}
}

func TestPostgresConcurrentOpen(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	eng := engine.New(repo.NewPostgres(conn), []*engine.Game{diceGame(t)}, zap.NewNop())

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.OpenRound(context.Background(), "ludo-dice", "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				opened++
			} else if !errors.Is(err, engine.ErrConflict) {
				t.Errorf("unexpected: %v", err)
			}
		}()
	}
	wg.Wait()
	if opened != 1 {
		t.Fatalf("opened %d rounds", opened)
	}
}

func TestPostgresTransferIsIdempotent(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	wallets := walletrepo.NewPostgres(conn)
	if _, err := wallets.Deposit(ctx, "admin", 1000, ""); err != nil {
		t.Fatal(err)
	}
	first, err := wallets.Transfer(ctx, "admin", "u1", 300, "grant-1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := wallets.Transfer(ctx, "admin", "u1", 300, "grant-1")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Replayed || second.Debit.ID != first.Debit.ID {
		t.Fatalf("replay returned %+v", second)
	}
	if _, err := wallets.Transfer(ctx, "admin", "u1", 400, "grant-1"); !errors.Is(err, walletrepo.ErrDuplicateRequest) {
		t.Fatalf("want ErrDuplicateRequest, got %v", err)
	}
	w, _ := wallets.GetOrCreateWallet(ctx, "admin")
	if w.BalanceCents != 700 {
		t.Fatalf("admin balance %d", w.BalanceCents)
	}
}
