package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/wallet-service/dto"
	whttp "github.com/radieske/fair-round-engine/internal/wallet-service/http"
	"github.com/radieske/fair-round-engine/internal/wallet-service/repo"
)

// fakeRepo guarda saldos em memória com a mesma semântica de idempotência do Postgres
type fakeRepo struct {
	mu       sync.Mutex
	balances map[string]int64
	seq      int64
	keys     map[string]repo.TransferResult
	ledger   map[string][]repo.Entry
}

func newFake() *fakeRepo {
	return &fakeRepo{balances: map[string]int64{}, keys: map[string]repo.TransferResult{}, ledger: map[string][]repo.Entry{}}
}

func (f *fakeRepo) entry(user, op string, amount int64, reason string) repo.Entry {
	f.seq++
	e := repo.Entry{ID: f.seq, WalletID: "w-" + user, UserID: user, Direction: op, Amount: amount, Reason: reason, ResultingBalance: f.balances[user]}
	f.ledger[user] = append(f.ledger[user], e)
	return e
}

func (f *fakeRepo) GetOrCreateWallet(_ context.Context, userID string) (repo.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return repo.Wallet{ID: "w-" + userID, UserID: userID, BalanceCents: f.balances[userID]}, nil
}

func (f *fakeRepo) Deposit(_ context.Context, userID string, amount int64, _ string) (repo.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	return f.entry(userID, repo.OpCredit, amount, repo.ReasonDeposit), nil
}

func (f *fakeRepo) Transfer(_ context.Context, from, to string, amount int64, key string) (repo.TransferResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := from + "|" + key
	if prev, ok := f.keys[k]; ok {
		if prev.Credit.UserID != to || prev.Debit.Amount != amount {
			return repo.TransferResult{}, repo.ErrDuplicateRequest
		}
		prev.Replayed = true
		return prev, nil
	}
	if f.balances[from] < amount {
		return repo.TransferResult{}, fmt.Errorf("%w: user %s", repo.ErrInsufficientFunds, from)
	}
	f.balances[from] -= amount
	d := f.entry(from, repo.OpDebit, amount, repo.ReasonTransferOut)
	f.balances[to] += amount
	c := f.entry(to, repo.OpCredit, amount, repo.ReasonTransferIn)
	res := repo.TransferResult{Debit: d, Credit: c}
	f.keys[k] = res
	return res, nil
}

func (f *fakeRepo) Ledger(_ context.Context, userID string, limit int) ([]repo.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]repo.Entry(nil), f.ledger[userID]...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDepositAndGetWallet(t *testing.T) {
	h := whttp.NewServer(zap.NewNop(), newFake()).Router()

	rec := do(t, h, http.MethodPost, "/wallet/deposit", `{"userId":"u1","amount_cents":500}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit status %d: %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/wallet?userId=u1", "", nil)
	var w dto.WalletResponse
	if err := json.NewDecoder(rec.Body).Decode(&w); err != nil {
		t.Fatal(err)
	}
	if w.BalanceCents != 500 {
		t.Fatalf("balance %d", w.BalanceCents)
	}
}

func TestDepositValidation(t *testing.T) {
	h := whttp.NewServer(zap.NewNop(), newFake()).Router()
	cases := []string{
		`{"userId":"","amount_cents":500}`,
		`{"userId":"u1","amount_cents":0}`,
		`{"userId":"u1","amount_cents":-3}`,
		`not json`,
	}
	for _, body := range cases {
		if rec := do(t, h, http.MethodPost, "/wallet/deposit", body, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d", body, rec.Code)
		}
	}
}

func TestTransfer(t *testing.T) {
	fake := newFake()
	fake.balances["admin"] = 1000
	h := whttp.NewServer(zap.NewNop(), fake).Router()
	body := `{"fromUserId":"admin","toUserId":"u1","amount_cents":300}`

	if rec := do(t, h, http.MethodPost, "/wallet/transfer", body, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing key: status %d", rec.Code)
	}

	hdr := map[string]string{"Idempotency-Key": "grant-1"}
	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodPost, "/wallet/transfer", body, hdr)
		if rec.Code != http.StatusOK {
			t.Fatalf("transfer %d: status %d %s", i, rec.Code, rec.Body)
		}
		var res dto.TransferResponse
		_ = json.NewDecoder(rec.Body).Decode(&res)
		if res.FromBalanceCents != 700 || res.ToBalanceCents != 300 || res.Replayed != (i == 1) {
			t.Fatalf("transfer %d: %+v", i, res)
		}
	}

	other := `{"fromUserId":"admin","toUserId":"u1","amount_cents":400}`
	if rec := do(t, h, http.MethodPost, "/wallet/transfer", other, hdr); rec.Code != http.StatusConflict {
		t.Fatalf("reused key: status %d", rec.Code)
	}
	big := `{"fromUserId":"admin","toUserId":"u1","amount_cents":5000}`
	if rec := do(t, h, http.MethodPost, "/wallet/transfer", big, map[string]string{"Idempotency-Key": "grant-2"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient: status %d", rec.Code)
	}
	self := `{"fromUserId":"admin","toUserId":"admin","amount_cents":1}`
	if rec := do(t, h, http.MethodPost, "/wallet/transfer", self, map[string]string{"Idempotency-Key": "grant-3"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("self transfer: status %d", rec.Code)
	}
}

func TestLedger(t *testing.T) {
	fake := newFake()
	h := whttp.NewServer(zap.NewNop(), fake).Router()
	for i := 0; i < 3; i++ {
		do(t, h, http.MethodPost, "/wallet/deposit", `{"userId":"u1","amount_cents":10}`, nil)
	}
	rec := do(t, h, http.MethodGet, "/wallet/ledger?userId=u1&limit=2", "", nil)
	var entries []repo.Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
}
