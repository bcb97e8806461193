package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/shared/httpx"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/internal/wallet-service/dto"
	"github.com/radieske/fair-round-engine/internal/wallet-service/repo"
)

// Repo define as operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (repo.Wallet, error)
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (repo.Entry, error)
	Transfer(ctx context.Context, fromUser, toUser string, amount int64, key string) (repo.TransferResult, error)
	Ledger(ctx context.Context, userID string, limit int) ([]repo.Entry, error)
}

// Server expõe a carteira por HTTP
type Server struct {
	log  *zap.Logger
	repo Repo
}

func NewServer(log *zap.Logger, repo Repo) *Server { return &Server{log: log, repo: repo} }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.Stack(s.log)...)
	r.Get("/wallet", s.getWallet)          // GET ?userId=...
	r.Post("/wallet/deposit", s.deposit)   // POST
	r.Post("/wallet/transfer", s.transfer) // POST + Idempotency-Key
	r.Get("/wallet/ledger", s.ledger)      // GET ?userId=...&limit=...
	return r
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation", errors.New("userId required"))
		return
	}
	wal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.fail(w, "get", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, WalletID: wal.ID, BalanceCents: wal.BalanceCents})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := httpx.Decode(r, &req); err != nil {
		s.fail(w, "deposit", err)
		return
	}
	e, err := s.repo.Deposit(r.Context(), req.UserID, req.AmountCents, req.ExternalRef)
	if err != nil {
		s.fail(w, "deposit", err)
		return
	}
	metrics.RecordWalletOp("deposit", "ok")
	httpx.WriteJSON(w, http.StatusOK, dto.WalletResponse{UserID: req.UserID, WalletID: e.WalletID, BalanceCents: e.ResultingBalance})
}

func (s *Server) transfer(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation", errors.New("Idempotency-Key header required"))
		return
	}
	var req dto.TransferRequest
	if err := httpx.Decode(r, &req); err != nil {
		s.fail(w, "transfer", err)
		return
	}
	res, err := s.repo.Transfer(r.Context(), req.FromUserID, req.ToUserID, req.AmountCents, key)
	if err != nil {
		s.fail(w, "transfer", err)
		return
	}
	metrics.RecordWalletOp("transfer", "ok")
	s.log.Info("transfer",
		zap.String("from", req.FromUserID),
		zap.String("to", req.ToUserID),
		zap.Int64("amount", req.AmountCents),
		zap.Bool("replayed", res.Replayed),
	)
	httpx.WriteJSON(w, http.StatusOK, dto.TransferResponse{
		FromBalanceCents: res.Debit.ResultingBalance,
		ToBalanceCents:   res.Credit.ResultingBalance,
		DebitEntryID:     res.Debit.ID,
		CreditEntryID:    res.Credit.ID,
		Replayed:         res.Replayed,
	})
}

func (s *Server) ledger(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "validation", errors.New("userId required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := s.repo.Ledger(r.Context(), userID, limit)
	if err != nil {
		s.fail(w, "ledger", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	metrics.RecordWalletOp(op, code)
	if status >= 500 {
		s.log.Error("wallet op failed", zap.String("op", op), zap.Error(err))
	}
	httpx.WriteError(w, status, code, err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, httpx.ErrBadRequest), errors.Is(err, repo.ErrInvalidAmount), errors.Is(err, repo.ErrSameWallet):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repo.ErrDuplicateRequest):
		return http.StatusConflict, "conflict"
	case errors.Is(err, repo.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "insufficient_funds"
	}
	return http.StatusInternalServerError, "internal"
}
