package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-service/driver"
	"github.com/radieske/fair-round-engine/internal/round-service/dto"
	"github.com/radieske/fair-round-engine/internal/round-service/engine"
	"github.com/radieske/fair-round-engine/internal/shared/httpx"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	defaultHistory = 20
	inFlightTTL    = 10 * time.Second
)

var (
	errMissingUser = errors.New(HeaderUserID + " header required")
	errInFlight    = errors.New("request with this idempotency key is in progress")
)

// Locker barra a mesma chave de idempotência em voo em duas réplicas.
// Opcional: sem ele o banco continua garantindo o resultado único.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

type Server struct {
	log  *zap.Logger
	eng  *engine.Engine
	drv  *driver.Driver
	lock Locker
}

func NewServer(log *zap.Logger, eng *engine.Engine, drv *driver.Driver, lock Locker) *Server {
	return &Server{log: log, eng: eng, drv: drv, lock: lock}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httpx.Stack(s.log)...)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/games", s.listGames)
		r.Get("/games/{gameType}/rounds/current", s.currentRound)
		r.Get("/games/{gameType}/rounds", s.history) // ?limit=N
		r.Get("/rounds/{roundId}", s.getRound)
		r.Get("/rounds/{roundId}/report", s.report)
		r.Post("/rounds/{roundId}/bets", s.placeBet)
		r.Get("/bets/{betId}", s.getBet)
		r.Post("/bets/{betId}/cashout", s.cashOut)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/bets/{betId}/void", s.voidBet)
			r.Post("/games/{gameType}/tick", s.tick)
		})
	})
	return r
}

func (s *Server) listGames(w http.ResponseWriter, r *http.Request) {
	games := s.eng.Games()
	out := make([]dto.GameResponse, 0, len(games))
	for _, g := range games {
		domain := append([]string(nil), g.Generator.Domain()...)
		sort.Strings(domain)
		out = append(out, dto.GameResponse{
			Type:            g.Type(),
			Kind:            g.Config.Kind,
			MinBet:          g.Config.MinBet,
			MaxBet:          g.Config.MaxBet,
			BettingWindowMs: g.Config.BettingWindow.Milliseconds(),
			OneBetPerRound:  g.Config.OneBetPerRound,
			AutoRun:         g.Config.AutoRun,
			SupportsCashOut: g.SupportsCashOut(),
			OutcomeDomain:   domain,
			Payouts:         g.Config.Payouts,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) currentRound(w http.ResponseWriter, r *http.Request) {
	gameType := chi.URLParam(r, "gameType")
	round, err := s.eng.GetActiveRound(r.Context(), gameType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := dto.NewRoundResponse(round, s.eng.Now())

	// multiplicador corrente só faz sentido em jogos de crash
	if game, err := s.eng.Game(gameType); err == nil && game.SupportsCashOut() {
		if m, err := s.eng.FlightMultiplier(round); err == nil {
			resp.CurrentMultiplier = &m
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	gameType := chi.URLParam(r, "gameType")
	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, string(engine.ClassValidation), errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	rounds, err := s.eng.GetRoundHistory(r.Context(), gameType, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	now := s.eng.Now()
	resp := dto.HistoryResponse{GameType: gameType, Rounds: make([]dto.RoundResponse, 0, len(rounds))}
	for i := range rounds {
		resp.Rounds = append(resp.Rounds, dto.NewRoundResponse(&rounds[i], now))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) getRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.eng.GetRound(r.Context(), chi.URLParam(r, "roundId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, dto.NewRoundResponse(round, s.eng.Now()))
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rep, err := s.eng.Report(r.Context(), chi.URLParam(r, "roundId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rep)
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	userID, key, ok := s.identify(w, r)
	if !ok {
		return
	}
	var req dto.PlaceBetRequest
	if err := httpx.Decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	release, ok := s.acquire(w, r, userID, key)
	if !ok {
		return
	}
	defer release()

	bet, err := s.eng.PlaceBet(r.Context(), engine.PlaceBetRequest{
		RoundID:        chi.URLParam(r, "roundId"),
		UserID:         userID,
		Amount:         req.Amount,
		Selection:      req.Selection,
		IdempotencyKey: key,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, bet)
}

// getBet só devolve apostas do próprio usuário; as dos outros viram 404
func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		httpx.WriteError(w, http.StatusBadRequest, string(engine.ClassValidation), errMissingUser)
		return
	}
	betID := chi.URLParam(r, "betId")
	bet, err := s.eng.GetBet(r.Context(), betID)
	if err == nil && bet.UserID != userID {
		err = fmt.Errorf("%w: bet %s", engine.ErrNotFound, betID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) cashOut(w http.ResponseWriter, r *http.Request) {
	userID, key, ok := s.identify(w, r)
	if !ok {
		return
	}
	var req dto.CashOutRequest
	if r.ContentLength != 0 {
		if err := httpx.Decode(r, &req); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	release, ok := s.acquire(w, r, userID, key)
	if !ok {
		return
	}
	defer release()

	bet, err := s.eng.CashOut(r.Context(), engine.CashOutRequest{
		BetID:          chi.URLParam(r, "betId"),
		UserID:         userID,
		IdempotencyKey: key,
		Multiplier:     req.Multiplier,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) voidBet(w http.ResponseWriter, r *http.Request) {
	var req dto.VoidBetRequest
	if err := httpx.Decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	bet, err := s.eng.VoidBet(r.Context(), chi.URLParam(r, "betId"), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bet)
}

func (s *Server) tick(w http.ResponseWriter, r *http.Request) {
	res, err := s.drv.Tick(r.Context(), chi.URLParam(r, "gameType"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// identify lê usuário e chave de idempotência dos headers
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		httpx.WriteError(w, http.StatusBadRequest, string(engine.ClassValidation), errMissingUser)
		return "", "", false
	}
	key := r.Header.Get(HeaderIdempotencyKey)
	if key == "" {
		httpx.WriteError(w, http.StatusBadRequest, string(engine.ClassValidation), engine.ErrMissingIdempotencyKey)
		return "", "", false
	}
	return userID, key, true
}

// acquire segura a chave durante a requisição. Redis fora do ar não bloqueia apostas.
func (s *Server) acquire(w http.ResponseWriter, r *http.Request, userID, key string) (func(), bool) {
	if s.lock == nil {
		return func() {}, true
	}
	release, ok, err := s.lock.TryAcquire(r.Context(), "inflight:"+userID+":"+key, inFlightTTL)
	if err != nil {
		s.log.Warn("in-flight lock unavailable", zap.Error(err))
		return func() {}, true
	}
	if !ok {
		httpx.WriteError(w, http.StatusConflict, string(engine.ClassConflict), errInFlight)
		return nil, false
	}
	return release, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, class := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("class", class),
			zap.Error(err),
		)
	}
	httpx.WriteError(w, status, class, err)
}

func statusFor(err error) (int, string) {
	if errors.Is(err, httpx.ErrBadRequest) {
		return http.StatusBadRequest, string(engine.ClassValidation)
	}
	class := engine.Classify(err)
	switch class {
	case engine.ClassValidation:
		if errors.Is(err, engine.ErrNotFound) || errors.Is(err, engine.ErrUnknownGame) {
			return http.StatusNotFound, string(class)
		}
		return http.StatusBadRequest, string(class)
	case engine.ClassConflict:
		return http.StatusConflict, string(class)
	case engine.ClassResource:
		return http.StatusUnprocessableEntity, string(class)
	case engine.ClassInvariant:
		return http.StatusInternalServerError, string(class)
	}
	return http.StatusServiceUnavailable, string(class)
}
