package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/repo"
	"github.com/radieske/fair-round-engine/internal/round-feed/ws"
	"github.com/radieske/fair-round-engine/internal/shared/httpx"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

const (
	defaultHistory = 20
	maxHistory     = 100
)

type Cache interface {
	Latest(ctx context.Context, gameType string) (events.RoundEvent, bool, error)
	History(ctx context.Context, gameType string, limit int) ([]events.RoundEvent, error)
}

type ReadRepo interface {
	LatestRound(ctx context.Context, gameType string) (events.RoundEvent, error)
	RecentSettled(ctx context.Context, gameType string, limit int) ([]events.RoundEvent, error)
}

// API expõe o estado público das rodadas: REST para snapshot e WebSocket para push.
// Lê do cache Redis e cai para o Postgres quando o cache está vazio.
type API struct {
	Log      *zap.Logger
	Cache    Cache
	ReadRepo ReadRepo
	Hub      *ws.Hub
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	// WebSocket fica fora do middleware de compressão
	r.Get("/ws", a.Hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(httpx.Stack(a.Log)...)
		r.Get("/v1/feed/games/{gameType}/latest", a.latest)
		r.Get("/v1/feed/games/{gameType}/history", a.history) // ?limit=N
	})
	return r
}

// Snapshot é usado pelo Hub para mandar o estado atual no subscribe
func (a *API) Snapshot(ctx context.Context, gameType string) (events.RoundEvent, bool, error) {
	ev, ok, err := a.Cache.Latest(ctx, gameType)
	if err == nil && ok {
		return ev, true, nil
	}
	if err != nil {
		a.Log.Debug("feed cache miss", zap.String("game_type", gameType), zap.Error(err))
	}
	ev, err = a.ReadRepo.LatestRound(ctx, gameType)
	if errors.Is(err, repo.ErrNotFound) {
		return ev, false, nil
	}
	if err != nil {
		return ev, false, err
	}
	return ev, true, nil
}

func (a *API) latest(w http.ResponseWriter, r *http.Request) {
	gameType := chi.URLParam(r, "gameType")
	ev, ok, err := a.Snapshot(r.Context(), gameType)
	if err != nil {
		a.Log.Error("latest round", zap.String("game_type", gameType), zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	if !ok {
		httpx.WriteError(w, http.StatusNotFound, "not_found", repo.ErrNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ev)
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	gameType := chi.URLParam(r, "gameType")
	limit := defaultHistory
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "validation", errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxHistory)
	}

	out, err := a.Cache.History(r.Context(), gameType, limit)
	if err != nil || len(out) == 0 {
		out, err = a.ReadRepo.RecentSettled(r.Context(), gameType, limit)
	}
	if err != nil {
		a.Log.Error("round history", zap.String("game_type", gameType), zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
