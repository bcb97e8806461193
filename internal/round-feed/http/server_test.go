package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	httpapi "github.com/radieske/fair-round-engine/internal/round-feed/http"
	"github.com/radieske/fair-round-engine/internal/round-feed/repo"
	"github.com/radieske/fair-round-engine/internal/round-feed/ws"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

type fakeCache struct {
	latest  map[string]events.RoundEvent
	history map[string][]events.RoundEvent
	err     error
}

func (f *fakeCache) Latest(_ context.Context, gameType string) (events.RoundEvent, bool, error) {
	if f.err != nil {
		return events.RoundEvent{}, false, f.err
	}
	ev, ok := f.latest[gameType]
	return ev, ok, nil
}

func (f *fakeCache) History(_ context.Context, gameType string, limit int) ([]events.RoundEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	h := f.history[gameType]
	if len(h) > limit {
		h = h[:limit]
	}
	return h, nil
}

type fakeRepo struct {
	rounds map[string][]events.RoundEvent // mais recente primeiro
	limits []int
}

func (f *fakeRepo) LatestRound(_ context.Context, gameType string) (events.RoundEvent, error) {
	rs := f.rounds[gameType]
	if len(rs) == 0 {
		return events.RoundEvent{}, fmt.Errorf("%w: game %s", repo.ErrNotFound, gameType)
	}
	return rs[0], nil
}

func (f *fakeRepo) RecentSettled(_ context.Context, gameType string, limit int) ([]events.RoundEvent, error) {
	f.limits = append(f.limits, limit)
	var out []events.RoundEvent
	for _, r := range f.rounds[gameType] {
		if r.Type == events.TypeRoundSettled && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func newAPI(c *fakeCache, r *fakeRepo) http.Handler {
	api := &httpapi.API{Log: zap.NewNop(), Cache: c, ReadRepo: r}
	api.Hub = ws.NewHub(zap.NewNop(), func(*http.Request) bool { return true }, api.Snapshot)
	return api.Router()
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestLatestPrefersCache(t *testing.T) {
	c := &fakeCache{latest: map[string]events.RoundEvent{
		"aviator": {Type: events.TypeRoundLocked, GameType: "aviator", SequenceNumber: 9},
	}}
	r := &fakeRepo{rounds: map[string][]events.RoundEvent{
		"aviator":          {{Type: events.TypeRoundOpened, SequenceNumber: 8}},
		"color-prediction": {{Type: events.TypeRoundSettled, SequenceNumber: 3, Seed: "s"}},
	}}
	h := newAPI(c, r)

	rec := get(h, "/v1/feed/games/aviator/latest")
	var ev events.RoundEvent
	_ = json.Unmarshal(rec.Body.Bytes(), &ev)
	if rec.Code != http.StatusOK || ev.SequenceNumber != 9 {
		t.Fatalf("aviator: %d %+v", rec.Code, ev)
	}

	rec = get(h, "/v1/feed/games/color-prediction/latest")
	_ = json.Unmarshal(rec.Body.Bytes(), &ev)
	if rec.Code != http.StatusOK || ev.SequenceNumber != 3 {
		t.Fatalf("fallback: %d %+v", rec.Code, ev)
	}

	if rec := get(h, "/v1/feed/games/ludo-dice/latest"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing game: %d", rec.Code)
	}
}

func TestLatestFallsBackWhenCacheDown(t *testing.T) {
	c := &fakeCache{err: errors.New("redis down")}
	r := &fakeRepo{rounds: map[string][]events.RoundEvent{"aviator": {{Type: events.TypeRoundOpened, SequenceNumber: 4}}}}
	if rec := get(newAPI(c, r), "/v1/feed/games/aviator/latest"); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	c := &fakeCache{history: map[string][]events.RoundEvent{
		"aviator": {{SequenceNumber: 3}, {SequenceNumber: 2}, {SequenceNumber: 1}},
	}}
	r := &fakeRepo{rounds: map[string][]events.RoundEvent{
		"teen-patti": {{Type: events.TypeRoundOpened, SequenceNumber: 2}, {Type: events.TypeRoundSettled, SequenceNumber: 1}},
	}}
	h := newAPI(c, r)

	var out []events.RoundEvent
	rec := get(h, "/v1/feed/games/aviator/history?limit=2")
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || len(out) != 2 || out[0].SequenceNumber != 3 {
		t.Fatalf("history: %d %+v", rec.Code, out)
	}

	rec = get(h, "/v1/feed/games/teen-patti/history?limit=500")
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if rec.Code != http.StatusOK || len(out) != 1 || out[0].SequenceNumber != 1 {
		t.Fatalf("fallback history: %d %+v", rec.Code, out)
	}
	if len(r.limits) != 1 || r.limits[0] != 100 {
		t.Fatalf("limit not clamped: %v", r.limits)
	}

	if rec := get(h, "/v1/feed/games/aviator/history?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}
}
