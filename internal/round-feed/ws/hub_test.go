package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/dto"
	"github.com/radieske/fair-round-engine/internal/round-feed/ws"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

func dial(t *testing.T, hub *ws.Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func waitSubscribers(t *testing.T, hub *ws.Hub, gameType string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(gameType) != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers(%s) = %d, want %d", gameType, hub.Subscribers(gameType), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubscribeReceivesSnapshotAndUpdates(t *testing.T) {
	snap := func(_ context.Context, gameType string) (events.RoundEvent, bool, error) {
		return events.RoundEvent{Type: events.TypeRoundOpened, GameType: gameType, SequenceNumber: 7}, true, nil
	}
	hub := ws.NewHub(zap.NewNop(), func(*http.Request) bool { return true }, snap)
	conn := dial(t, hub)

	if err := conn.WriteJSON(dto.ClientMsg{Type: "subscribe", GameType: "aviator"}); err != nil {
		t.Fatal(err)
	}
	var first dto.ServerMsg
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != "snapshot" || first.Event == nil || first.Event.SequenceNumber != 7 {
		t.Fatalf("snapshot = %+v", first)
	}

	waitSubscribers(t, hub, "aviator", 1)
	hub.Broadcast(dto.Update{GameType: "color-prediction", Event: events.RoundEvent{SequenceNumber: 1}})
	hub.Broadcast(dto.Update{GameType: "aviator", Event: events.RoundEvent{Type: events.TypeRoundLocked, SequenceNumber: 7}})

	var upd dto.Update
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatal(err)
	}
	if upd.GameType != "aviator" || upd.Event.Type != events.TypeRoundLocked {
		t.Fatalf("update = %+v", upd)
	}
}

func TestPingAndUnsubscribe(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), func(*http.Request) bool { return true }, nil)
	conn := dial(t, hub)

	_ = conn.WriteJSON(dto.ClientMsg{Type: "subscribe", GameType: "teen-patti"})
	waitSubscribers(t, hub, "teen-patti", 1)

	_ = conn.WriteJSON(dto.ClientMsg{Type: "ping"})
	var pong dto.ServerMsg
	if err := conn.ReadJSON(&pong); err != nil || pong.Type != "pong" {
		t.Fatalf("pong = %+v err=%v", pong, err)
	}

	_ = conn.WriteJSON(dto.ClientMsg{Type: "unsubscribe", GameType: "teen-patti"})
	waitSubscribers(t, hub, "teen-patti", 0)
}

func TestDisconnectDropsSubscriptions(t *testing.T) {
	hub := ws.NewHub(zap.NewNop(), func(*http.Request) bool { return true }, nil)
	conn := dial(t, hub)

	_ = conn.WriteJSON(dto.ClientMsg{Type: "subscribe", GameType: "aviator"})
	waitSubscribers(t, hub, "aviator", 1)
	_ = conn.Close()
	waitSubscribers(t, hub, "aviator", 0)
}
