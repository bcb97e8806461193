package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/fair-round-engine/internal/round-feed/dto"
	"github.com/radieske/fair-round-engine/internal/shared/metrics"
	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

const writeWait = 5 * time.Second

// Snapshot devolve o último estado do jogo, enviado logo após o subscribe
type Snapshot func(ctx context.Context, gameType string) (events.RoundEvent, bool, error)

// client serializa escritas: gorilla não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *client) writePrepared(m *websocket.PreparedMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WritePreparedMessage(m)
}

// Hub gerencia conexões WebSocket e assinaturas por tipo de jogo
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	snapshot Snapshot

	mu sync.RWMutex
	// gameType -> conexões inscritas
	subs map[string]map[*client]struct{}
}

// NewHub cria o Hub com política de origem customizada. snapshot pode ser nil.
func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool, snapshot Snapshot) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		snapshot: snapshot,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	metrics.AddWSConnections(1)
	defer func() {
		h.drop(c)
		_ = conn.Close()
		metrics.AddWSConnections(-1)
	}()

	for {
		var msg dto.ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.GameType == "" {
				_ = c.writeJSON(dto.ServerMsg{Type: "error", Error: "gameType required"})
				continue
			}
			h.subscribe(msg.GameType, c)
			h.sendSnapshot(r.Context(), c, msg.GameType)
		case "unsubscribe":
			h.unsubscribe(msg.GameType, c)
		case "ping":
			_ = c.writeJSON(dto.ServerMsg{Type: "pong"})
		default:
			_ = c.writeJSON(dto.ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, c *client, gameType string) {
	if h.snapshot == nil {
		return
	}
	ev, ok, err := h.snapshot(ctx, gameType)
	if err != nil {
		h.log.Debug("snapshot failed", zap.String("game_type", gameType), zap.Error(err))
		return
	}
	if ok {
		_ = c.writeJSON(dto.ServerMsg{Type: "snapshot", GameType: gameType, Event: &ev})
	}
}

func (h *Hub) subscribe(gameType string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[gameType]; !ok {
		h.subs[gameType] = make(map[*client]struct{})
	}
	h.subs[gameType][c] = struct{}{}
}

func (h *Hub) unsubscribe(gameType string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[gameType]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, gameType)
		}
	}
}

// drop remove a conexão de todas as assinaturas
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for gameType, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, gameType)
		}
	}
}

// Subscribers conta as conexões inscritas num jogo
func (h *Hub) Subscribers(gameType string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameType])
}

// Broadcast envia a atualização a todos os inscritos no jogo
func (h *Hub) Broadcast(update dto.Update) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.GameType]))
	for c := range h.subs[update.GameType] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	msg, err := websocket.NewPreparedMessage(websocket.TextMessage, b)
	if err != nil {
		h.log.Warn("prepare ws message", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.writePrepared(msg); err != nil {
			// o loop de leitura percebe o fechamento e limpa as assinaturas
			_ = c.conn.Close()
		}
	}
}
