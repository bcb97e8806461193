package dto

import "github.com/radieske/fair-round-engine/pkg/contracts/events"

// Update é o payload trafegado no Redis Pub/Sub e enviado aos clientes WebSocket
type Update struct {
	GameType string            `json:"gameType"`
	Event    events.RoundEvent `json:"event"`
}

// ClientMsg representa uma mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type     string `json:"type"`     // subscribe | unsubscribe | ping
	GameType string `json:"gameType"` // requerido em subscribe/unsubscribe
}

// ServerMsg é a resposta a mensagens de controle (pong, snapshot, erro)
type ServerMsg struct {
	Type     string             `json:"type"`
	GameType string             `json:"gameType,omitempty"`
	Event    *events.RoundEvent `json:"event,omitempty"`
	Error    string             `json:"error,omitempty"`
}
