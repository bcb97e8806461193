package events

import (
	"encoding/json"
	"time"
)

// Tipos de evento publicados pelo round-service via outbox.
const (
	TypeRoundOpened  = "round.opened"
	TypeRoundLocked  = "round.locked"
	TypeRoundSettled = "round.settled"
	TypeBetResolved  = "bet.resolved"
)

// RoundEvent é o envelope comum de todos os eventos de rodada.
// Outcome só vem preenchido em round.settled e bet.resolved.
// Seed só é revelada em round.settled.
type RoundEvent struct {
	Type           string          `json:"type"`
	RoundID        string          `json:"roundId"`
	GameType       string          `json:"gameType"`
	SequenceNumber int64           `json:"sequenceNumber"`
	Status         string          `json:"status"`
	Outcome        json.RawMessage `json:"outcome,omitempty"`
	SeedHash       string          `json:"seedHash,omitempty"`
	Seed           string          `json:"seed,omitempty"`

	// campos de bet.resolved
	BetID     string `json:"betId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	Payout    int64  `json:"payout,omitempty"`
	BetStatus string `json:"betStatus,omitempty"`

	OccurredAt time.Time `json:"occurredAt"`
}

// Key retorna a chave de particionamento (roundId) usada no Kafka.
func (e RoundEvent) Key() string { return e.RoundID }
