package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/fair-round-engine/internal/round-service/engine"
)

type GameResponse struct {
	Type            string            `json:"type"`
	Kind            string            `json:"kind"`
	MinBet          int64             `json:"minBet"`
	MaxBet          int64             `json:"maxBet"`
	BettingWindowMs int64             `json:"bettingWindowMs"`
	OneBetPerRound  bool              `json:"oneBetPerRound"`
	AutoRun         bool              `json:"autoRun"`
	SupportsCashOut bool              `json:"supportsCashOut"`
	OutcomeDomain   []string          `json:"outcomeDomain"`
	Payouts         map[string]string `json:"payouts,omitempty"`
}

// RoundResponse expõe a seed só depois de SETTLED.
type RoundResponse struct {
	*engine.Round
	Seed              string           `json:"seed,omitempty"`
	CurrentMultiplier *decimal.Decimal `json:"currentMultiplier,omitempty"`
	ServerTime        time.Time        `json:"serverTime"`
}

func NewRoundResponse(r *engine.Round, now time.Time) RoundResponse {
	resp := RoundResponse{Round: r, ServerTime: now}
	if r.Status == engine.StatusSettled {
		resp.Seed = r.Seed
	}
	return resp
}

type HistoryResponse struct {
	GameType string          `json:"gameType"`
	Rounds   []RoundResponse `json:"rounds"`
}
