package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest é o corpo de POST /v1/rounds/{roundId}/bets.
// O usuário vem do header X-User-ID e a chave do Idempotency-Key.
type PlaceBetRequest struct {
	Amount    int64  `json:"amount" validate:"gt=0"`
	Selection string `json:"selection" validate:"required,max=64"`
}

// CashOutRequest é o corpo (opcional) de POST /v1/bets/{betId}/cashout.
// Sem multiplicador, vale o multiplicador corrente do voo.
type CashOutRequest struct {
	Multiplier *decimal.Decimal `json:"multiplier,omitempty"`
}

type VoidBetRequest struct {
	Reason string `json:"reason" validate:"required,max=200"`
}
