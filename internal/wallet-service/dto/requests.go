package dto

type DepositRequest struct {
	UserID      string `json:"userId" validate:"required"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
	ExternalRef string `json:"external_ref,omitempty"` // opcional, torna o depósito idempotente
}

// TransferRequest move pontos entre usuários. Idempotency-Key vai no header.
type TransferRequest struct {
	FromUserID  string `json:"fromUserId" validate:"required"`
	ToUserID    string `json:"toUserId" validate:"required,nefield=FromUserID"`
	AmountCents int64  `json:"amount_cents" validate:"gt=0"`
}
