package engine

import "errors"

// Validação: rejeitadas antes de qualquer efeito
var (
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidSelection      = errors.New("invalid selection")
	ErrInvalidMultiplier     = errors.New("invalid cash-out multiplier")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrMissingIdempotencyKey = errors.New("idempotency key required")
	ErrNotFound              = errors.New("not found")
	ErrUnknownGame           = errors.New("unknown game type")
	ErrCashOutNotSupported   = errors.New("game does not support cash-out")
)

// Conflito: estado mudou ou requisição repetida
var (
	ErrConflict          = errors.New("active round already exists")
	ErrInvalidTransition = errors.New("invalid round transition")
	ErrRoundClosed       = errors.New("round closed for betting")
	ErrAlreadyResolved   = errors.New("already resolved")
	ErrAlreadySettled    = errors.New("round already settled")
	ErrDuplicateRequest  = errors.New("idempotency key reused with different parameters")
	ErrAlreadyPlaced     = errors.New("user already has a bet in this round")
	ErrTooLate           = errors.New("cash-out window closed")
)

// Recurso
var ErrInsufficientBalance = errors.New("insufficient balance")

// Transiente: liquidação parcial, refeita no próximo tick
var ErrPartialSettlement = errors.New("settlement left bets pending")

// Invariantes: indicam bug, a rodada fica parada para inspeção
var (
	ErrIncompleteSettlement = errors.New("round has pending bets")
	ErrInvariantViolation   = errors.New("invariant violation")
)

type Class string

const (
	ClassValidation Class = "validation"
	ClassConflict   Class = "conflict"
	ClassResource   Class = "resource"
	ClassTransient  Class = "transient"
	ClassInvariant  Class = "invariant"
)

var classes = []struct {
	class Class
	errs  []error
}{
	{ClassInvariant, []error{ErrInvariantViolation, ErrIncompleteSettlement}},
	{ClassValidation, []error{ErrInvalidAmount, ErrInvalidSelection, ErrInvalidMultiplier, ErrInvalidRequest,
		ErrMissingIdempotencyKey, ErrNotFound, ErrUnknownGame, ErrCashOutNotSupported}},
	{ClassConflict, []error{ErrConflict, ErrInvalidTransition, ErrRoundClosed, ErrAlreadyResolved, ErrAlreadySettled,
		ErrDuplicateRequest, ErrAlreadyPlaced, ErrTooLate}},
	{ClassResource, []error{ErrInsufficientBalance}},
}

// Classify mapeia um erro para a taxonomia usada pelo transporte e pelo driver.
// Qualquer erro desconhecido é tratado como transiente (infra).
func Classify(err error) Class {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.class
			}
		}
	}
	return ClassTransient
}
