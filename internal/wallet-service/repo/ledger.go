package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

const (
	OpCredit = "CREDIT"
	OpDebit  = "DEBIT"
)

// Entry é uma linha imutável do wallet_ledger
type Entry struct {
	ID               int64     `db:"id" json:"id"`
	WalletID         string    `db:"wallet_id" json:"walletId"`
	UserID           string    `db:"user_id" json:"userId"`
	Direction        string    `db:"operation_type" json:"direction"`
	Amount           int64     `db:"amount_cents" json:"amount_cents"`
	Reason           string    `db:"reason" json:"reason"`
	Reference        string    `db:"reference" json:"reference"`
	ResultingBalance int64     `db:"resulting_balance_cents" json:"resulting_balance_cents"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Debit decrementa o saldo num único UPDATE condicional e grava o lançamento.
// q pode ser a conexão ou uma transação aberta pelo chamador.
func Debit(ctx context.Context, q sqlx.ExtContext, userID string, amount int64, reason, reference string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	var walletID string
	var balance int64
	err := q.QueryRowxContext(ctx, `
		UPDATE wallets
		SET balance_cents = balance_cents - $1, version = version + 1, updated_at = NOW()
		WHERE user_id = $2 AND balance_cents >= $1
		RETURNING id, balance_cents`, amount, userID).Scan(&walletID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: user %s", ErrInsufficientFunds, userID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("debit wallet: %w", err)
	}
	return insertEntry(ctx, q, walletID, userID, OpDebit, amount, reason, reference, balance)
}

// Credit incrementa o saldo, criando a carteira se ainda não existir
func Credit(ctx context.Context, q sqlx.ExtContext, userID string, amount int64, reason, reference string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	var walletID string
	var balance int64
	err := q.QueryRowxContext(ctx, `
		INSERT INTO wallets (id, user_id, balance_cents)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance_cents = wallets.balance_cents + EXCLUDED.balance_cents,
		    version = wallets.version + 1,
		    updated_at = NOW()
		RETURNING id, balance_cents`, uuid.NewString(), userID, amount).Scan(&walletID, &balance)
	if err != nil {
		return Entry{}, fmt.Errorf("credit wallet: %w", err)
	}
	return insertEntry(ctx, q, walletID, userID, OpCredit, amount, reason, reference, balance)
}

func insertEntry(ctx context.Context, q sqlx.ExtContext, walletID, userID, op string, amount int64, reason, reference string, balance int64) (Entry, error) {
	e := Entry{
		WalletID:         walletID,
		UserID:           userID,
		Direction:        op,
		Amount:           amount,
		Reason:           reason,
		Reference:        reference,
		ResultingBalance: balance,
	}
	err := q.QueryRowxContext(ctx, `
		INSERT INTO wallet_ledger (wallet_id, user_id, operation_type, amount_cents, reason, reference, resulting_balance_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		walletID, userID, op, amount, reason, reference, balance).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	return e, nil
}

// GetEntry busca um lançamento pelo id
func GetEntry(ctx context.Context, q sqlx.QueryerContext, id int64) (*Entry, error) {
	var e Entry
	err := sqlx.GetContext(ctx, q, &e, `
		SELECT id, wallet_id, user_id, operation_type, amount_cents, reason, reference, resulting_balance_cents, created_at
		FROM wallet_ledger WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ledger entry %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
