package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrDuplicateRequest = errors.New("idempotency key reused with different parameters")
	ErrSameWallet       = errors.New("cannot transfer to the same user")
)

const (
	ScopeDeposit  = "deposit"
	ScopeTransfer = "transfer"

	ReasonDeposit     = "deposit"
	ReasonTransferOut = "transfer_out"
	ReasonTransferIn  = "transfer_in"
)

// Postgres implementa as operações de carteira expostas pelo wallet-service
type Postgres struct{ db *sqlx.DB }

func NewPostgres(db *sqlx.DB) *Postgres { return &Postgres{db: db} }

type Wallet struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	BalanceCents int64  `db:"balance_cents"`
}

// TransferResult carrega os dois lançamentos de uma transferência
type TransferResult struct {
	Debit    Entry
	Credit   Entry
	Replayed bool
}

func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func (p *Postgres) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// GetOrCreateWallet retorna a carteira do usuário, criando com saldo zero se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (Wallet, error) {
	var w Wallet
	err := sqlx.GetContext(ctx, p.db, &w, `
		INSERT INTO wallets (id, user_id, balance_cents) VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, user_id, balance_cents`, uuid.NewString(), userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("get or create wallet: %w", err)
	}
	return w, nil
}

// Deposit credita saldo. Com externalRef preenchido, repetir a chamada não duplica o crédito.
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (Entry, error) {
	var out Entry
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		if externalRef != "" {
			prev, err := ClaimKey(ctx, tx, Key{
				UserID:      userID,
				Key:         externalRef,
				Scope:       ScopeDeposit,
				Fingerprint: fingerprint(ScopeDeposit, strconv.FormatInt(amount, 10)),
			})
			if err != nil {
				return err
			}
			if prev != nil {
				return p.replayEntry(ctx, tx, prev, ScopeDeposit, fingerprint(ScopeDeposit, strconv.FormatInt(amount, 10)), &out)
			}
		}
		e, err := Credit(ctx, tx, userID, amount, ReasonDeposit, externalRef)
		if err != nil {
			return err
		}
		out = e
		if externalRef == "" {
			return nil
		}
		return CompleteKey(ctx, tx, userID, externalRef, strconv.FormatInt(e.ID, 10))
	})
	return out, err
}

func (p *Postgres) replayEntry(ctx context.Context, tx *sqlx.Tx, prev *Key, scope, fp string, out *Entry) error {
	if prev.Scope != scope || prev.Fingerprint != fp {
		return ErrDuplicateRequest
	}
	id, err := strconv.ParseInt(prev.ResultRef, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: key %q has no result", ErrDuplicateRequest, prev.Key)
	}
	e, err := GetEntry(ctx, tx, id)
	if err != nil {
		return err
	}
	*out = *e
	return nil
}

// Transfer move saldo entre usuários numa transação (atribuição de pontos pelo operador).
// A chave de idempotência é obrigatória e pertence ao remetente.
func (p *Postgres) Transfer(ctx context.Context, fromUser, toUser string, amount int64, key string) (TransferResult, error) {
	if fromUser == toUser {
		return TransferResult{}, ErrSameWallet
	}
	fp := fingerprint(ScopeTransfer, toUser, strconv.FormatInt(amount, 10))
	var out TransferResult
	err := p.inTx(ctx, func(tx *sqlx.Tx) error {
		prev, err := ClaimKey(ctx, tx, Key{UserID: fromUser, Key: key, Scope: ScopeTransfer, Fingerprint: fp})
		if err != nil {
			return err
		}
		if prev != nil {
			if prev.Scope != ScopeTransfer || prev.Fingerprint != fp {
				return ErrDuplicateRequest
			}
			debitID, creditID, ok := parsePair(prev.ResultRef)
			if !ok {
				return fmt.Errorf("%w: key %q has no result", ErrDuplicateRequest, key)
			}
			d, err := GetEntry(ctx, tx, debitID)
			if err != nil {
				return err
			}
			c, err := GetEntry(ctx, tx, creditID)
			if err != nil {
				return err
			}
			out = TransferResult{Debit: *d, Credit: *c, Replayed: true}
			return nil
		}

		ref := "transfer:" + key
		d, err := Debit(ctx, tx, fromUser, amount, ReasonTransferOut, ref)
		if err != nil {
			return err
		}
		c, err := Credit(ctx, tx, toUser, amount, ReasonTransferIn, ref)
		if err != nil {
			return err
		}
		out = TransferResult{Debit: d, Credit: c}
		return CompleteKey(ctx, tx, fromUser, key, fmt.Sprintf("%d:%d", d.ID, c.ID))
	})
	return out, err
}

func parsePair(ref string) (int64, int64, bool) {
	a, b, ok := strings.Cut(ref, ":")
	if !ok {
		return 0, 0, false
	}
	x, err1 := strconv.ParseInt(a, 10, 64)
	y, err2 := strconv.ParseInt(b, 10, 64)
	return x, y, err1 == nil && err2 == nil
}

// Ledger lista os lançamentos mais recentes do usuário
func (p *Postgres) Ledger(ctx context.Context, userID string, limit int) ([]Entry, error) {
	out := []Entry{}
	err := sqlx.SelectContext(ctx, p.db, &out, `
		SELECT id, wallet_id, user_id, operation_type, amount_cents, reason, reference, resulting_balance_cents, created_at
		FROM wallet_ledger WHERE user_id = $1
		ORDER BY id DESC LIMIT $2`, userID, limit)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
