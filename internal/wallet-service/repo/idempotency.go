package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Key é o registro de uma chamada mutável por (user_id, key)
type Key struct {
	UserID      string `db:"user_id"`
	Key         string `db:"key"`
	Scope       string `db:"scope"`
	Fingerprint string `db:"fingerprint"`
	ResultRef   string `db:"result_ref"`
}

// ClaimKey reserva a chave. Devolve nil quando reservou agora, ou o registro
// existente. Uma tx concorrente com a mesma chave espera o commit da primeira.
func ClaimKey(ctx context.Context, q sqlx.ExtContext, k Key) (*Key, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO idempotency_keys (user_id, key, scope, fingerprint)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, key) DO NOTHING`, k.UserID, k.Key, k.Scope, k.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil, nil
	}
	var prev Key
	err = sqlx.GetContext(ctx, q, &prev, `
		SELECT user_id, key, scope, fingerprint, result_ref
		FROM idempotency_keys WHERE user_id = $1 AND key = $2`, k.UserID, k.Key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: idempotency key %q vanished", ErrNotFound, k.Key)
	}
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

func CompleteKey(ctx context.Context, q sqlx.ExtContext, userID, key, resultRef string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE idempotency_keys SET result_ref = $3 WHERE user_id = $1 AND key = $2`, userID, key, resultRef)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: idempotency key %q", ErrNotFound, key)
	}
	return nil
}
