// Package cache concentra o uso de Redis pelo round-service.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// release só apaga a chave se ela ainda pertence a quem adquiriu
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker é um lock curto com TTL em Redis (SET NX PX). Serve para barrar
// requisições duplicadas em voo e ticks redundantes entre réplicas. A correção
// não depende dele: quem garante unicidade é o banco.
type Locker struct {
	R      *redis.Client
	Prefix string
}

func NewLocker(r *redis.Client, prefix string) *Locker { return &Locker{R: r, Prefix: prefix} }

func (l *Locker) key(k string) string { return l.Prefix + "lock:" + k }

// TryAcquire devolve ok=false se outra instância segura a chave
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	k := l.key(key)
	ok, err := l.R.SetNX(ctx, k, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// contexto próprio: o da requisição pode já ter sido cancelado
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = release.Run(ctx, l.R, []string{k}, token).Err()
	}, true, nil
}
