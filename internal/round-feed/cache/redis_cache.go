package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/fair-round-engine/pkg/contracts/events"
)

// tentativas de WATCH antes de desistir de um SetLatest
const maxWatchRetries = 3

// RedisCache guarda o último estado de rodada por jogo e o histórico de rodadas liquidadas
type RedisCache struct {
	Client     *redis.Client
	TTL        time.Duration
	HistoryLen int64
}

func NewRedisCache(c *redis.Client, ttl time.Duration, historyLen int64) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl, HistoryLen: historyLen}
}

func latestKey(gameType string) string { return "feed:latest:" + gameType }
func historyKey(gameType string) string { return "feed:history:" + gameType }

var stage = map[string]int{
	events.TypeRoundOpened:  1,
	events.TypeRoundLocked:  2,
	events.TypeRoundSettled: 3,
}

// Newer diz se a substitui b no estado mais recente do jogo.
// Eventos de rodadas diferentes podem chegar fora de ordem (partições distintas).
func Newer(a, b events.RoundEvent) bool {
	if a.SequenceNumber != b.SequenceNumber {
		return a.SequenceNumber > b.SequenceNumber
	}
	return stage[a.Type] > stage[b.Type]
}

// SetLatest grava o evento se ele for mais novo que o atual e devolve se aplicou
func (r *RedisCache) SetLatest(ctx context.Context, ev events.RoundEvent) (bool, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return false, err
	}
	key := latestKey(ev.GameType)

	applied := false
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var prev events.RoundEvent
			if json.Unmarshal(cur, &prev) == nil && !Newer(ev, prev) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, r.TTL)
			return nil
		})
		if err == nil {
			applied = true
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := r.Client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return applied, err
	}
	return false, redis.TxFailedErr
}

// PushHistory indexa a rodada liquidada por sequência. O mesmo payload
// reentregue vira o mesmo membro do sorted set, então não duplica.
func (r *RedisCache) PushHistory(ctx context.Context, ev events.RoundEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	key := historyKey(ev.GameType)
	_, err = r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, key, redis.Z{Score: float64(ev.SequenceNumber), Member: b})
		p.ZRemRangeByRank(ctx, key, 0, -r.HistoryLen-1)
		return nil
	})
	return err
}

// Latest retorna o último evento de rodada do jogo
func (r *RedisCache) Latest(ctx context.Context, gameType string) (events.RoundEvent, bool, error) {
	var ev events.RoundEvent
	b, err := r.Client.Get(ctx, latestKey(gameType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ev, false, nil
	}
	if err != nil {
		return ev, false, err
	}
	return ev, true, json.Unmarshal(b, &ev)
}

// History retorna as últimas rodadas liquidadas, mais recente primeiro
func (r *RedisCache) History(ctx context.Context, gameType string, limit int) ([]events.RoundEvent, error) {
	vals, err := r.Client.ZRevRange(ctx, historyKey(gameType), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]events.RoundEvent, 0, len(vals))
	for _, v := range vals {
		var ev events.RoundEvent
		if err := json.Unmarshal([]byte(v), &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
