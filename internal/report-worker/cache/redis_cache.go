package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/rebate-verifier/pkg/contracts/events"
)

// RedisCache guarda o último resumo de execução por âncora
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// LatestKey gera a chave Redis da última execução de uma âncora
func LatestKey(anchor string) string { return "rebate:latest:" + anchor }

// SetLatest armazena o resumo como a execução mais recente da âncora
func (r *RedisCache) SetLatest(ctx context.Context, e events.ScenarioFinished) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, LatestKey(e.Anchor), b, r.TTL).Err()
}

// GetLatest lê o resumo em cache; redis.Nil quando não há entrada
func (r *RedisCache) GetLatest(ctx context.Context, anchor string) (events.ScenarioFinished, error) {
	var e events.ScenarioFinished
	b, err := r.Client.Get(ctx, LatestKey(anchor)).Bytes()
	if err != nil {
		return e, err
	}
	err = json.Unmarshal(b, &e)
	return e, err
}
