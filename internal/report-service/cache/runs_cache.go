package cache

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	workercache "github.com/radieske/rebate-verifier/internal/report-worker/cache"
)

type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// GetLatest lê o resumo gravado pelo report-worker; false quando não há entrada
func (c *Cache) GetLatest(ctx context.Context, anchor string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, workercache.LatestKey(anchor)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}
