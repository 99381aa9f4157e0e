package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal Redis Pub/Sub do report-worker
// e repassa as atualizações aos clientes WebSocket via Hub
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	go func() {
		defer sub.Close() // encerra a inscrição ao sair do laço
		forward(ctx, log, sub.Channel(), hub)
	}()
}

// forward repassa as mensagens até o contexto acabar ou o canal ser fechado
func forward(ctx context.Context, log *zap.Logger, ch <-chan *redis.Message, hub *Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Info("ws subscriber channel closed")
				return
			}
			if msg == nil {
				continue
			}
			var upd RunUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
				log.Warn("ws subscriber unmarshal error", zap.Error(err))
				continue
			}
			hub.Broadcast(upd)
		}
	}
}
