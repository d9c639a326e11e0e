// internal/store/log_store.go
package store

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

const (
	orderLogKey    = "logs"
	orderLogMaxLen = 500
)

// LogStore персистит эмитированные ордера кольцевым списком в Redis
// (newest first, cap 500), как описано в §6 "Persistence layout".
type LogStore struct {
	client *redis.Client
	ctx    context.Context
}

func NewLogStore(client *redis.Client) (*LogStore, error) {
	if client == nil {
		return nil, ErrRedisUnavailable
	}
	return &LogStore{client: client, ctx: context.Background()}, nil
}

// Append добавляет ордер в голову списка и обрезает его до orderLogMaxLen.
func (s *LogStore) Append(order model.Order) {
	payload, err := json.Marshal(order)
	if err != nil {
		logger.Warn("⚠️ log store: не удалось сериализовать ордер: %v", err)
		return
	}
	if err := s.client.LPush(s.ctx, orderLogKey, payload).Err(); err != nil {
		logger.Warn("⚠️ log store: ошибка записи ордера: %v", err)
		return
	}
	if err := s.client.LTrim(s.ctx, orderLogKey, 0, orderLogMaxLen-1).Err(); err != nil {
		logger.Warn("⚠️ log store: ошибка обрезки лога ордеров: %v", err)
	}
}

// Recent возвращает до n последних ордеров, самый новый первым.
func (s *LogStore) Recent(n int) []model.Order {
	raws, err := s.client.LRange(s.ctx, orderLogKey, 0, int64(n-1)).Result()
	if err != nil {
		logger.Warn("⚠️ log store: ошибка чтения лога ордеров: %v", err)
		return nil
	}
	out := make([]model.Order, 0, len(raws))
	for _, raw := range raws {
		var o model.Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out
}
