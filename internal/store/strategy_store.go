// internal/store/strategy_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

// StrategyStore кэширует снапшоты стратегий в Redis-хэше (§4.9, §7),
// как быстрый путь чтения/записи рядом с постоянным хранилищем в Postgres.
// Супервизор пишет сюда на каждую мутацию и периодически, и читает отсюда
// первым делом при старте, до обращения к Postgres.
type StrategyStore struct {
	client *redis.Client
	ctx    context.Context
	key    string
}

// NewStrategyStore оборачивает клиент Redis. key — имя хэша, приходит из
// SupervisorConfig.SnapshotsFile.
func NewStrategyStore(client *redis.Client, key string) (*StrategyStore, error) {
	if client == nil {
		return nil, ErrRedisUnavailable
	}
	return &StrategyStore{client: client, ctx: context.Background(), key: key}, nil
}

// Save кэширует один снапшот стратегии по его ID.
func (s *StrategyStore) Save(snapshot model.StrategySnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("strategy store: marshal %s: %w", snapshot.Config.ID, err)
	}
	if err := s.client.HSet(s.ctx, s.key, snapshot.Config.ID, payload).Err(); err != nil {
		logger.Warn("⚠️ strategy store: ошибка записи снапшота %s: %v", snapshot.Config.ID, err)
		return fmt.Errorf("strategy store: save %s: %w", snapshot.Config.ID, err)
	}
	return nil
}

// Delete убирает снапшот стратегии из кэша.
func (s *StrategyStore) Delete(id string) error {
	if err := s.client.HDel(s.ctx, s.key, id).Err(); err != nil {
		return fmt.Errorf("strategy store: delete %s: %w", id, err)
	}
	return nil
}

// LoadAll возвращает все закэшированные снапшоты. Повреждённые записи
// пропускаются, а не валят загрузку целиком (§7).
func (s *StrategyStore) LoadAll() []model.StrategySnapshot {
	raws, err := s.client.HGetAll(s.ctx, s.key).Result()
	if err != nil {
		logger.Warn("⚠️ strategy store: ошибка чтения снапшотов: %v", err)
		return nil
	}
	out := make([]model.StrategySnapshot, 0, len(raws))
	for id, raw := range raws {
		var snap model.StrategySnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			logger.Warn("⚠️ strategy store: повреждён снапшот %s, пропущен: %v", id, err)
			continue
		}
		out = append(out, snap)
	}
	return out
}
