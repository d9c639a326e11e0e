// internal/store/candle_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

const (
	historyKeyPrefix = "candle:history:"
	activeKeyPrefix  = "candle:active:"
	activeTTL        = 1 * time.Hour
)

// CandleStore персистит per-(symbol,interval) серию свечей в Redis Sorted Set,
// проиндексированную по openTime, плюс отдельный кэш последней открытой свечи.
type CandleStore struct {
	client *redis.Client
	ctx    context.Context
}

// NewCandleStore оборачивает уже сконфигурированный клиент Redis.
func NewCandleStore(client *redis.Client) (*CandleStore, error) {
	if client == nil {
		return nil, ErrRedisUnavailable
	}
	return &CandleStore{client: client, ctx: context.Background()}, nil
}

// SeriesKey строит стабильный ключ серии из символа и интервала (§6:
// "<SYMBOL>_<BASEINTERVAL>").
func SeriesKey(symbol string, interval model.Interval) string {
	return fmt.Sprintf("%s_%s", symbol, interval)
}

// Load возвращает всю сохранённую серию по ключу в хронологическом порядке.
// Отсутствие ключа или повреждённые записи не являются ошибкой — движок
// должен переживать это откатом на полную дозагрузку истории (§4.1, §7).
func (s *CandleStore) Load(key string) []model.Candle {
	historyKey := historyKeyPrefix + key

	results, err := s.client.ZRangeByScore(s.ctx, historyKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		logger.Warn("⚠️ candle store: ошибка чтения серии %s: %v", key, err)
		return nil
	}

	candles := make([]model.Candle, 0, len(results))
	for _, raw := range results {
		var c model.Candle
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			logger.Warn("⚠️ candle store: повреждённая запись в серии %s, пропущена: %v", key, err)
			continue
		}
		candles = append(candles, c)
	}
	return candles
}

// Save перезаписывает всю серию атомарно (в рамках одной Redis-транзакции):
// удаляет старое содержимое ключа и заливает переданный срез заново.
func (s *CandleStore) Save(key string, candles []model.Candle) error {
	historyKey := historyKeyPrefix + key

	members := make([]*redis.Z, 0, len(candles))
	for _, c := range candles {
		payload, err := json.Marshal(c)
		if err != nil {
			logger.Warn("⚠️ candle store: не удалось сериализовать свечу %s @%d: %v", key, c.OpenTime, err)
			continue
		}
		members = append(members, &redis.Z{Score: float64(c.OpenTime), Member: payload})
	}

	_, err := s.client.TxPipelined(s.ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(s.ctx, historyKey)
		if len(members) > 0 {
			pipe.ZAdd(s.ctx, historyKey, members...)
		}
		return nil
	})
	if err != nil {
		logger.Warn("⚠️ candle store: ошибка записи серии %s: %v", key, err)
		return fmt.Errorf("store: save %s: %w", key, err)
	}
	return nil
}

// SaveActive кэширует текущую (ещё не закрытую) свечу отдельно с TTL, чтобы
// пережить рестарт процесса без полной перезаливки истории.
func (s *CandleStore) SaveActive(key string, c model.Candle) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("store: marshal active %s: %w", key, err)
	}
	if err := s.client.Set(s.ctx, activeKeyPrefix+key, payload, activeTTL).Err(); err != nil {
		logger.Warn("⚠️ candle store: ошибка кэширования активной свечи %s: %v", key, err)
		return fmt.Errorf("store: save active %s: %w", key, err)
	}
	return nil
}

// LoadActive возвращает закэшированную открытую свечу, если она есть.
func (s *CandleStore) LoadActive(key string) (model.Candle, bool) {
	raw, err := s.client.Get(s.ctx, activeKeyPrefix+key).Result()
	if err != nil {
		return model.Candle{}, false
	}
	var c model.Candle
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		logger.Warn("⚠️ candle store: повреждён кэш активной свечи %s: %v", key, err)
		return model.Candle{}, false
	}
	return c, true
}
