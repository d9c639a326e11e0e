// internal/engine/data_engine.go
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/holoworlds/tradingmonitor/internal/config"
	"github.com/holoworlds/tradingmonitor/internal/exchange"
	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/internal/store"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

type shardKey struct {
	symbol       string
	baseInterval model.Interval
}

// DataEngine — реестр Stream Shard'ов, проиндексированный по
// (symbol, baseInterval). Единственная точка входа для стратегий, желающих
// подписаться на рыночные данные.
type DataEngine struct {
	adapter *exchange.Adapter
	store   *store.CandleStore
	cfg     config.EngineConfig

	mu     sync.Mutex
	shards map[shardKey]*Shard

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDataEngine создаёт движок, привязанный к жизненному циклу ctx. cfg
// определяет размеры буферов, троттлинг персиста и глубину бэкофилла для
// каждого создаваемого шарда (§4.5–4.6, §9).
func NewDataEngine(ctx context.Context, adapter *exchange.Adapter, st *store.CandleStore, cfg config.EngineConfig) *DataEngine {
	engCtx, cancel := context.WithCancel(ctx)
	return &DataEngine{
		adapter: adapter,
		store:   st,
		cfg:     cfg,
		shards:  make(map[shardKey]*Shard),
		ctx:     engCtx,
		cancel:  cancel,
	}
}

func (e *DataEngine) getOrCreateShard(symbol string, baseInterval model.Interval) *Shard {
	key := shardKey{symbol: symbol, baseInterval: baseInterval}

	e.mu.Lock()
	shard, ok := e.shards[key]
	if !ok {
		shard = NewShard(symbol, baseInterval, e.adapter, e.store, e.cfg)
		e.shards[key] = shard
	}
	e.mu.Unlock()

	if !ok {
		shard.Initialize(e.ctx)
	}
	return shard
}

// Subscribe разрешает целевой интервал в его базу, получает-или-создаёт
// нужный шард и пересылает подписку.
func (e *DataEngine) Subscribe(strategyID, symbol string, targetInterval model.Interval, callback func([]model.Candle)) string {
	base := targetInterval.BaseInterval()
	shard := e.getOrCreateShard(symbol, base)

	subID := strategyID + ":" + uuid.NewString()
	shard.Subscribe(Subscriber{ID: subID, TargetInterval: targetInterval, Callback: callback})
	return subID
}

// Unsubscribe снимает подписку и, если шард после этого простаивает и не
// прогрет, планирует его уничтожение.
func (e *DataEngine) Unsubscribe(symbol string, targetInterval model.Interval, subID string) {
	base := targetInterval.BaseInterval()
	key := shardKey{symbol: symbol, baseInterval: base}

	e.mu.Lock()
	shard, ok := e.shards[key]
	e.mu.Unlock()
	if !ok {
		return
	}

	shard.Unsubscribe(subID)

	if shard.IsIdle() {
		shard.ScheduleDestroy(func() {
			e.mu.Lock()
			delete(e.shards, key)
			e.mu.Unlock()
			logger.Info("🧹 data engine: шард %s %s уничтожен по простою", symbol, base)
		})
	}
}

// EnsureActive прогревает шарды всех поддерживаемых целевых интервалов для
// symbol и помечает их alwaysActive (используется Supervisor'ом при старте).
func (e *DataEngine) EnsureActive(symbol string) {
	for _, target := range model.AllIntervals {
		base := target.BaseInterval()
		shard := e.getOrCreateShard(symbol, base)
		shard.SetAlwaysActive(true)
		shard.AddActiveTargetInterval(target)
	}
}

// Shutdown останавливает все шарды и освобождает ресурсы движка.
func (e *DataEngine) Shutdown() {
	e.mu.Lock()
	shards := make([]*Shard, 0, len(e.shards))
	for _, s := range e.shards {
		shards = append(shards, s)
	}
	e.mu.Unlock()

	for _, s := range shards {
		s.Shutdown()
	}
	e.cancel()
}

// GetStats возвращает сводную диагностику по всем зарегистрированным шардам.
func (e *DataEngine) GetStats() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	shardStats := make([]map[string]interface{}, 0, len(e.shards))
	for _, s := range e.shards {
		shardStats = append(shardStats, s.GetStats())
	}
	return map[string]interface{}{
		"shard_count": len(e.shards),
		"shards":      shardStats,
	}
}
