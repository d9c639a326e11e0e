// internal/engine/shard.go
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/config"
	"github.com/holoworlds/tradingmonitor/internal/exchange"
	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/internal/resample"
	"github.com/holoworlds/tradingmonitor/internal/store"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

// defaultEngineConfig используется тестами и любыми вызывающими, которым не
// нужна настройка через окружение — те же значения, что и значения по
// умолчанию в internal/config.
var defaultEngineConfig = config.EngineConfig{
	MaxBaseCandles:      5000,
	DerivedCandlesCap:   1000,
	ShardKeepAlive:      60 * time.Second,
	ReconnectBackoff:    5 * time.Second,
	PersistThrottle:     60 * time.Second,
	HistoricalPageLimit: 1500,
	HistoricalPages:     3,
}

// candleStore — подмножество *store.CandleStore, которое использует Shard.
// Сужено до интерфейса, чтобы тесты могли подставить фейк без живого Redis.
type candleStore interface {
	Load(key string) []model.Candle
	Save(key string, candles []model.Candle) error
}

// Subscriber — регистрация одного получателя тиков конкретного целевого
// интервала.
type Subscriber struct {
	ID             string
	TargetInterval model.Interval
	Callback       func([]model.Candle)
}

// Shard — Stream Shard: единственная upstream-подписка на (symbol,
// baseInterval), фан-аут на подписчиков, владение базовым буфером и
// производными кэшами.
type Shard struct {
	symbol       string
	baseInterval model.Interval

	adapter *exchange.Adapter
	store   candleStore

	backoff time.Duration

	maxBaseCandles      int
	derivedCandlesCap   int
	persistThrottleDur  time.Duration
	destroyDelay        time.Duration
	historicalPages     int
	historicalPageLimit int

	mu                    sync.Mutex
	baseCandles           []model.Candle
	derivedCache          map[model.Interval][]model.Candle
	subscribers           map[string]Subscriber
	alwaysActive          bool
	activeTargetIntervals map[model.Interval]bool
	destroyTimer          *time.Timer
	lastPersistAt         time.Time
	initialized           bool

	liveCancel context.CancelFunc
	onDestroy  func()
}

// NewShard создаёт (но не запускает) шард для (symbol,baseInterval),
// настроенный значениями из cfg (§4.5–4.6, §9).
func NewShard(symbol string, baseInterval model.Interval, adapter *exchange.Adapter, st candleStore, cfg config.EngineConfig) *Shard {
	return &Shard{
		symbol:                symbol,
		baseInterval:          baseInterval,
		adapter:               adapter,
		store:                 st,
		backoff:               cfg.ReconnectBackoff,
		maxBaseCandles:        cfg.MaxBaseCandles,
		derivedCandlesCap:     cfg.DerivedCandlesCap,
		persistThrottleDur:    cfg.PersistThrottle,
		destroyDelay:          cfg.ShardKeepAlive,
		historicalPages:       cfg.HistoricalPages,
		historicalPageLimit:   cfg.HistoricalPageLimit,
		derivedCache:          make(map[model.Interval][]model.Candle),
		subscribers:           make(map[string]Subscriber),
		activeTargetIntervals: make(map[model.Interval]bool),
	}
}

// Initialize загружает историю (сначала из Candle Store; если буфер пуст —
// полный REST-бэкофилл, если непуст — точечно догружает REST'ом разрыв
// между последней персистированной свечой и текущим моментом) и запускает
// live-подписку по WS. Может вызываться повторно без эффекта. Согласно §9,
// вызывающие обязаны переживать subscribe() во время выполнения этого
// метода — Data Engine помечает alwaysActive до его завершения при
// pre-warm.
func (s *Shard) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()

	key := store.SeriesKey(s.symbol, s.baseInterval)
	candles := s.store.Load(key)
	if len(candles) == 0 {
		candles = s.backfill()
	} else if gap := s.fetchGap(maxOpenTime(candles)); len(gap) > 0 {
		candles = append(candles, gap...)
	}

	s.mu.Lock()
	s.baseCandles = capCandles(dedupeSorted(sortCandles(candles)), s.maxBaseCandles)
	s.mu.Unlock()

	liveCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.liveCancel = cancel
	s.mu.Unlock()

	live := exchange.NewLive(s.adapter, s.symbol, s.baseInterval, s.backoff)
	go live.Run(liveCtx, s.onLiveTick)
}

// backfill постранично догружает историю REST'ом, не превышая
// s.historicalPages страниц по s.historicalPageLimit свечей, идя назад от
// текущего момента.
func (s *Shard) backfill() []model.Candle {
	var all []model.Candle
	endMs := int64(0)
	for page := 0; page < s.historicalPages; page++ {
		batch := s.adapter.FetchHistorical(s.symbol, s.baseInterval, 0, endMs)
		if len(batch) == 0 {
			break
		}
		all = append(batch, all...)
		endMs = batch[0].OpenTime
		if len(batch) < s.historicalPageLimit {
			break
		}
	}
	return all
}

// fetchGap постранично догружает REST'ом свечи от lastBaseTime+1 до текущего
// момента, закрывая разрыв между тем, что персистировано в Candle Store, и
// текущим временем (§4.5: "if any, fetch incrementally from lastBaseTime+1
// to now").
func (s *Shard) fetchGap(lastBaseTime int64) []model.Candle {
	stepMs := s.baseInterval.MustMillis()
	startMs := lastBaseTime + 1

	var gap []model.Candle
	for page := 0; page < s.historicalPages; page++ {
		batch := s.adapter.FetchHistorical(s.symbol, s.baseInterval, startMs, 0)
		if len(batch) == 0 {
			break
		}
		gap = append(gap, batch...)
		startMs = batch[len(batch)-1].OpenTime + stepMs
		if len(batch) < s.historicalPageLimit {
			break
		}
	}
	return gap
}

// Shutdown останавливает live-подписку и персистит финальный базовый буфер
// (§4.5: "уничтожение прерывает upstream-сокет, персистит и очищает
// состояние") — без этого до persistThrottle секунд последних свечей
// терялись бы на каждом teardown'е шарда.
func (s *Shard) Shutdown() {
	s.mu.Lock()
	if s.liveCancel != nil {
		s.liveCancel()
	}
	if s.destroyTimer != nil {
		s.destroyTimer.Stop()
	}
	snapshot := model.CloneCandles(s.baseCandles)
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	key := store.SeriesKey(s.symbol, s.baseInterval)
	if err := s.store.Save(key, snapshot); err != nil {
		logger.Warn("⚠️ shard %s %s: не удалось персистировать серию при остановке: %v", s.symbol, s.baseInterval, err)
	}
}

// Subscribe регистрирует подписчика на целевой интервал: отменяет
// запланированное уничтожение, немедленно доставляет текущий срез.
func (s *Shard) Subscribe(sub Subscriber) {
	s.mu.Lock()
	if s.destroyTimer != nil {
		s.destroyTimer.Stop()
		s.destroyTimer = nil
	}
	s.subscribers[sub.ID] = sub
	view := s.viewLocked(sub.TargetInterval)
	s.mu.Unlock()

	sub.Callback(view)
}

// Unsubscribe снимает подписчика; если по целевому интервалу больше нет
// подписчиков (и он не входит в activeTargetIntervals), кэш очищается.
func (s *Shard) Unsubscribe(subID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[subID]
	if !ok {
		return
	}
	delete(s.subscribers, subID)

	if !s.activeTargetIntervals[sub.TargetInterval] && !s.hasSubscriberForLocked(sub.TargetInterval) {
		delete(s.derivedCache, sub.TargetInterval)
	}
}

func (s *Shard) hasSubscriberForLocked(interval model.Interval) bool {
	for _, sub := range s.subscribers {
		if sub.TargetInterval == interval {
			return true
		}
	}
	return false
}

// IsIdle сообщает, есть ли основания уничтожить шард прямо сейчас.
func (s *Shard) IsIdle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0 && !s.alwaysActive
}

// ScheduleDestroy армирует таймер уничтожения на destroyDelay, если шард
// простаивает. Если он уже не простаивает — no-op.
func (s *Shard) ScheduleDestroy(onDestroyed func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alwaysActive || len(s.subscribers) > 0 {
		return
	}
	if s.destroyTimer != nil {
		return
	}
	s.destroyTimer = time.AfterFunc(s.destroyDelay, func() {
		s.mu.Lock()
		stillIdle := len(s.subscribers) == 0 && !s.alwaysActive
		s.mu.Unlock()
		if stillIdle {
			s.Shutdown()
			onDestroyed()
		}
	})
}

// SetAlwaysActive помечает шард как pre-warmed. Необратимо: единственный
// разрешённый переход false→true.
func (s *Shard) SetAlwaysActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v && !s.alwaysActive {
		s.alwaysActive = true
		if s.destroyTimer != nil {
			s.destroyTimer.Stop()
			s.destroyTimer = nil
		}
	}
}

// AddActiveTargetInterval регистрирует интервал, чей производный кэш должен
// прогреваться на каждом тике, даже без подписчиков (pre-warm).
func (s *Shard) AddActiveTargetInterval(i model.Interval) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTargetIntervals[i] = true
}

// onLiveTick обрабатывает один живой тик от Exchange Adapter: обновляет
// базовый буфер, инвалидирует производные кэши, доставляет подписчикам.
func (s *Shard) onLiveTick(c model.Candle) {
	var toNotify []Subscriber
	var persistNow bool
	var snapshot []model.Candle

	s.mu.Lock()
	s.baseCandles = upsertCandle(s.baseCandles, c, s.maxBaseCandles)
	s.derivedCache = make(map[model.Interval][]model.Candle)

	if time.Since(s.lastPersistAt) >= s.persistThrottleDur {
		persistNow = true
		s.lastPersistAt = time.Now()
		snapshot = model.CloneCandles(s.baseCandles)
	}

	targets := make(map[model.Interval][]model.Candle)
	for interval := range s.activeTargetIntervals {
		targets[interval] = s.viewLocked(interval)
	}
	for _, sub := range s.subscribers {
		if _, ok := targets[sub.TargetInterval]; !ok {
			targets[sub.TargetInterval] = s.viewLocked(sub.TargetInterval)
		}
		toNotify = append(toNotify, sub)
	}
	s.mu.Unlock()

	if persistNow {
		key := store.SeriesKey(s.symbol, s.baseInterval)
		if err := s.store.Save(key, snapshot); err != nil {
			logger.Warn("⚠️ shard %s %s: не удалось персистировать серию: %v", s.symbol, s.baseInterval, err)
		}
	}

	for _, sub := range toNotify {
		sub.Callback(targets[sub.TargetInterval])
	}
}

// viewLocked возвращает представление буфера для целевого интервала,
// используя кэш при наличии. Вызывающий должен держать s.mu.
func (s *Shard) viewLocked(target model.Interval) []model.Candle {
	if target == s.baseInterval {
		return capCandles(model.CloneCandles(s.baseCandles), s.derivedCandlesCap)
	}
	if cached, ok := s.derivedCache[target]; ok {
		return cached
	}

	resampled, err := resample.Resample(s.baseCandles, target.BaseInterval(), target)
	if err != nil {
		logger.Warn("⚠️ shard %s %s: ошибка ресемплинга в %s: %v", s.symbol, s.baseInterval, target, err)
		resampled = nil
	}
	resampled = capCandles(resampled, s.derivedCandlesCap)
	s.derivedCache[target] = resampled
	return resampled
}

// GetStats возвращает диагностический снимок шарда для внешнего опроса.
func (s *Shard) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"symbol":        s.symbol,
		"base_interval": string(s.baseInterval),
		"base_candles":  len(s.baseCandles),
		"subscribers":   len(s.subscribers),
		"always_active": s.alwaysActive,
		"derived_cached": len(s.derivedCache),
	}
}

func sortCandles(candles []model.Candle) []model.Candle {
	sort.Slice(candles, func(i, j int) bool { return candles[i].OpenTime < candles[j].OpenTime })
	return candles
}

func maxOpenTime(candles []model.Candle) int64 {
	var max int64
	for _, c := range candles {
		if c.OpenTime > max {
			max = c.OpenTime
		}
	}
	return max
}

// dedupeSorted collapses consecutive candles with equal OpenTime, keeping
// the later one — mirrors upsertCandle's overwrite-in-place rule for the
// case where a gap fetch's first candle re-covers the store's last one.
func dedupeSorted(candles []model.Candle) []model.Candle {
	if len(candles) == 0 {
		return candles
	}
	out := candles[:1]
	for _, c := range candles[1:] {
		if c.OpenTime == out[len(out)-1].OpenTime {
			out[len(out)-1] = c
			continue
		}
		out = append(out, c)
	}
	return out
}

func capCandles(candles []model.Candle, max int) []model.Candle {
	if len(candles) <= max {
		return candles
	}
	return candles[len(candles)-max:]
}

// upsertCandle overwrites the last entry if openTime matches, else appends;
// trims from the head if the cap is exceeded (§3 StreamShard invariants).
func upsertCandle(candles []model.Candle, c model.Candle, max int) []model.Candle {
	if len(candles) > 0 && candles[len(candles)-1].OpenTime == c.OpenTime {
		candles[len(candles)-1] = c
		return candles
	}
	candles = append(candles, c)
	if len(candles) > max {
		candles = candles[len(candles)-max:]
	}
	return candles
}
