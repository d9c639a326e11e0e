// internal/strategy/runtime.go
package strategy

import (
	"strings"
	"sync"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/engine"
	"github.com/holoworlds/tradingmonitor/internal/indicator"
	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/internal/webhook"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

// Runtime owns one strategy's live lifecycle: subscribing to the Data
// Engine, running each delivered candle window through the Indicator
// Kernel and Evaluation Core, dispatching resulting orders, and persisting
// state through the caller-supplied onChange hook (installed by the
// Supervisor).
type Runtime struct {
	mu sync.Mutex

	cfg      model.StrategyConfig
	position model.PositionState
	stats    model.TradeStats
	lastTick model.Candle
	subID    string
	running  bool

	dataEngine *engine.DataEngine
	dispatcher *webhook.Dispatcher
	onChange   func(model.StrategySnapshot)
}

// NewRuntime constructs a Runtime for cfg. It does not start ingesting
// candles until Start is called.
func NewRuntime(cfg model.StrategyConfig, dataEngine *engine.DataEngine, dispatcher *webhook.Dispatcher, onChange func(model.StrategySnapshot)) *Runtime {
	return &Runtime{
		cfg:        cfg,
		position:   model.EmptyPosition(),
		dataEngine: dataEngine,
		dispatcher: dispatcher,
		onChange:   onChange,
	}
}

// Restore seeds position/stats from a persisted snapshot before Start is
// called (used by the Supervisor when reloading strategies at boot).
func (r *Runtime) Restore(position model.PositionState, stats model.TradeStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = position
	r.stats = stats
}

// Start subscribes to the Data Engine for cfg.Symbol/cfg.Interval and, if
// the strategy already carries a manual takeover, installs the synthetic
// position before the first live tick arrives.
func (r *Runtime) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	cfg := r.cfg
	manual := r.cfg.ManualTakeover
	r.mu.Unlock()

	if manual {
		r.installManualTakeover()
	}

	subID := r.dataEngine.Subscribe(cfg.ID, cfg.Symbol, cfg.Interval, r.onCandles)
	r.mu.Lock()
	r.subID = subID
	r.mu.Unlock()

	logger.Info("🚀 стратегия %s (%s %s) запущена", cfg.Name, cfg.Symbol, cfg.Interval)
}

// Stop unsubscribes from the Data Engine. The runtime can be restarted via
// Start afterward (used by UpdateConfig on a symbol/interval change).
func (r *Runtime) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cfg := r.cfg
	subID := r.subID
	r.subID = ""
	r.mu.Unlock()

	if subID != "" {
		r.dataEngine.Unsubscribe(cfg.Symbol, cfg.Interval, subID)
	}
	logger.Info("🛑 стратегия %s остановлена", cfg.Name)
}

// UpdateConfig replaces the running configuration. A change to symbol or
// interval requires a full stop/clear/start cycle since candle history for
// the new pair must come from a different Stream Shard. A transition into
// manual takeover installs the synthetic position; a transition out of it
// simply resumes automated evaluation from whatever position is currently
// open.
func (r *Runtime) UpdateConfig(newCfg model.StrategyConfig) {
	r.mu.Lock()
	oldCfg := r.cfg
	wasRunning := r.running
	r.mu.Unlock()

	symbolOrIntervalChanged := !strings.EqualFold(oldCfg.Symbol, newCfg.Symbol) || oldCfg.Interval != newCfg.Interval

	if symbolOrIntervalChanged && wasRunning {
		r.Stop()
	}

	r.mu.Lock()
	r.cfg = newCfg
	if symbolOrIntervalChanged {
		r.position = model.EmptyPosition()
		r.stats = model.TradeStats{}
	}
	takingOver := newCfg.ManualTakeover && !oldCfg.ManualTakeover
	r.mu.Unlock()

	if takingOver {
		r.installManualTakeover()
	}

	if symbolOrIntervalChanged && wasRunning {
		r.Start()
	}

	r.notifyChange()
}

// ManualOrder applies an operator-issued LONG/SHORT/FLAT command directly:
// it installs the corresponding position state and emits exactly one order,
// without routing through the Evaluation Core. A FLAT command closes
// whatever is open (no-op if already flat) and never counts toward the
// daily trade cap; a LONG/SHORT command installs that position directly —
// replacing an existing opposite one in a single step, not a close-then-
// reopen pair — and counts once, since it is a real non-FLAT transition.
func (r *Runtime) ManualOrder(direction model.Direction) {
	r.mu.Lock()
	cfg := r.cfg
	last := r.lastTick
	position := r.position
	stats := r.stats
	r.mu.Unlock()

	if last.Close <= 0 {
		logger.Warn("⚠️ стратегия %s: нет актуальной цены для ручного ордера", cfg.Name)
		return
	}

	var order model.Order
	var newPosition model.PositionState

	if direction == model.DirectionFlat {
		if position.IsFlat() {
			return
		}
		order = buildCloseOrder(cfg, position.Direction, position.RemainingQty, last.Close, "manual close", true, time.Now())
		newPosition = model.EmptyPosition()
	} else {
		newPosition = openPosition(cfg, direction, last)
		order = buildOpenOrder(cfg, direction, newPosition.InitialQty, last.Close, "manual order", time.Now())
		stats.DailyTradeCount++
	}

	r.dispatcher.Send(order)

	r.mu.Lock()
	r.position = newPosition
	r.stats = stats
	r.mu.Unlock()
	r.notifyChange()
}

// installManualTakeover replaces the current position with the synthetic
// one described by cfg.TakeoverDirection/TakeoverQuantity and emits an
// "Init" order announcing it to the receiving exchange bot. A FLAT direction
// resets the position to empty without emitting an order; an unset
// direction leaves the position untouched.
func (r *Runtime) installManualTakeover() {
	r.mu.Lock()
	cfg := r.cfg
	price := r.lastTick.Close
	r.mu.Unlock()

	if cfg.TakeoverDirection == model.DirectionFlat {
		r.mu.Lock()
		r.position = model.EmptyPosition()
		r.mu.Unlock()
		r.notifyChange()
		return
	}
	if cfg.TakeoverDirection == "" {
		return
	}
	if price <= 0 {
		price = cfg.TradeAmount // best-effort fallback until the first tick arrives
	}

	pos := model.PositionState{
		Direction:    cfg.TakeoverDirection,
		InitialQty:   cfg.TakeoverQuantity,
		RemainingQty: cfg.TakeoverQuantity,
		EntryPrice:   price,
		TPLevelsHit:  make([]bool, len(cfg.TPLevels)),
		SLLevelsHit:  make([]bool, len(cfg.SLLevels)),
	}
	if cfg.TakeoverDirection == model.DirectionLong {
		pos.HighestPrice = price
	} else {
		pos.LowestPrice = price
	}

	order := buildOpenOrder(cfg, cfg.TakeoverDirection, cfg.TakeoverQuantity, price, "Init", time.Now())
	r.dispatcher.Send(order)

	r.mu.Lock()
	r.position = pos
	r.mu.Unlock()
	r.notifyChange()
}

// onCandles is the Data Engine's per-tick callback. It runs the identity
// check first: a candle batch whose leading symbol does not match the
// configured one is dropped with a critical log and produces no state
// change at all (§8's identity guard).
func (r *Runtime) onCandles(candles []model.Candle) {
	if len(candles) == 0 {
		return
	}
	if !strings.EqualFold(candles[0].Symbol, r.cfg.Symbol) {
		logger.Error("🚨 стратегия %s: несовпадение символа в потоке (%s ≠ %s), тик отброшен", r.cfg.Name, candles[0].Symbol, r.cfg.Symbol)
		return
	}

	r.mu.Lock()
	cfg := r.cfg
	position := r.position
	stats := r.stats
	r.lastTick = candles[len(candles)-1]
	r.mu.Unlock()

	params := indicator.MACDParams{Fast: cfg.MACDFast, Slow: cfg.MACDSlow, Signal: cfg.MACDSignal}
	if params.Fast <= 0 || params.Slow <= 0 || params.Signal <= 0 {
		params = indicator.DefaultMACDParams
	}
	enriched := indicator.Enrich(candles, params)

	newPosition, newStats, orders := Evaluate(enriched, cfg, position, stats, time.Now())

	r.mu.Lock()
	r.position = newPosition
	r.stats = newStats
	r.mu.Unlock()

	for _, order := range orders {
		r.dispatcher.Send(order)
	}
	if len(orders) > 0 {
		r.notifyChange()
	}
}

func (r *Runtime) notifyChange() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifyChangeLocked()
}

func (r *Runtime) notifyChangeLocked() {
	if r.onChange == nil {
		return
	}
	r.onChange(model.StrategySnapshot{Config: r.cfg, Position: r.position, Stats: r.stats})
}

// Snapshot returns the current persistable state of the strategy.
func (r *Runtime) Snapshot() model.StrategySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.StrategySnapshot{Config: r.cfg, Position: r.position, Stats: r.stats}
}
