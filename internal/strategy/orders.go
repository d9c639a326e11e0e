// internal/strategy/orders.go
package strategy

import (
	"strconv"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/model"
)

// tvExchange помечает биржу-получателя вебхука; сама биржа задаётся адресом
// Exchange Adapter'а, здесь это лишь этикетка полезной нагрузки.
const tvExchange = "BINANCE"

const defaultLeverage = 5

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func newOrder(cfg model.StrategyConfig, action, position string, qty, execPrice float64, reason string, now time.Time) model.Order {
	return model.Order{
		Action:            action,
		Position:          position,
		Symbol:            cfg.Symbol,
		Quantity:          formatQty(qty),
		TradeAmount:       qty * execPrice,
		Leverage:          defaultLeverage,
		Timestamp:         now.UnixMilli(),
		TVExchange:        tvExchange,
		StrategyName:      cfg.Name,
		TPLevel:           reason,
		ExecutionPrice:    execPrice,
		ExecutionQuantity: qty,
	}
}

// openActionAndLabel: open-long ⇒ buy/long; open-short ⇒ sell/short.
func openActionAndLabel(direction model.Direction) (action, position string) {
	if direction == model.DirectionShort {
		return "sell", "short"
	}
	return "buy", "long"
}

// closeActionAndLabel: close-long ⇒ sell/<long|flat>; close-short ⇒
// buy/<short|flat>. final marks whether this order fully depletes the
// position (position label becomes "flat") or is a partial ladder step
// (label stays the open direction).
func closeActionAndLabel(direction model.Direction, final bool) (action, position string) {
	if direction == model.DirectionShort {
		if final {
			return "buy", "flat"
		}
		return "buy", "short"
	}
	if final {
		return "sell", "flat"
	}
	return "sell", "long"
}

func buildOpenOrder(cfg model.StrategyConfig, direction model.Direction, qty, execPrice float64, reason string, now time.Time) model.Order {
	action, position := openActionAndLabel(direction)
	return newOrder(cfg, action, position, qty, execPrice, reason, now)
}

func buildCloseOrder(cfg model.StrategyConfig, direction model.Direction, qty, execPrice float64, reason string, final bool, now time.Time) model.Order {
	action, position := closeActionAndLabel(direction, final)
	return newOrder(cfg, action, position, qty, execPrice, reason, now)
}

// openPosition constructs a fresh PositionState opened at last.Close, sized
// by cfg.TradeAmount, with TP/SL ladders initialized unfired.
func openPosition(cfg model.StrategyConfig, direction model.Direction, last model.Candle) model.PositionState {
	qty := cfg.TradeAmount / last.Close
	pos := model.PositionState{
		Direction:    direction,
		InitialQty:   qty,
		RemainingQty: qty,
		EntryPrice:   last.Close,
		OpenTime:     last.OpenTime,
		TPLevelsHit:  make([]bool, len(cfg.TPLevels)),
		SLLevelsHit:  make([]bool, len(cfg.SLLevels)),
	}
	if direction == model.DirectionLong {
		pos.HighestPrice = last.High
	} else {
		pos.LowestPrice = last.Low
	}
	return pos
}
