// internal/exchange/ws.go
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

const wsPingInterval = 20 * time.Second

// klinePush — форма пуш-фрейма §6: {data:{e:"kline", s, k:{t,o,h,l,c,v,x}}}.
type klinePush struct {
	Data struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime json.Number `json:"t"`
			Open     json.Number `json:"o"`
			High     json.Number `json:"h"`
			Low      json.Number `json:"l"`
			Close    json.Number `json:"c"`
			Volume   json.Number `json:"v"`
			Closed   bool        `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// ParseLive декодирует один пуш-фрейм в свечу. Кадры, не относящиеся к kline
// (или не разбираемые), возвращают (Candle{}, false) без ошибки — сбои
// разбора не должны прерывать чтение потока (§4.2, §7).
func ParseLive(raw []byte) (model.Candle, bool) {
	var msg klinePush
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.Candle{}, false
	}
	if msg.Data.Event != "kline" || msg.Data.Symbol == "" {
		return model.Candle{}, false
	}

	k := msg.Data.Kline
	openTime, err1 := k.OpenTime.Int64()
	open, err2 := k.Open.Float64()
	high, err3 := k.High.Float64()
	low, err4 := k.Low.Float64()
	closePrice, err5 := k.Close.Float64()
	volume, err6 := k.Volume.Float64()
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil || err6 != nil {
		return model.Candle{}, false
	}

	return model.Candle{
		Symbol:   msg.Data.Symbol,
		OpenTime: openTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		IsClosed: k.Closed,
	}, true
}

type wsSubscribeMsg struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type wsPingMsg struct {
	Op string `json:"op"`
}

// SubscribeTopic формирует имя канала для пары (symbol,interval) — §6:
// "<S-lowercase>@kline_<I>".
func SubscribeTopic(symbol string, interval model.Interval) string {
	return strings.ToLower(symbol) + "@kline_" + string(interval)
}

// Live — один активный WS-канал live-тиков для (symbol,baseInterval).
// Реализует чтение цикла подключения, реконнект с backoff и рассылку
// разобранных свечей вызывающей стороне (Stream Shard) через onCandle.
type Live struct {
	adapter  *Adapter
	symbol   string
	interval model.Interval
	backoff  time.Duration
}

// NewLive создаёт держатель WS-подписки для одного (symbol,baseInterval).
func NewLive(adapter *Adapter, symbol string, interval model.Interval, backoff time.Duration) *Live {
	return &Live{adapter: adapter, symbol: symbol, interval: interval, backoff: backoff}
}

// Run блокируется, переподключаясь с фиксированным (плюс джиттер) backoff,
// пока ctx не будет отменён. Каждая успешно разобранная свеча передаётся в
// onCandle. Возвращает управление только когда ctx.Done().
func (l *Live) Run(ctx context.Context, onCandle func(model.Candle)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.runConnection(ctx, onCandle); err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Warn("⚠️ exchange ws: соединение %s %s прервано: %v, повтор через %v", l.symbol, l.interval, err, l.backoff)
			select {
			case <-time.After(jitter(l.backoff)):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (l *Live) runConnection(ctx context.Context, onCandle func(model.Candle)) error {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, l.adapter.wsBaseURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	topic := SubscribeTopic(l.symbol, l.interval)
	sub := wsSubscribeMsg{Op: "subscribe", Args: []string{topic}}
	if err := wsjson.Write(dialCtx, conn, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	logger.Info("📡 exchange ws: подписан на %s", topic)

	pingStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := wsjson.Write(dialCtx, conn, wsPingMsg{Op: "ping"}); err != nil {
					return
				}
			case <-pingStop:
				return
			case <-dialCtx.Done():
				return
			}
		}
	}()
	defer close(pingStop)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		var raw json.RawMessage
		if err := wsjson.Read(dialCtx, conn, &raw); err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("read: %w", err)
			}
		}

		if candle, ok := ParseLive(raw); ok {
			onCandle(candle)
		}
	}
}

// jitter спрямляет thundering herd на реконнекте, отклоняя базовую задержку
// на ±20% (§9 supplement over the fixed 5s reconnect).
func jitter(base time.Duration) time.Duration {
	spread := float64(base) * 0.2
	offset := (pseudoRand() - 0.5) * 2 * spread
	return time.Duration(float64(base) + offset)
}

// pseudoRand возвращает детерминированный по времени процесс запуска
// псевдослучайный дробный сдвиг в [0,1). math/rand не используется, чтобы не
// тянуть его как зависимость ради одного джиттера; точность здесь не важна,
// только разброс между шардами, реконнектящимися одновременно.
func pseudoRand() float64 {
	n := time.Now().UnixNano()
	v := (n % 997) // простое число для лучшего рассеивания младших разрядов
	return float64(v) / 997.0
}
