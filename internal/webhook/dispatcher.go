// internal/webhook/dispatcher.go
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

const sendTimeout = 5 * time.Second

// Dispatcher фигурирует как fire-and-forget POST-отправитель ордеров на
// внешний вебхук (например, TradingView-совместимый вебхук exchange-бота).
// Ошибки логируются, ретраев нет — Evaluation Core уже спроецировал полное
// намерение в ордере, повторная доставка не восстановит согласованность
// состояния лучше, чем следующий тик.
type Dispatcher struct {
	url        string
	httpClient *http.Client
	sinks      []func(model.Order)
}

// NewDispatcher создаёт диспетчер, отправляющий ордера POST-запросом на url.
// Пустой url отключает саму отправку (используется в тестах и при локальном
// прогоне без внешнего приёмника), но переданные sinks всё равно
// вызываются — аудиторский след ордера не должен зависеть от того,
// настроен ли внешний вебхук.
func NewDispatcher(url string, sinks ...func(model.Order)) *Dispatcher {
	return &Dispatcher{
		url:        url,
		httpClient: &http.Client{Timeout: sendTimeout},
		sinks:      sinks,
	}
}

// Send записывает order во все зарегистрированные sinks (лог ордеров в
// Redis, аудит в Postgres — см. internal/store и internal/storage/postgres),
// затем отправляет его как JSON POST на внешний вебхук. Запрос выполняется
// синхронно и блокирует вызывающего не дольше sendTimeout; ошибки доставки
// только логируются и вызывающему не возвращаются.
func (d *Dispatcher) Send(order model.Order) {
	for _, sink := range d.sinks {
		sink(order)
	}

	if d.url == "" {
		logger.Debug("🔕 webhook: URL не задан, ордер %s/%s %s пропущен", order.Action, order.Position, order.Symbol)
		return
	}

	body, err := json.Marshal(order)
	if err != nil {
		logger.Error("❌ webhook: не удалось сериализовать ордер: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		logger.Error("❌ webhook: не удалось собрать запрос: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		logger.Error("❌ webhook: доставка ордера %s %s не удалась: %v", order.Symbol, order.Action, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn("⚠️ webhook: получен статус %d для ордера %s %s", resp.StatusCode, order.Symbol, order.Action)
		return
	}

	logger.Order(order.StrategyName, order.Symbol, order.Action, order.Position, order.ExecutionQuantity, order.ExecutionPrice)
}
