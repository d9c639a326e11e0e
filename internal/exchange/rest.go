// internal/exchange/rest.go
package exchange

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

const maxHistoricalCandles = 1500

// Adapter реализует Exchange Adapter: загрузку истории по REST и разбор
// живых push-сообщений с WebSocket (см. ws.go).
type Adapter struct {
	httpClient  *http.Client
	restBaseURL string
	wsBaseURL   string
	rateLimit   time.Duration
	lastRequest time.Time
}

// NewAdapter создаёт адаптер биржи с заданными base URL и паузой между
// REST-запросами (rate limiting), как в BybitClient.waitForRateLimit.
func NewAdapter(restBaseURL, wsBaseURL string, requestTimeout, rateLimit time.Duration) *Adapter {
	return &Adapter{
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		restBaseURL: restBaseURL,
		wsBaseURL:   wsBaseURL,
		rateLimit:   rateLimit,
		lastRequest: time.Now().Add(-rateLimit),
	}
}

func (a *Adapter) waitForRateLimit() {
	elapsed := time.Since(a.lastRequest)
	if elapsed < a.rateLimit {
		time.Sleep(a.rateLimit - elapsed)
	}
	a.lastRequest = time.Now()
}

// klineTuple — один элемент массива, возвращаемого GET /klines (§6):
// [openTime, open, high, low, close, volume, ...].
type klineTuple = []json.Number

// FetchHistorical возвращает до 1500 свечей символа в полуоткрытом окне
// [startMs, endMs). startMs/endMs равные 0 опускаются из запроса.
// Отсутствие валидного массива в ответе не является ошибкой — адаптер
// возвращает пустой результат (§4.2, §7).
func (a *Adapter) FetchHistorical(symbol string, interval model.Interval, startMs, endMs int64) []model.Candle {
	a.waitForRateLimit()

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", string(interval))
	params.Set("limit", strconv.Itoa(maxHistoricalCandles))
	if startMs > 0 {
		params.Set("startTime", strconv.FormatInt(startMs, 10))
	}
	if endMs > 0 {
		params.Set("endTime", strconv.FormatInt(endMs, 10))
	}

	reqURL := a.restBaseURL + "/klines?" + params.Encode()

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		logger.Warn("⚠️ exchange: не удалось собрать запрос истории %s %s: %v", symbol, interval, err)
		return nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TradingSignalEngine/1.0")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		logger.Warn("⚠️ exchange: запрос истории %s %s не выполнен: %v", symbol, interval, err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("⚠️ exchange: не удалось прочитать ответ истории %s %s: %v", symbol, interval, err)
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("⚠️ exchange: история %s %s вернула статус %d", symbol, interval, resp.StatusCode)
		return nil
	}

	var rows []klineTuple
	if err := json.Unmarshal(body, &rows); err != nil {
		logger.Warn("⚠️ exchange: ответ истории %s %s не является массивом, возвращаю пусто", symbol, interval)
		return nil
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		c, err := parseKlineTuple(symbol, row)
		if err != nil {
			logger.Warn("⚠️ exchange: пропущена некорректная свеча %s %s: %v", symbol, interval, err)
			continue
		}
		c.IsClosed = true
		candles = append(candles, c)
	}

	if len(candles) > maxHistoricalCandles {
		candles = candles[len(candles)-maxHistoricalCandles:]
	}
	return candles
}

func parseKlineTuple(symbol string, row klineTuple) (model.Candle, error) {
	openTime, err := row[0].Int64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("openTime: %w", err)
	}
	open, err := row[1].Float64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("open: %w", err)
	}
	high, err := row[2].Float64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("high: %w", err)
	}
	low, err := row[3].Float64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("low: %w", err)
	}
	closePrice, err := row[4].Float64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("close: %w", err)
	}
	volume, err := row[5].Float64()
	if err != nil {
		return model.Candle{}, fmt.Errorf("volume: %w", err)
	}

	return model.Candle{
		Symbol:   symbol,
		OpenTime: openTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
	}, nil
}
