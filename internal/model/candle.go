// internal/model/candle.go
package model

// Candle — одна свеча OHLCV, опционально обогащённая индикаторами.
type Candle struct {
	Symbol   string `json:"symbol"`
	OpenTime int64  `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
	IsClosed bool    `json:"is_closed"`

	// Индикаторы — заполняются Indicator Kernel'ом, NaN означает "не определено".
	EMA7       float64 `json:"ema7,omitempty"`
	EMA25      float64 `json:"ema25,omitempty"`
	EMA99      float64 `json:"ema99,omitempty"`
	MACDLine   float64 `json:"macd_line,omitempty"`
	MACDSignal float64 `json:"macd_signal,omitempty"`
	MACDHist   float64 `json:"macd_hist,omitempty"`
}

// Clone возвращает независимую копию свечи.
func (c Candle) Clone() Candle {
	return c
}

// CloneCandles копирует срез свечей поверхностно (значения Candle — не указатели).
func CloneCandles(src []Candle) []Candle {
	out := make([]Candle, len(src))
	copy(out, src)
	return out
}
