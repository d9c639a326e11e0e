// internal/model/strategy.go
package model

// Direction — сторона позиции.
type Direction string

const (
	DirectionFlat  Direction = "FLAT"
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// TPSLLevel — один уровень мульти-уровневого TP или SL.
type TPSLLevel struct {
	Active bool    `json:"active"`
	Pct    float64 `json:"pct"`
	QtyPct float64 `json:"qty_pct"`
}

// StrategyConfig — неизменяемый снимок пользовательских параметров стратегии.
type StrategyConfig struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	Interval Interval `json:"interval"`

	IsActive     bool    `json:"is_active"`
	TradeAmount  float64 `json:"trade_amount"`
	TriggerOnClose bool  `json:"trigger_on_close"`

	// Фильтр тренда.
	TrendFilterBlockLong  bool `json:"trend_filter_block_long"`
	TrendFilterBlockShort bool `json:"trend_filter_block_short"`

	// Сигналы на пересечениях EMA.
	UseEMA7_25  bool `json:"use_ema7_25"`
	EMA7_25Long  bool `json:"ema7_25_long"`
	EMA7_25Short bool `json:"ema7_25_short"`

	UseEMA7_99  bool `json:"use_ema7_99"`
	EMA7_99Long  bool `json:"ema7_99_long"`
	EMA7_99Short bool `json:"ema7_99_short"`

	UseEMA25_99  bool `json:"use_ema25_99"`
	EMA25_99Long  bool `json:"ema25_99_long"`
	EMA25_99Short bool `json:"ema25_99_short"`

	UseEMADouble  bool `json:"use_ema_double"`
	EMADoubleLong  bool `json:"ema_double_long"`
	EMADoubleShort bool `json:"ema_double_short"`

	UseMACD  bool `json:"use_macd"`
	MACDLong  bool `json:"macd_long"`
	MACDShort bool `json:"macd_short"`

	MACDFast   int `json:"macd_fast"`
	MACDSlow   int `json:"macd_slow"`
	MACDSignal int `json:"macd_signal"`

	// Политики выхода.
	UseFixedTPSL  bool    `json:"use_fixed_tpsl"`
	TakeProfitPct float64 `json:"take_profit_pct"`
	StopLossPct   float64 `json:"stop_loss_pct"`

	UseTrailingStop      bool    `json:"use_trailing_stop"`
	TrailingActivationPct float64 `json:"trailing_activation_pct"`
	TrailingDistancePct   float64 `json:"trailing_distance_pct"`

	UseMultiTPSL bool        `json:"use_multi_tpsl"`
	TPLevels     []TPSLLevel `json:"tp_levels"`
	SLLevels     []TPSLLevel `json:"sl_levels"`

	// Разворот позиции.
	UseReverse         bool `json:"use_reverse"`
	ReverseLongToShort bool `json:"reverse_long_to_short"`
	ReverseShortToLong bool `json:"reverse_short_to_long"`

	MaxDailyTrades int `json:"max_daily_trades"`

	// Отложенный вход на откате к EMA7.
	UseReversionEntry bool    `json:"use_reversion_entry"`
	ReversionPct      float64 `json:"reversion_pct"`

	// Ручной перехват управления.
	ManualTakeover    bool      `json:"manual_takeover"`
	TakeoverDirection Direction `json:"takeover_direction"`
	TakeoverQuantity  float64   `json:"takeover_quantity"`
}

// TradeStats — суточная статистика сделок стратегии.
type TradeStats struct {
	DailyTradeCount int    `json:"daily_trade_count"`
	LastTradeDate   string `json:"last_trade_date"` // YYYY-MM-DD (UTC)
}

// PositionState — текущая открытая (или пустая) позиция стратегии.
type PositionState struct {
	Direction    Direction `json:"direction"`
	InitialQty   float64   `json:"initial_qty"`
	RemainingQty float64   `json:"remaining_qty"`
	EntryPrice   float64   `json:"entry_price"`
	HighestPrice float64   `json:"highest_price"`
	LowestPrice  float64   `json:"lowest_price"`
	OpenTime     int64     `json:"open_time"`

	TPLevelsHit []bool `json:"tp_levels_hit"`
	SLLevelsHit []bool `json:"sl_levels_hit"`

	PendingReversion       Direction `json:"pending_reversion"`
	PendingReversionReason string    `json:"pending_reversion_reason"`
}

// IsFlat сообщает, закрыта ли позиция.
func (p PositionState) IsFlat() bool {
	return p.Direction == DirectionFlat || p.Direction == ""
}

// EmptyPosition возвращает нейтральное состояние позиции.
func EmptyPosition() PositionState {
	return PositionState{Direction: DirectionFlat}
}

// Order — исходящий торговый ордер, эмитируемый Evaluation Core.
type Order struct {
	Action           string  `json:"action"` // buy | sell
	Position         string  `json:"position"` // long | short | flat
	Symbol           string  `json:"symbol"`
	Quantity         string  `json:"quantity"`
	TradeAmount      float64 `json:"trade_amount"`
	Leverage         int     `json:"leverage"`
	Timestamp        int64   `json:"timestamp"`
	TVExchange       string  `json:"tv_exchange"`
	StrategyName     string  `json:"strategy_name"`
	TPLevel          string  `json:"tp_level"`
	ExecutionPrice   float64 `json:"execution_price"`
	ExecutionQuantity float64 `json:"execution_quantity"`
}

// StrategySnapshot — то, что персистится на диск/в Postgres.
type StrategySnapshot struct {
	Config   StrategyConfig `json:"config"`
	Position PositionState  `json:"position"`
	Stats    TradeStats     `json:"stats"`
}
