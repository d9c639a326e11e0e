// internal/storage/postgres/repository.go
package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/holoworlds/tradingmonitor/internal/model"
	"github.com/holoworlds/tradingmonitor/pkg/logger"
)

// strategyRow is the JSONB-column mapping sqlx binds StrategySnapshot
// against. Config/Position/Stats travel as opaque JSON blobs so a schema
// drift in StrategyConfig (an added field, say) never requires a migration.
// A field missing from a stored blob loads as its Go zero value; the stored
// config is not merged over any default config.
type strategyRow struct {
	ID       string `db:"id"`
	Config   []byte `db:"config"`
	Position []byte `db:"position"`
	Stats    []byte `db:"stats"`
}

// StrategyRepository persists strategy snapshots to Postgres.
type StrategyRepository struct {
	db *sqlx.DB
}

func NewStrategyRepository(db *sqlx.DB) *StrategyRepository {
	return &StrategyRepository{db: db}
}

// Save upserts a strategy's full snapshot.
func (r *StrategyRepository) Save(snapshot model.StrategySnapshot) error {
	configJSON, err := json.Marshal(snapshot.Config)
	if err != nil {
		return fmt.Errorf("postgres: marshal config: %w", err)
	}
	positionJSON, err := json.Marshal(snapshot.Position)
	if err != nil {
		return fmt.Errorf("postgres: marshal position: %w", err)
	}
	statsJSON, err := json.Marshal(snapshot.Stats)
	if err != nil {
		return fmt.Errorf("postgres: marshal stats: %w", err)
	}

	query := `
		INSERT INTO strategies (id, config, position, stats, updated_at)
		VALUES (:id, :config, :position, :stats, NOW())
		ON CONFLICT (id) DO UPDATE SET
			config = EXCLUDED.config,
			position = EXCLUDED.position,
			stats = EXCLUDED.stats,
			updated_at = NOW()
	`
	_, err = r.db.NamedExec(query, strategyRow{
		ID:       snapshot.Config.ID,
		Config:   configJSON,
		Position: positionJSON,
		Stats:    statsJSON,
	})
	if err != nil {
		return fmt.Errorf("postgres: save strategy %s: %w", snapshot.Config.ID, err)
	}
	return nil
}

// Delete removes a strategy's persisted snapshot.
func (r *StrategyRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM strategies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete strategy %s: %w", id, err)
	}
	return nil
}

// LoadAll returns every persisted strategy snapshot, skipping rows whose
// JSON has drifted out of parseable shape rather than failing the whole
// load (§7 tolerant restore).
func (r *StrategyRepository) LoadAll() []model.StrategySnapshot {
	var rows []strategyRow
	if err := r.db.Select(&rows, `SELECT id, config, position, stats FROM strategies`); err != nil {
		logger.Error("❌ postgres: не удалось загрузить стратегии: %v", err)
		return nil
	}

	snapshots := make([]model.StrategySnapshot, 0, len(rows))
	for _, row := range rows {
		var snap model.StrategySnapshot
		if err := json.Unmarshal(row.Config, &snap.Config); err != nil {
			logger.Warn("⚠️ postgres: стратегия %s: повреждённый config, пропущена: %v", row.ID, err)
			continue
		}
		if err := json.Unmarshal(row.Position, &snap.Position); err != nil {
			logger.Warn("⚠️ postgres: стратегия %s: повреждённая position, восстановлена как FLAT: %v", row.ID, err)
			snap.Position = model.EmptyPosition()
		}
		if err := json.Unmarshal(row.Stats, &snap.Stats); err != nil {
			logger.Warn("⚠️ postgres: стратегия %s: повреждённая stats, сброшена: %v", row.ID, err)
			snap.Stats = model.TradeStats{}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

// orderLogRow mirrors the order_log table for insertion.
type orderLogRow struct {
	StrategyID   string `db:"strategy_id"`
	StrategyName string `db:"strategy_name"`
	Symbol       string `db:"symbol"`
	Action       string `db:"action"`
	Position     string `db:"position"`
	Payload      []byte `db:"payload"`
}

// OrderLogRepository persists a durable audit trail of emitted orders,
// complementing the Redis-backed capped log kept by internal/store for
// fast recent-order lookups.
type OrderLogRepository struct {
	db *sqlx.DB
}

func NewOrderLogRepository(db *sqlx.DB) *OrderLogRepository {
	return &OrderLogRepository{db: db}
}

func (r *OrderLogRepository) Insert(strategyID string, order model.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("postgres: marshal order: %w", err)
	}

	query := `
		INSERT INTO order_log (strategy_id, strategy_name, symbol, action, position, payload)
		VALUES (:strategy_id, :strategy_name, :symbol, :action, :position, :payload)
	`
	_, err = r.db.NamedExec(query, orderLogRow{
		StrategyID:   strategyID,
		StrategyName: order.StrategyName,
		Symbol:       order.Symbol,
		Action:       order.Action,
		Position:     order.Position,
		Payload:      payload,
	})
	if err != nil {
		return fmt.Errorf("postgres: insert order log: %w", err)
	}
	return nil
}
