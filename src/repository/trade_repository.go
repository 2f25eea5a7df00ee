package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"makenaide/src/database"
	"makenaide/src/model"
)

// TradeRepository persists the order audit ledger. The risk manager derives
// its daily trade counter from this table, so the counter survives restarts
// and stays correct when more than one runner shares the database.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance bound to MainDB.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Save inserts one executed trade into the ledger.
func (r *TradeRepository) Save(ctx context.Context, trade *model.Trade) error {
	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":       "TradeRepository",
			"op":         "Save",
			"order_uuid": trade.OrderUUID,
			"market":     trade.Market,
		}).WithError(err).Error("Failed to save trade record")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":       "TradeRepository",
		"op":         "Save",
		"order_uuid": trade.OrderUUID,
		"market":     trade.Market,
		"side":       trade.Side,
	}).Info("Trade record saved")

	return nil
}

// CountSince returns the number of trades placed at or after the given time.
func (r *TradeRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "CountSince",
			"since": since,
		}).WithError(err).Error("Failed to count trades")
		return 0, err
	}

	return count, nil
}

// FindBySignal fetches all trades placed for one signal, oldest first.
func (r *TradeRepository) FindBySignal(ctx context.Context, signalID string) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Where("signal_id = ?", signalID).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "TradeRepository",
			"op":        "FindBySignal",
			"signal_id": signalID,
		}).WithError(err).Error("Failed to fetch trades by signal")
		return nil, err
	}

	return trades, nil
}
