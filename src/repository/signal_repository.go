package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"makenaide/src/database"
	"makenaide/src/model"
)

// SignalRepository owns every status transition of trading signals. The
// durable row is the single source of truth for processing state; nothing
// outside this repository writes to the trading_signals table.
type SignalRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSignalRepository creates a new repository instance bound to MainDB.
func NewSignalRepository() *SignalRepository {
	return &SignalRepository{db: database.MainDB, now: time.Now}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or custom sessions/transactions.
func (r *SignalRepository) WithDB(db *gorm.DB) *SignalRepository {
	return &SignalRepository{db: db, now: r.now}
}

// FindPending fetches signals still waiting for execution, bounded to the
// lookback window and ordered oldest first so execution follows insertion
// order. Signals older than the window are left untouched for audit.
func (r *SignalRepository) FindPending(
	ctx context.Context,
	lookback time.Duration,
) ([]model.TradingSignal, error) {

	cutoff := r.now().UTC().Add(-lookback)

	var signals []model.TradingSignal
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", model.SignalStatusPending, cutoff).
		Order("created_at ASC").
		Find(&signals).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "SignalRepository",
			"op":     "FindPending",
			"cutoff": cutoff,
		}).WithError(err).Error("Failed to fetch pending trading signals")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "SignalRepository",
		"op":          "FindPending",
		"rows_return": len(signals),
	}).Info("Pending trading signals fetched")

	return signals, nil
}

// Claim atomically moves a signal from pending to processing. The conditional
// WHERE on the current status is what makes concurrent runners safe: only one
// writer sees RowsAffected == 1, everyone else loses the race and skips.
func (r *SignalRepository) Claim(ctx context.Context, signalID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TradingSignal{}).
		Where("signal_id = ? AND status = ?", signalID, model.SignalStatusPending).
		Updates(map[string]interface{}{
			"status":     model.SignalStatusProcessing,
			"updated_at": r.now().UTC(),
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "Claim",
			"signal_id": signalID,
		}).WithError(res.Error).Error("Failed to claim trading signal")
		return false, res.Error
	}

	claimed := res.RowsAffected == 1

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "Claim",
		"signal_id": signalID,
		"claimed":   claimed,
	}).Debug("Trading signal claim attempted")

	return claimed, nil
}

// UpdateStatus writes a terminal (or intermediate) status plus the optional
// execution result. The write is idempotent: repeating it with the same
// arguments leaves an equivalent row, only updated_at advances.
func (r *SignalRepository) UpdateStatus(
	ctx context.Context,
	signalID string,
	status string,
	result *model.ExecutionResult,
) error {

	updates := map[string]interface{}{
		"status":     status,
		"updated_at": r.now().UTC(),
	}
	if result != nil {
		updates["execution_result"] = result
	}

	err := r.db.WithContext(ctx).
		Model(&model.TradingSignal{}).
		Where("signal_id = ?", signalID).
		Updates(updates).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "UpdateStatus",
			"signal_id": signalID,
			"status":    status,
		}).WithError(err).Error("Failed to update trading signal status")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "SignalRepository",
		"op":        "UpdateStatus",
		"signal_id": signalID,
		"status":    status,
	}).Info("Trading signal status updated")

	return nil
}

// ReclaimStale reverts signals stuck in processing back to pending when their
// updated_at is older than the timeout. A crash between claim and terminal
// write leaves the row in processing forever otherwise.
func (r *SignalRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-olderThan)

	res := r.db.WithContext(ctx).
		Model(&model.TradingSignal{}).
		Where("status = ? AND updated_at < ?", model.SignalStatusProcessing, cutoff).
		Updates(map[string]interface{}{
			"status":     model.SignalStatusPending,
			"updated_at": r.now().UTC(),
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "ReclaimStale",
		}).WithError(res.Error).Error("Failed to reclaim stale trading signals")
		return 0, res.Error
	}

	if res.RowsAffected > 0 {
		logger.WithFields(map[string]interface{}{
			"repo":      "SignalRepository",
			"op":        "ReclaimStale",
			"reclaimed": res.RowsAffected,
		}).Warn("Reclaimed trading signals stuck in processing")
	}

	return res.RowsAffected, nil
}

// CountPending returns the number of signals currently waiting in the window.
func (r *SignalRepository) CountPending(ctx context.Context, lookback time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-lookback)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.TradingSignal{}).
		Where("status = ? AND created_at >= ?", model.SignalStatusPending, cutoff).
		Count(&count).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SignalRepository",
			"op":   "CountPending",
		}).WithError(err).Error("Failed to count pending trading signals")
		return 0, err
	}

	return count, nil
}

// Ping verifies the durable store is reachable.
func (r *SignalRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
