package runner

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"makenaide/src/connectors"
	"makenaide/src/model"
	"makenaide/src/monitoring"
	"makenaide/src/risk"
)

// ErrHealthCheck is returned when the startup health check fails.
var ErrHealthCheck = errors.New("health check failed")

// ErrTooManyErrors is returned when the loop trips its circuit breaker.
var ErrTooManyErrors = errors.New("too many consecutive errors")

// SignalStore is the durable queue the runner drains. The runner is the only
// writer of signal status transitions.
type SignalStore interface {
	FindPending(ctx context.Context, lookback time.Duration) ([]model.TradingSignal, error)
	Claim(ctx context.Context, signalID string) (bool, error)
	UpdateStatus(ctx context.Context, signalID string, status string, result *model.ExecutionResult) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
	CountPending(ctx context.Context, lookback time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// SignalExecutor turns one claimed signal into an execution result.
type SignalExecutor interface {
	ExecuteSignal(ctx context.Context, signal *model.TradingSignal) *model.ExecutionResult
}

// ExchangeReader is the read-only exchange access the health checks need.
type ExchangeReader interface {
	GetAccounts() ([]connectors.AccountBalance, error)
	GetTicker(market string) (*connectors.Ticker, error)
}

// Runner polls the signal queue, claims pending signals one at a time and
// hands them to the executor. Strictly sequential: rate-limit pacing matters
// more than throughput here.
type Runner struct {
	log      *logrus.Entry
	signals  SignalStore
	executor SignalExecutor
	exchange ExchangeReader
	risk     *risk.Manager
	cfg      Config
	sleep    func(time.Duration)
}

func NewRunner(
	log *logrus.Entry,
	signals SignalStore,
	executor SignalExecutor,
	exchange ExchangeReader,
	riskManager *risk.Manager,
	cfg Config,
) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MaxConsecutiveErrors < 1 {
		cfg.MaxConsecutiveErrors = 5
	}
	if cfg.PendingLookback <= 0 {
		cfg.PendingLookback = 24 * time.Hour
	}

	return &Runner{
		log:      log,
		signals:  signals,
		executor: executor,
		exchange: exchange,
		risk:     riskManager,
		cfg:      cfg,
		sleep:    time.Sleep,
	}
}

// ExecutePending drains the queue once: reclaims stale processing rows, then
// claims and executes each pending signal in creation order. Returns how many
// signals completed successfully. Store failures abort the drain and bubble
// up so the loop's error counter sees them; a bad signal does not.
func (r *Runner) ExecutePending(ctx context.Context) (int, error) {
	if _, err := r.signals.ReclaimStale(ctx, r.cfg.StaleProcessingAfter); err != nil {
		return 0, err
	}

	pending, err := r.signals.FindPending(ctx, r.cfg.PendingLookback)
	if err != nil {
		return 0, err
	}
	monitoring.SetPendingSignals(int64(len(pending)))

	if len(pending) == 0 {
		r.log.Debug("no pending trading signals found")
		return 0, nil
	}

	executed := 0

	for i := range pending {
		if ctx.Err() != nil {
			r.log.Info("shutdown requested, stopping signal processing")
			break
		}

		sig := pending[i]
		r.log.WithField("signal_id", sig.SignalID).Info("processing signal")

		claimed, err := r.signals.Claim(ctx, sig.SignalID)
		if err != nil {
			return executed, err
		}
		if !claimed {
			// Another runner got there first or the signal already moved on.
			r.log.WithField("signal_id", sig.SignalID).Warn("signal no longer pending, skipping")
			continue
		}

		sctx, cancel := context.WithTimeout(ctx, r.cfg.SignalTimeout)
		result := r.executor.ExecuteSignal(sctx, &sig)
		cancel()

		status := model.SignalStatusCompleted
		if result.Status == model.ExecutionStatusError {
			status = model.SignalStatusFailed
		}

		if err := r.signals.UpdateStatus(ctx, sig.SignalID, status, result); err != nil {
			return executed, err
		}
		monitoring.RecordSignal(status)

		if status == model.SignalStatusCompleted {
			executed++
			r.log.WithFields(logrus.Fields{
				"signal_id": sig.SignalID,
				"orders":    result.ExecutedCount(),
			}).Info("signal executed successfully")
		} else {
			r.log.WithFields(logrus.Fields{
				"signal_id": sig.SignalID,
				"error":     result.Error,
			}).Error("signal execution failed")
		}

		// Spacing between signals keeps us inside the exchange rate limits.
		if i < len(pending)-1 {
			r.sleepFor(ctx, r.cfg.InterSignalDelay)
		}
	}

	r.log.WithFields(logrus.Fields{
		"executed": executed,
		"total":    len(pending),
	}).Info("pending signals processed")

	return executed, nil
}

// RunHealthChecks verifies the dependencies the runner cannot work without.
// Exchange and store connectivity are fatal; a zero balance and a failed
// valuation only warn.
func (r *Runner) RunHealthChecks(ctx context.Context) bool {
	r.log.Info("running health checks")

	accounts, err := r.exchange.GetAccounts()
	if err != nil {
		r.log.WithError(err).Error("exchange API connection failed")
		return false
	}
	r.log.WithField("accounts", len(accounts)).Info("exchange API connected")

	snapshot, err := r.risk.TakeSnapshot(r.exchange)
	if err != nil {
		r.log.WithError(err).Warn("could not value account holdings")
	} else if snapshot.Total.IsZero() {
		r.log.Warn("zero balance detected")
	} else {
		monitoring.SetTotalBalance(snapshot.Total.InexactFloat64())
		r.log.WithField("total_krw", snapshot.Total.StringFixed(0)).Info("total balance")
	}

	if err := r.signals.Ping(ctx); err != nil {
		r.log.WithError(err).Error("signal store connection failed")
		return false
	}
	r.log.Info("signal store connection verified")

	dailyCount, err := r.risk.DailyTradeCount(ctx)
	if err != nil {
		r.log.WithError(err).Warn("could not read daily trade count")
	} else {
		r.log.WithFields(logrus.Fields{
			"daily_trades": dailyCount,
			"limit":        r.risk.Limits().MaxDailyTrades,
		}).Info("daily trade count")
	}

	return true
}

// MonitorLoop is the main polling loop. It runs until the context is
// cancelled (graceful shutdown, returns nil), the initial health check fails
// (ErrHealthCheck) or the consecutive-error circuit breaker trips
// (ErrTooManyErrors).
func (r *Runner) MonitorLoop(ctx context.Context) error {
	r.log.WithField("interval", r.cfg.CheckInterval.String()).Info("starting monitoring loop")

	if !r.RunHealthChecks(ctx) {
		r.log.Error("initial health check failed, exiting")
		return ErrHealthCheck
	}

	consecutiveErrors := 0

	for ctx.Err() == nil {
		executed, err := r.ExecutePending(ctx)
		if err != nil {
			consecutiveErrors++
			monitoring.RecordLoopError()
			r.log.WithError(err).Errorf("error in monitoring loop (%d/%d)",
				consecutiveErrors, r.cfg.MaxConsecutiveErrors)

			if consecutiveErrors >= r.cfg.MaxConsecutiveErrors {
				r.log.Error("too many consecutive errors, shutting down")
				return ErrTooManyErrors
			}

			r.sleepFor(ctx, r.cfg.ErrorPause)
			continue
		}

		consecutiveErrors = 0
		if executed > 0 {
			r.log.WithField("executed", executed).Info("executed trading signals")
		}

		r.sleepFor(ctx, r.cfg.CheckInterval)
	}

	r.log.Info("monitoring loop ended")
	return nil
}

// SingleCheck runs the health checks plus one queue drain. Used by the
// one-shot CLI mode and by operators poking at a deployment.
func (r *Runner) SingleCheck(ctx context.Context) error {
	r.log.Info("running single check")

	if !r.RunHealthChecks(ctx) {
		return ErrHealthCheck
	}

	executed, err := r.ExecutePending(ctx)
	if err != nil {
		return err
	}

	r.log.WithField("executed", executed).Info("single check completed")
	return nil
}

// sleepFor waits in one-second steps so a shutdown signal is honored within
// about a second even during long intervals.
func (r *Runner) sleepFor(ctx context.Context, d time.Duration) {
	steps := int(d / time.Second)
	remainder := d % time.Second

	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			return
		}
		r.sleep(time.Second)
	}
	if remainder > 0 && ctx.Err() == nil {
		r.sleep(remainder)
	}
}
