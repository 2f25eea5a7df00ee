package executors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"makenaide/src/connectors"
	"makenaide/src/model"
	"makenaide/src/monitoring"
	"makenaide/src/risk"
)

// ExchangeClient is the slice of the exchange API the executor needs.
type ExchangeClient interface {
	GetAccounts() ([]connectors.AccountBalance, error)
	GetTicker(market string) (*connectors.Ticker, error)
	PlaceOrder(p connectors.OrderParams) (*connectors.OrderResult, error)
}

// TradeStore persists placed orders into the audit ledger.
type TradeStore interface {
	Save(ctx context.Context, trade *model.Trade) error
}

// TradeExecutor converts one trading signal into zero or more exchange
// orders. Tickers are isolated from each other: one ticker failing, being
// skipped or rejected never aborts the rest of the signal.
type TradeExecutor struct {
	log           *logrus.Entry
	exchange      ExchangeClient
	risk          *risk.Manager
	trades        TradeStore
	retryAttempts int
	retryDelay    time.Duration
	sellPortion   decimal.Decimal
	sleep         func(time.Duration)
	now           func() time.Time
}

func NewTradeExecutor(
	log *logrus.Entry,
	exchange ExchangeClient,
	riskManager *risk.Manager,
	trades TradeStore,
	cfg Config,
) *TradeExecutor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	attempts := cfg.OrderRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := cfg.OrderRetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	sellPortion := decimal.NewFromFloat(cfg.SellPortion)
	if sellPortion.LessThanOrEqual(decimal.Zero) || sellPortion.GreaterThan(decimal.NewFromInt(1)) {
		sellPortion = decimal.NewFromFloat(0.5)
	}

	return &TradeExecutor{
		log:           log,
		exchange:      exchange,
		risk:          riskManager,
		trades:        trades,
		retryAttempts: attempts,
		retryDelay:    delay,
		sellPortion:   sellPortion,
		sleep:         time.Sleep,
		now:           time.Now,
	}
}

// ExecuteSignal runs the full validate → size → order pipeline for every
// ticker in the signal and aggregates per-ticker outcomes. The result status
// is "error" only when a systemic failure occurred (signal malformed, balance
// snapshot unavailable) or every ticker failed outright; partial success and
// all-skipped signals report "success" with per-ticker detail.
func (e *TradeExecutor) ExecuteSignal(ctx context.Context, signal *model.TradingSignal) (result *model.ExecutionResult) {
	result = &model.ExecutionResult{
		SignalID:  signal.SignalID,
		Status:    model.ExecutionStatusSuccess,
		Timestamp: e.now().UTC(),
	}

	// A single bad signal must never take the runner down.
	defer func() {
		if p := recover(); p != nil {
			e.log.WithField("signal_id", signal.SignalID).
				Errorf("panic while executing signal: %v", p)
			result.Status = model.ExecutionStatusError
			result.Error = fmt.Sprintf("panic: %v", p)
		}
	}()

	if err := signal.Validate(); err != nil {
		result.Status = model.ExecutionStatusError
		result.Error = err.Error()
		return result
	}

	action := strings.ToUpper(signal.Action)

	snapshot, err := e.risk.TakeSnapshot(e.exchange)
	if err != nil {
		e.log.WithField("signal_id", signal.SignalID).
			WithError(err).Error("failed to take account snapshot")
		result.Status = model.ExecutionStatusError
		result.Error = err.Error()
		return result
	}
	monitoring.SetTotalBalance(snapshot.Total.InexactFloat64())

	e.log.WithFields(logrus.Fields{
		"signal_id": signal.SignalID,
		"action":    action,
		"tickers":   len(signal.Tickers),
		"strength":  signal.SignalStrength,
	}).Info("executing trading signal")

	for _, ticker := range signal.Tickers {
		market := connectors.NormalizeMarket(ticker)

		if ctx.Err() != nil {
			result.Orders = append(result.Orders, model.TickerOutcome{
				Market: market,
				Action: action,
				Status: model.TickerOutcomeSkipped,
				Reason: "execution canceled",
			})
			continue
		}

		outcome := e.executeTicker(ctx, signal, action, market, snapshot)
		result.Orders = append(result.Orders, outcome)
	}

	if len(result.Orders) > 0 && result.FailedCount() == len(result.Orders) {
		result.Status = model.ExecutionStatusError
		result.Error = "all tickers failed"
	}

	e.log.WithFields(logrus.Fields{
		"signal_id": signal.SignalID,
		"executed":  result.ExecutedCount(),
		"failed":    result.FailedCount(),
		"total":     len(result.Orders),
		"status":    result.Status,
	}).Info("trading signal execution finished")

	return result
}

func (e *TradeExecutor) executeTicker(
	ctx context.Context,
	signal *model.TradingSignal,
	action string,
	market string,
	snapshot *risk.Snapshot,
) model.TickerOutcome {

	outcome := model.TickerOutcome{Market: market, Action: action}

	ticker, err := e.exchange.GetTicker(market)
	if err != nil {
		e.log.WithField("market", market).WithError(err).Error("failed to fetch ticker price")
		outcome.Status = model.TickerOutcomeFailed
		outcome.Reason = fmt.Sprintf("price lookup failed: %v", err)
		return outcome
	}

	var params connectors.OrderParams
	var amountKRW, volume decimal.Decimal

	switch action {
	case model.SignalActionBuy:
		amountKRW = e.risk.PositionSize(snapshot.Total, signal.SignalStrength)
		if amountKRW.LessThanOrEqual(decimal.Zero) {
			outcome.Status = model.TickerOutcomeSkipped
			outcome.Reason = "no balance to allocate"
			return outcome
		}

		params = connectors.OrderParams{
			Market:  market,
			Side:    model.TradeSideBid,
			OrdType: "price",
			Price:   amountKRW.RoundDown(0).String(),
		}

	case model.SignalActionSell:
		currency := strings.TrimPrefix(market, "KRW-")
		holding, ok := snapshot.Holdings[currency]
		if !ok || holding.LessThanOrEqual(decimal.Zero) {
			outcome.Status = model.TickerOutcomeSkipped
			outcome.Reason = fmt.Sprintf("no %s holdings to sell", currency)
			return outcome
		}

		volume = holding.Mul(e.sellPortion)
		amountKRW = volume.Mul(ticker.TradePrice)

		params = connectors.OrderParams{
			Market:  market,
			Side:    model.TradeSideAsk,
			OrdType: "market",
			Volume:  volume.StringFixed(8),
		}
	}

	validation, err := e.risk.ValidateTrade(ctx, market, action, amountKRW, snapshot)
	if err != nil {
		e.log.WithField("market", market).WithError(err).Error("trade validation errored")
		outcome.Status = model.TickerOutcomeFailed
		outcome.Reason = fmt.Sprintf("validation error: %v", err)
		return outcome
	}
	if !validation.Allowed {
		e.log.WithFields(logrus.Fields{
			"market": market,
			"reason": validation.Reason,
		}).Warn("trade rejected by risk limits")
		outcome.Status = model.TickerOutcomeSkipped
		outcome.Reason = validation.Reason
		return outcome
	}

	if action == model.SignalActionBuy {
		e.log.WithFields(logrus.Fields{
			"market":      market,
			"stop_loss":   e.risk.StopLossPrice(ticker.TradePrice).StringFixed(0),
			"take_profit": e.risk.TakeProfitPrice(ticker.TradePrice).StringFixed(0),
		}).Info("exit prices for entry")
	}

	order, err := e.placeWithRetry(ctx, params)
	if err != nil {
		e.log.WithField("market", market).WithError(err).Error("order placement failed")
		outcome.Status = model.TickerOutcomeFailed
		outcome.Reason = err.Error()
		return outcome
	}

	trade := &model.Trade{
		OrderUUID: order.UUID,
		SignalID:  signal.SignalID,
		Market:    market,
		Side:      params.Side,
		OrdType:   params.OrdType,
		Volume:    volume,
		Price:     ticker.TradePrice,
		AmountKRW: amountKRW,
		State:     order.State,
	}
	if err := e.trades.Save(ctx, trade); err != nil {
		// The order is already live on the exchange; losing the ledger row
		// undercounts the daily limit, so this is loud but not fatal.
		e.log.WithField("order_uuid", order.UUID).
			WithError(err).Error("failed to persist trade record")
	}

	monitoring.RecordOrder(market, params.Side)

	outcome.Status = model.TickerOutcomeExecuted
	outcome.OrderUUID = order.UUID
	outcome.Volume = volume
	outcome.AmountKRW = amountKRW
	outcome.Price = ticker.TradePrice

	return outcome
}

// placeWithRetry retries order placement only on ExchangeUnavailableError,
// with a short linear backoff. Rejections return immediately: the exchange
// gave a definitive answer and resubmitting risks a duplicate order.
func (e *TradeExecutor) placeWithRetry(ctx context.Context, params connectors.OrderParams) (*connectors.OrderResult, error) {
	var lastErr error

	for attempt := 1; attempt <= e.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		order, err := e.exchange.PlaceOrder(params)
		if err == nil {
			return order, nil
		}

		lastErr = err
		if !connectors.IsRetryable(err) {
			return nil, err
		}

		if attempt < e.retryAttempts {
			e.log.WithFields(logrus.Fields{
				"market":  params.Market,
				"attempt": attempt,
			}).WithError(err).Warn("exchange unavailable, retrying order")
			e.sleep(e.retryDelay * time.Duration(attempt))
		}
	}

	return nil, lastErr
}
