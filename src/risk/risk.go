package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"makenaide/src/connectors"
)

// ----- limits -----

// Limits is the process-wide risk configuration. Loaded once at manager
// construction and immutable during a run.
type Limits struct {
	MaxDailyTrades      int
	MaxPositionPct      decimal.Decimal
	MaxTotalExposurePct decimal.Decimal
	StopLossPct         decimal.Decimal
	TakeProfitPct       decimal.Decimal
}

func LimitsFromConfig(cfg Config) Limits {
	return Limits{
		MaxDailyTrades:      cfg.MaxDailyTrades,
		MaxPositionPct:      decimal.NewFromFloat(cfg.MaxPositionPct),
		MaxTotalExposurePct: decimal.NewFromFloat(cfg.MaxTotalExposurePct),
		StopLossPct:         decimal.NewFromFloat(cfg.StopLossPct),
		TakeProfitPct:       decimal.NewFromFloat(cfg.TakeProfitPct),
	}
}

// ----- position sizing weights per signal strength -----

var strengthWeights = map[string]decimal.Decimal{
	"weak":   decimal.NewFromFloat(0.02),
	"medium": decimal.NewFromFloat(0.03),
	"strong": decimal.NewFromFloat(0.05),
}

// ----- collaborator interfaces -----

// ExchangeReader is the read side of the exchange client the manager needs.
type ExchangeReader interface {
	GetAccounts() ([]connectors.AccountBalance, error)
	GetTicker(market string) (*connectors.Ticker, error)
}

// TradeCounter queries the durable trade ledger. Deriving the daily counter
// from storage keeps the manager stateless and correct across restarts and
// concurrent runners.
type TradeCounter interface {
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// ----- account snapshot -----

// Snapshot is an ephemeral valuation of the account, fetched per sizing
// decision or health check. Total and Committed are KRW values; Holdings maps
// currency to held volume for sell sizing.
type Snapshot struct {
	Total     decimal.Decimal
	KRW       decimal.Decimal
	Committed decimal.Decimal
	Holdings  map[string]decimal.Decimal
}

// ----- manager -----

// ValidationResult is the structured answer to "may this trade happen".
// Reason is set whenever Allowed is false; limits never clamp silently.
type ValidationResult struct {
	Allowed bool
	Reason  string
}

// Manager is the gatekeeper between a signal and an actionable order. Its
// only state is the immutable limit set; counters come from the trade ledger.
type Manager struct {
	limits Limits
	trades TradeCounter
	now    func() time.Time
}

func NewManager(limits Limits, trades TradeCounter) *Manager {
	return &Manager{limits: limits, trades: trades, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	return &Manager{limits: m.limits, trades: m.trades, now: now}
}

func (m *Manager) Limits() Limits {
	return m.limits
}

// utcDayStart pins the trading day boundary to UTC midnight.
func utcDayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyTradeCount returns how many trades were placed since UTC midnight.
func (m *Manager) DailyTradeCount(ctx context.Context) (int, error) {
	count, err := m.trades.CountSince(ctx, utcDayStart(m.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to count daily trades: %w", err)
	}
	return int(count), nil
}

// TakeSnapshot values the whole account in KRW. It fails closed: any fetch or
// pricing error returns an error, so a caller can never mistake an outage for
// an empty account.
func (m *Manager) TakeSnapshot(ex ExchangeReader) (*Snapshot, error) {
	accounts, err := ex.GetAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	snap := &Snapshot{Holdings: make(map[string]decimal.Decimal)}

	for _, account := range accounts {
		if account.Balance.IsZero() && account.Locked.IsZero() {
			continue
		}

		held := account.Balance.Add(account.Locked)

		if account.Currency == "KRW" {
			snap.KRW = snap.KRW.Add(held)
			continue
		}

		ticker, err := ex.GetTicker(connectors.NormalizeMarket(account.Currency))
		if err != nil {
			return nil, fmt.Errorf("failed to price %s holding: %w", account.Currency, err)
		}

		value := held.Mul(ticker.TradePrice)
		snap.Committed = snap.Committed.Add(value)
		snap.Holdings[account.Currency] = account.Balance
	}

	snap.Total = snap.KRW.Add(snap.Committed)

	logger.WithFields(map[string]interface{}{
		"total_krw":     snap.Total.StringFixed(0),
		"committed_krw": snap.Committed.StringFixed(0),
		"holdings":      len(snap.Holdings),
	}).Debug("Account snapshot taken")

	return snap, nil
}

// PositionSize computes the KRW amount to allocate to one buy. Pure function
// of total balance, signal strength tier and the position cap.
func (m *Manager) PositionSize(totalBalance decimal.Decimal, signalStrength string) decimal.Decimal {
	if totalBalance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	weight, ok := strengthWeights[signalStrength]
	if !ok {
		weight = strengthWeights["medium"]
	}

	size := totalBalance.Mul(weight)

	maxSize := totalBalance.Mul(m.limits.MaxPositionPct)
	if size.GreaterThan(maxSize) {
		size = maxSize
	}

	return size
}

// ValidateTrade checks a proposed trade against the daily count, the
// per-position cap and the total exposure cap. amountKRW is the KRW value of
// the proposed order.
func (m *Manager) ValidateTrade(
	ctx context.Context,
	market string,
	action string,
	amountKRW decimal.Decimal,
	snap *Snapshot,
) (ValidationResult, error) {

	dailyCount, err := m.DailyTradeCount(ctx)
	if err != nil {
		return ValidationResult{}, err
	}

	if dailyCount >= m.limits.MaxDailyTrades {
		return ValidationResult{
			Allowed: false,
			Reason:  fmt.Sprintf("daily trade limit reached: %d/%d", dailyCount, m.limits.MaxDailyTrades),
		}, nil
	}

	if action == "BUY" {
		maxPosition := snap.Total.Mul(m.limits.MaxPositionPct)
		if amountKRW.GreaterThan(maxPosition) {
			return ValidationResult{
				Allowed: false,
				Reason: fmt.Sprintf("position size %s KRW exceeds limit %s KRW",
					amountKRW.StringFixed(0), maxPosition.StringFixed(0)),
			}, nil
		}

		maxExposure := snap.Total.Mul(m.limits.MaxTotalExposurePct)
		if snap.Committed.Add(amountKRW).GreaterThan(maxExposure) {
			return ValidationResult{
				Allowed: false,
				Reason: fmt.Sprintf("total exposure %s KRW would exceed limit %s KRW",
					snap.Committed.Add(amountKRW).StringFixed(0), maxExposure.StringFixed(0)),
			}, nil
		}
	}

	logger.WithFields(map[string]interface{}{
		"market":       market,
		"action":       action,
		"amount_krw":   amountKRW.StringFixed(0),
		"daily_trades": dailyCount,
	}).Debug("Trade validation passed")

	return ValidationResult{Allowed: true}, nil
}

// StopLossPrice returns the price at which a position entered at entryPrice
// should be cut.
func (m *Manager) StopLossPrice(entryPrice decimal.Decimal) decimal.Decimal {
	return entryPrice.Mul(decimal.NewFromInt(1).Sub(m.limits.StopLossPct))
}

// TakeProfitPrice returns the price at which a position entered at entryPrice
// hits its profit target.
func (m *Manager) TakeProfitPrice(entryPrice decimal.Decimal) decimal.Decimal {
	return entryPrice.Mul(decimal.NewFromInt(1).Add(m.limits.TakeProfitPct))
}
