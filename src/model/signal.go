package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SignalStatusPending    = "pending"
	SignalStatusProcessing = "processing"
	SignalStatusCompleted  = "completed"
	SignalStatusFailed     = "failed"
)

const (
	SignalActionBuy  = "BUY"
	SignalActionSell = "SELL"
)

const (
	SignalStrengthWeak   = "weak"
	SignalStrengthMedium = "medium"
	SignalStrengthStrong = "strong"
)

// TradingSignal is one unit of work in the durable signal queue. Upstream
// analysis inserts it as pending; only the runner mutates it afterwards.
// Rows are never deleted, they just age out of the pending query window.
type TradingSignal struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	SignalID       string           `gorm:"size:64;uniqueIndex;not null" json:"signal_id"`
	Action         string           `gorm:"size:10;not null" json:"action"`
	Tickers        []string         `gorm:"serializer:json" json:"tickers"`
	SignalStrength string           `gorm:"size:10;not null;default:medium" json:"signal_strength"`
	Status         string           `gorm:"size:20;not null;default:pending;index" json:"status"`
	ExecutionResult *ExecutionResult `gorm:"serializer:json" json:"execution_result,omitempty"`
	CreatedAt      time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (TradingSignal) TableName() string {
	return "trading_signals"
}

// Validate enforces the required shape before a signal is executed. Signals
// arrive from an external writer, so a malformed row must fail loudly here
// instead of producing a half-formed order downstream.
func (s *TradingSignal) Validate() error {
	if s.SignalID == "" {
		return fmt.Errorf("signal has no signal_id")
	}

	action := strings.ToUpper(s.Action)
	if action != SignalActionBuy && action != SignalActionSell {
		return fmt.Errorf("signal %s has invalid action %q", s.SignalID, s.Action)
	}

	if len(s.Tickers) == 0 {
		return fmt.Errorf("signal %s has no tickers", s.SignalID)
	}

	switch s.SignalStrength {
	case SignalStrengthWeak, SignalStrengthMedium, SignalStrengthStrong:
	case "":
		s.SignalStrength = SignalStrengthMedium
	default:
		return fmt.Errorf("signal %s has invalid signal_strength %q", s.SignalID, s.SignalStrength)
	}

	return nil
}

const (
	ExecutionStatusSuccess = "success"
	ExecutionStatusError   = "error"
)

const (
	TickerOutcomeExecuted = "executed"
	TickerOutcomeSkipped  = "skipped"
	TickerOutcomeFailed   = "failed"
)

// ExecutionResult is the aggregated outcome of executing one signal. It is
// embedded into the signal row when the runner moves it to a terminal state.
type ExecutionResult struct {
	SignalID  string          `json:"signal_id"`
	Status    string          `json:"status"`
	Orders    []TickerOutcome `json:"orders,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// TickerOutcome records what happened to a single ticker within a signal.
// Skips and failures carry a reason so the operator can see why no order
// was placed without digging through logs.
type TickerOutcome struct {
	Market    string          `json:"market"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	OrderUUID string          `json:"order_uuid,omitempty"`
	Volume    decimal.Decimal `json:"volume,omitempty"`
	AmountKRW decimal.Decimal `json:"amount_krw,omitempty"`
	Price     decimal.Decimal `json:"price,omitempty"`
}

// ExecutedCount returns how many tickers resulted in a placed order.
func (r *ExecutionResult) ExecutedCount() int {
	count := 0
	for _, o := range r.Orders {
		if o.Status == TickerOutcomeExecuted {
			count++
		}
	}
	return count
}

// FailedCount returns how many tickers failed outright (skips excluded).
func (r *ExecutionResult) FailedCount() int {
	count := 0
	for _, o := range r.Orders {
		if o.Status == TickerOutcomeFailed {
			count++
		}
	}
	return count
}
