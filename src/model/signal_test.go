package model

import (
	"testing"
)

func TestTradingSignalValidate(t *testing.T) {
	valid := func() TradingSignal {
		return TradingSignal{
			SignalID:       "sig-1",
			Action:         SignalActionBuy,
			Tickers:        []string{"BTC"},
			SignalStrength: SignalStrengthMedium,
		}
	}

	t.Run("valid signal", func(t *testing.T) {
		sig := valid()
		if err := sig.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing signal id", func(t *testing.T) {
		sig := valid()
		sig.SignalID = ""
		if err := sig.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("invalid action", func(t *testing.T) {
		sig := valid()
		sig.Action = "HOLD"
		if err := sig.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("lowercase action accepted", func(t *testing.T) {
		sig := valid()
		sig.Action = "buy"
		if err := sig.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("no tickers", func(t *testing.T) {
		sig := valid()
		sig.Tickers = nil
		if err := sig.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("empty strength defaults to medium", func(t *testing.T) {
		sig := valid()
		sig.SignalStrength = ""
		if err := sig.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if sig.SignalStrength != SignalStrengthMedium {
			t.Fatalf("expected medium, got %s", sig.SignalStrength)
		}
	})

	t.Run("invalid strength", func(t *testing.T) {
		sig := valid()
		sig.SignalStrength = "extreme"
		if err := sig.Validate(); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestExecutionResultCounts(t *testing.T) {
	result := ExecutionResult{
		Orders: []TickerOutcome{
			{Market: "KRW-BTC", Status: TickerOutcomeExecuted},
			{Market: "KRW-ETH", Status: TickerOutcomeSkipped},
			{Market: "KRW-XRP", Status: TickerOutcomeFailed},
			{Market: "KRW-SOL", Status: TickerOutcomeExecuted},
		},
	}

	if got := result.ExecutedCount(); got != 2 {
		t.Fatalf("ExecutedCount() = %d, want 2", got)
	}
	if got := result.FailedCount(); got != 1 {
		t.Fatalf("FailedCount() = %d, want 1", got)
	}
}
