package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"makenaide/src/connectors"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubCounter struct {
	count     int64
	err       error
	lastSince time.Time
}

func (s *stubCounter) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.lastSince = since
	return s.count, s.err
}

type stubExchange struct {
	accounts    []connectors.AccountBalance
	accountsErr error
	tickers     map[string]decimal.Decimal
	tickerErr   error
}

func (s *stubExchange) GetAccounts() ([]connectors.AccountBalance, error) {
	if s.accountsErr != nil {
		return nil, s.accountsErr
	}
	return s.accounts, nil
}

func (s *stubExchange) GetTicker(market string) (*connectors.Ticker, error) {
	if s.tickerErr != nil {
		return nil, s.tickerErr
	}
	price, ok := s.tickers[market]
	if !ok {
		return nil, errors.New("no ticker")
	}
	return &connectors.Ticker{Market: market, TradePrice: price}, nil
}

func testLimits() Limits {
	return Limits{
		MaxDailyTrades:      10,
		MaxPositionPct:      d("0.10"),
		MaxTotalExposurePct: d("0.30"),
		StopLossPct:         d("0.08"),
		TakeProfitPct:       d("0.20"),
	}
}

func TestPositionSizeByStrength(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{})
	balance := d("1000000")

	tests := []struct {
		name     string
		strength string
		want     decimal.Decimal
	}{
		{name: "weak allocates 2 percent", strength: "weak", want: d("20000")},
		{name: "medium allocates 3 percent", strength: "medium", want: d("30000")},
		{name: "strong allocates 5 percent", strength: "strong", want: d("50000")},
		{name: "unknown falls back to medium", strength: "whatever", want: d("30000")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.PositionSize(balance, tt.strength)
			if !got.Equal(tt.want) {
				t.Fatalf("PositionSize(%s) = %s, want %s", tt.strength, got, tt.want)
			}
		})
	}
}

func TestPositionSizeCappedAtPositionLimit(t *testing.T) {
	limits := testLimits()
	limits.MaxPositionPct = d("0.04") // below the strong tier weight
	m := NewManager(limits, &stubCounter{})

	got := m.PositionSize(d("1000000"), "strong")
	if !got.Equal(d("40000")) {
		t.Fatalf("expected size capped at 40000, got %s", got)
	}
}

func TestPositionSizeZeroBalance(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{})

	if got := m.PositionSize(decimal.Zero, "strong"); !got.IsZero() {
		t.Fatalf("expected zero size for zero balance, got %s", got)
	}
	if got := m.PositionSize(d("-5"), "medium"); !got.IsZero() {
		t.Fatalf("expected zero size for negative balance, got %s", got)
	}
}

func TestValidateTradeDailyLimit(t *testing.T) {
	counter := &stubCounter{count: 10}
	m := NewManager(testLimits(), counter)
	snap := &Snapshot{Total: d("1000000")}

	result, err := m.ValidateTrade(context.Background(), "KRW-BTC", "BUY", d("10000"), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected trade disallowed at daily limit")
	}
	if result.Reason == "" {
		t.Fatal("expected a reason for the disallowed trade")
	}
}

func TestValidateTradePositionCap(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{count: 0})
	snap := &Snapshot{Total: d("1000000")}

	result, err := m.ValidateTrade(context.Background(), "KRW-BTC", "BUY", d("100001"), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected trade above 10 percent of balance to be disallowed")
	}

	result, err = m.ValidateTrade(context.Background(), "KRW-BTC", "BUY", d("100000"), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected trade at the cap to pass, got reason %q", result.Reason)
	}
}

func TestValidateTradeExposureCap(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{})
	snap := &Snapshot{
		Total:     d("1000000"),
		Committed: d("250000"),
	}

	// 250k committed + 60k proposed > 300k exposure limit.
	result, err := m.ValidateTrade(context.Background(), "KRW-ETH", "BUY", d("60000"), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected trade breaching total exposure to be disallowed")
	}

	// Sells reduce exposure and are not subject to the buy caps.
	result, err = m.ValidateTrade(context.Background(), "KRW-ETH", "SELL", d("60000"), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected sell to pass, got reason %q", result.Reason)
	}
}

func TestValidateTradeFailsClosedOnCounterError(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{err: errors.New("store down")})
	snap := &Snapshot{Total: d("1000000")}

	_, err := m.ValidateTrade(context.Background(), "KRW-BTC", "BUY", d("10000"), snap)
	if err == nil {
		t.Fatal("expected error when the trade counter is unavailable")
	}
}

func TestDailyTradeCountUsesUTCDayStart(t *testing.T) {
	counter := &stubCounter{count: 3}
	fixed := time.Date(2025, time.June, 10, 15, 30, 0, 0, time.FixedZone("KST", 9*3600))
	m := NewManager(testLimits(), counter).WithNow(func() time.Time { return fixed })

	count, err := m.DailyTradeCount(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}

	want := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	if !counter.lastSince.Equal(want) {
		t.Fatalf("expected day start %s, got %s", want, counter.lastSince)
	}
}

func TestTakeSnapshotValuesHoldings(t *testing.T) {
	ex := &stubExchange{
		accounts: []connectors.AccountBalance{
			{Currency: "KRW", Balance: d("500000")},
			{Currency: "BTC", Balance: d("0.01")},
			{Currency: "DOGE", Balance: decimal.Zero},
		},
		tickers: map[string]decimal.Decimal{
			"KRW-BTC": d("50000000"),
		},
	}

	m := NewManager(testLimits(), &stubCounter{})
	snap, err := m.TakeSnapshot(ex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !snap.KRW.Equal(d("500000")) {
		t.Fatalf("expected 500000 KRW, got %s", snap.KRW)
	}
	if !snap.Committed.Equal(d("500000")) {
		t.Fatalf("expected 500000 committed, got %s", snap.Committed)
	}
	if !snap.Total.Equal(d("1000000")) {
		t.Fatalf("expected total 1000000, got %s", snap.Total)
	}
	if _, ok := snap.Holdings["DOGE"]; ok {
		t.Fatal("zero balances must not appear in holdings")
	}
	if !snap.Holdings["BTC"].Equal(d("0.01")) {
		t.Fatalf("expected BTC holding 0.01, got %s", snap.Holdings["BTC"])
	}
}

func TestTakeSnapshotFailsClosed(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{})

	if _, err := m.TakeSnapshot(&stubExchange{accountsErr: errors.New("down")}); err == nil {
		t.Fatal("expected error when accounts fetch fails")
	}

	ex := &stubExchange{
		accounts: []connectors.AccountBalance{{Currency: "BTC", Balance: d("1")}},
		tickers:  map[string]decimal.Decimal{},
	}
	if _, err := m.TakeSnapshot(ex); err == nil {
		t.Fatal("expected error when a holding cannot be priced")
	}
}

func TestExitPrices(t *testing.T) {
	m := NewManager(testLimits(), &stubCounter{})
	entry := d("100000")

	if got := m.StopLossPrice(entry); !got.Equal(d("92000")) {
		t.Fatalf("expected stop loss 92000, got %s", got)
	}
	if got := m.TakeProfitPrice(entry); !got.Equal(d("120000")) {
		t.Fatalf("expected take profit 120000, got %s", got)
	}
}
