package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeSideBid = "bid"
	TradeSideAsk = "ask"
)

// Trade is the audit ledger of every order this process has placed. It is
// also the source of truth for the daily trade counter, so it must be written
// in the same flow that places the order, never reconstructed from memory.
type Trade struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderUUID string          `gorm:"size:64;uniqueIndex;not null" json:"order_uuid"`
	SignalID  string          `gorm:"size:64;index" json:"signal_id"`
	Market    string          `gorm:"size:20;not null;index" json:"market"`
	Side      string          `gorm:"size:10;not null" json:"side"`
	OrdType   string          `gorm:"size:10;not null" json:"ord_type"`
	Volume    decimal.Decimal `gorm:"type:numeric(32,12)" json:"volume"`
	Price     decimal.Decimal `gorm:"type:numeric(32,12)" json:"price"`
	AmountKRW decimal.Decimal `gorm:"type:numeric(32,4)" json:"amount_krw"`
	State     string          `gorm:"size:20" json:"state"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}
