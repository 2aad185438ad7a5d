package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketOutcome is the recorded ground-truth movement of one ticker during
// one window. Written by the platform's outcome recorder; read-only here.
type MarketOutcome struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	WindowID string `gorm:"column:window_id;type:varchar(16);index;not null"`

	StockTicker   string          `gorm:"column:stock_ticker;type:varchar(20);index"`
	StartPrice    decimal.Decimal `gorm:"column:start_price;type:numeric(30,10);not null"`
	EndPrice      decimal.Decimal `gorm:"column:end_price;type:numeric(30,10);not null"`
	ChangePercent decimal.Decimal `gorm:"column:change_percent;type:numeric(10,4);not null"`

	Sentiment  *string        `gorm:"column:sentiment;type:varchar(10)"`
	NewsEvents datatypes.JSON `gorm:"column:news_events;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;autoCreateTime"`
}

func (MarketOutcome) TableName() string {
	return "market_outcomes"
}
