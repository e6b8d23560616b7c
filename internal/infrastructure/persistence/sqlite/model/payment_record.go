package model

import "github.com/shopspring/decimal"

// PaymentRecord stores amount as exact decimal text and timestamp as unix
// nanoseconds so ordering and range filters stay in SQL.
type PaymentRecord struct {
	ID          uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	Amount      decimal.Decimal `gorm:"column:amount;type:text;not null"`
	Source      string          `gorm:"column:source;type:text;not null;index"`
	Timestamp   int64           `gorm:"column:timestamp;not null;index"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Description string          `gorm:"column:description;type:text;not null"`
	OriginalKey *string         `gorm:"column:original_key;type:text;index"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}
