package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceHistory records each price change of a parent or standard variant.
// Rows are immutable. Units never appear here: their prices are fixed at receipt.
type PriceHistory struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VariantID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	CostBefore    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CostAfter     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SellingBefore decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SellingAfter  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason        string          `gorm:"not null;default:'manual'"`
	CreatedAt     time.Time
}

func (PriceHistory) TableName() string { return "price_history" }

func (h *PriceHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
