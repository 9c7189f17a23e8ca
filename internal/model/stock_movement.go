package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Movement types.
const (
	MovementReceive    = "receive"
	MovementSale       = "sale"
	MovementRemoval    = "removal"
	MovementReturn     = "return"
	MovementAdjustment = "adjustment"
	MovementCorrection = "correction" // drift repaired by the bulk audit
)

// StockMovement records every change of a variant's stored quantity.
// It is written in the same transaction as the change and never modified.
type StockMovement struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	VariantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Type        string    `gorm:"type:varchar(20);not null"`
	Delta       int       `gorm:"not null"` // positive = in, negative = out
	QtyBefore   int       `gorm:"not null"`
	QtyAfter    int       `gorm:"not null"`
	Reason      string
	ReferenceID *uuid.UUID `gorm:"type:uuid"` // unit id that triggered the change, if any
	CreatedAt   time.Time

	Variant *Variant `gorm:"foreignKey:VariantID"`
}

func (StockMovement) TableName() string { return "stock_movements" }

func (m *StockMovement) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
