package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product status values.
// ProductDraft marks a product whose variant batch is still in flight; it is
// promoted to ProductActive by an explicit finalize call, never by a timer.
const (
	ProductDraft    = "draft"
	ProductActive   = "active"
	ProductInactive = "inactive"
)

// Product is a catalog entry that owns one or more Variants.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"index;not null"`
	SKU       string    `gorm:"column:sku;index"`
	Category  string
	Status    string `gorm:"type:varchar(20);not null;default:'draft'"`
	Scope     string `gorm:"index"` // opaque tenant/branch attribute, carried but never interpreted
	CreatedAt time.Time
	UpdatedAt time.Time

	Variants []Variant `gorm:"foreignKey:ProductID"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
