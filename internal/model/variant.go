package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variant kinds. A single table holds all three; Kind is the discriminator.
//
//   - standard: Quantity is authoritative and mutated directly.
//   - parent:   Quantity is derived, always count(available units).
//   - unit:     one serialized physical item; Quantity mirrors State (1/0).
const (
	KindStandard = "standard"
	KindParent   = "parent"
	KindUnit     = "unit"
)

// Unit states. A unit enters as available on receipt; sold is terminal.
const (
	UnitAvailable = "available"
	UnitSold      = "sold"
)

// DefaultCondition is applied when a unit is received without a condition tag.
const DefaultCondition = "new"

// Variant is a stock-keeping record of kind standard, parent or unit.
// Serial is a first-class column so the partial unique index
// idx_variants_active_serial can guard it (see infra.applySchemaPatches).
type Variant struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ParentID     *uuid.UUID      `gorm:"type:uuid;index:idx_variants_parent_state,priority:1"`
	Kind         string          `gorm:"type:varchar(20);not null;index"`
	Name         string          `gorm:"not null"`
	SKU          string          `gorm:"column:sku"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Quantity     int             `gorm:"not null;default:0"`
	MinThreshold int             `gorm:"not null;default:0"`
	Active       bool            `gorm:"not null;default:true"`
	Scope        string          `gorm:"index"`

	// Unit-only columns
	Serial          *string    `gorm:"index"`
	SecondarySerial *string
	Condition       string     `gorm:"type:varchar(30)"`
	State           string     `gorm:"type:varchar(20);index:idx_variants_parent_state,priority:2"`
	SoldAt          *time.Time
	SaleRef         *string
	ReceiptKey      *string
	ReturnedFromID  *uuid.UUID `gorm:"type:uuid"`

	// CreatedAt doubles as the receipt time of a unit; allocation orders on it.
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Parent *Variant `gorm:"foreignKey:ParentID"`
}

func (Variant) TableName() string { return "variants" }

func (v *Variant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (v *Variant) IsParent() bool   { return v.Kind == KindParent }
func (v *Variant) IsUnit() bool     { return v.Kind == KindUnit }
func (v *Variant) IsStandard() bool { return v.Kind == KindStandard }

// SerialValue returns the serial or "" for non-unit variants.
func (v *Variant) SerialValue() string {
	if v.Serial == nil {
		return ""
	}
	return *v.Serial
}
