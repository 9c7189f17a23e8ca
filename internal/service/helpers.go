package service

import (
	"context"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"

	"gorm.io/gorm"
)

const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// runTx executes fn inside one GORM transaction. Every mutation of the
// inventory core, including the aggregate recompute it triggers, goes through here.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// utcNow is the default clock. Microsecond precision matches PostgreSQL
// timestamps, so keyset cursors built from stored rows compare exactly.
func utcNow() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func variantToResponse(v *model.Variant) dto.VariantResponse {
	return dto.VariantResponse{
		ID:           v.ID.String(),
		ProductID:    v.ProductID.String(),
		Kind:         v.Kind,
		Name:         v.Name,
		SKU:          v.SKU,
		CostPrice:    v.CostPrice,
		SellingPrice: v.SellingPrice,
		Quantity:     v.Quantity,
		MinThreshold: v.MinThreshold,
		Active:       v.Active,
		Scope:        v.Scope,
		CreatedAt:    v.CreatedAt.UTC().Format(timeLayout),
	}
}

func unitToResponse(u *model.Variant) dto.UnitResponse {
	resp := dto.UnitResponse{
		ID:              u.ID.String(),
		ProductID:       u.ProductID.String(),
		Serial:          u.SerialValue(),
		SecondarySerial: u.SecondarySerial,
		Condition:       u.Condition,
		State:           u.State,
		Active:          u.Active,
		CostPrice:       u.CostPrice,
		SellingPrice:    u.SellingPrice,
		SaleRef:         u.SaleRef,
		ReceivedAt:      u.CreatedAt.UTC().Format(timeLayout),
	}
	if u.ParentID != nil {
		resp.ParentID = u.ParentID.String()
	}
	if u.SoldAt != nil {
		s := u.SoldAt.UTC().Format(timeLayout)
		resp.SoldAt = &s
	}
	if u.ReturnedFromID != nil {
		s := u.ReturnedFromID.String()
		resp.ReturnedFromID = &s
	}
	return resp
}
