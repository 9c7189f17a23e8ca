package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnitCursor is a keyset position in the oldest-first unit ordering.
type UnitCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// UnitFields are the unit columns that may change after receipt.
// Nil fields are left as they are.
type UnitFields struct {
	Condition       *string
	SecondarySerial *string
	CostPrice       *decimal.Decimal
	SellingPrice    *decimal.Decimal
}

// VariantRepository is the data access contract for the variants table
// (standard, parent and unit rows).
type VariantRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Variant, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Variant, error)
	ListLowStock(ctx context.Context, scope string) ([]model.Variant, error)
	// ListParentIDs pages through every parent variant by id for the bulk audit.
	ListParentIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)

	// Unit ledger reads
	ListAvailableUnits(ctx context.Context, parentID uuid.UUID, after *UnitCursor, limit int) ([]model.Variant, error)
	ListUnits(ctx context.Context, parentID uuid.UUID, state string) ([]model.Variant, error)
	FindActiveUnitBySerial(ctx context.Context, serial string) (*model.Variant, error)
	ListUnitsBySerial(ctx context.Context, serial string) ([]model.Variant, error)
	// SearchUnits matches term as a case-insensitive substring of the serial or
	// secondary serial, newest first.
	SearchUnits(ctx context.Context, term, scope string, limit int) ([]model.Variant, error)

	// Used inside transactions; callers must pass the tx instance
	CreateTx(tx *gorm.DB, v *model.Variant) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Variant, error)
	LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Variant, error)
	CountActiveByProductTx(tx *gorm.DB, productID uuid.UUID) (int64, error)
	OldestActiveByProductTx(tx *gorm.DB, productID uuid.UUID) (*model.Variant, error)
	CountAvailableUnitsTx(tx *gorm.DB, parentID uuid.UUID) (int64, error)
	AvailableUnitIDsTx(tx *gorm.DB, parentID uuid.UUID, exclude []uuid.UUID, limit int) ([]uuid.UUID, error)
	// MarkSoldTx is the atomic available→sold transition. It reports false when
	// the unit was no longer available, so the caller can move to the next candidate.
	MarkSoldTx(tx *gorm.DB, unitID uuid.UUID, saleRef *string, at time.Time) (bool, error)
	// RemoveUnitTx soft-deletes an available unit; false when it is not available.
	RemoveUnitTx(tx *gorm.DB, unitID uuid.UUID) (bool, error)
	// UpdateUnitTx edits descriptive columns of an available unit; false when
	// the unit is sold or removed. State and serial are never touched.
	UpdateUnitTx(tx *gorm.DB, unitID uuid.UUID, fields UnitFields) (bool, error)
	HasReturnTx(tx *gorm.DB, soldUnitID uuid.UUID) (bool, error)
	SetQuantityTx(tx *gorm.DB, id uuid.UUID, qty int) error
	UpdatePricesTx(tx *gorm.DB, id uuid.UUID, cost, selling decimal.Decimal) error
	UpdateKindTx(tx *gorm.DB, id uuid.UUID, kind string) error
	DeactivateTx(tx *gorm.DB, id uuid.UUID) error

	DB() *gorm.DB
}

type variantRepo struct{ db *gorm.DB }

func NewVariantRepository(db *gorm.DB) VariantRepository { return &variantRepo{db: db} }

func (r *variantRepo) DB() *gorm.DB { return r.db }

func (r *variantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Variant, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *variantRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]model.Variant, error) {
	var variants []model.Variant
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND kind <> ?", productID, model.KindUnit).
		Order("created_at ASC, id ASC").
		Find(&variants).Error
	return variants, err
}

func (r *variantRepo) ListLowStock(ctx context.Context, scope string) ([]model.Variant, error) {
	q := r.db.WithContext(ctx).
		Where("kind <> ? AND active = ? AND quantity <= min_threshold", model.KindUnit, true)
	if scope != "" {
		q = q.Where("scope = ?", scope)
	}
	var variants []model.Variant
	err := q.Order("quantity ASC, name ASC").Find(&variants).Error
	return variants, err
}

func (r *variantRepo) ListParentIDs(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	q := r.db.WithContext(ctx).Model(&model.Variant{}).Where("kind = ?", model.KindParent)
	if after != uuid.Nil {
		q = q.Where("id > ?", after)
	}
	var ids []uuid.UUID
	err := q.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

// availableUnits scopes a query to units counted in a parent's stock.
func availableUnits(q *gorm.DB, parentID uuid.UUID) *gorm.DB {
	return q.Where("parent_id = ? AND kind = ? AND state = ? AND active = ?",
		parentID, model.KindUnit, model.UnitAvailable, true)
}

func (r *variantRepo) ListAvailableUnits(ctx context.Context, parentID uuid.UUID, after *UnitCursor, limit int) ([]model.Variant, error) {
	q := availableUnits(r.db.WithContext(ctx), parentID)
	if after != nil {
		q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var units []model.Variant
	err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&units).Error
	return units, err
}

func (r *variantRepo) ListUnits(ctx context.Context, parentID uuid.UUID, state string) ([]model.Variant, error) {
	q := r.db.WithContext(ctx).Where("parent_id = ? AND kind = ?", parentID, model.KindUnit)
	if state != "" {
		q = q.Where("state = ?", state)
	}
	var units []model.Variant
	err := q.Order("created_at ASC, id ASC").Find(&units).Error
	return units, err
}

func (r *variantRepo) FindActiveUnitBySerial(ctx context.Context, serial string) (*model.Variant, error) {
	var v model.Variant
	err := r.db.WithContext(ctx).
		Where("serial = ? AND kind = ? AND state = ? AND active = ?", serial, model.KindUnit, model.UnitAvailable, true).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) ListUnitsBySerial(ctx context.Context, serial string) ([]model.Variant, error) {
	var units []model.Variant
	err := r.db.WithContext(ctx).
		Where("serial = ? AND kind = ?", serial, model.KindUnit).
		Order("created_at ASC, id ASC").
		Find(&units).Error
	return units, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *variantRepo) SearchUnits(ctx context.Context, term, scope string, limit int) ([]model.Variant, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	q := r.db.WithContext(ctx).
		Where("kind = ?", model.KindUnit).
		Where(`(LOWER(serial) LIKE ? ESCAPE '\' OR LOWER(secondary_serial) LIKE ? ESCAPE '\')`, pattern, pattern)
	if scope != "" {
		q = q.Where("scope = ?", scope)
	}
	var units []model.Variant
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&units).Error
	return units, err
}

func (r *variantRepo) CreateTx(tx *gorm.DB, v *model.Variant) error {
	return tx.Omit(clause.Associations).Create(v).Error
}

func (r *variantRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Variant, error) {
	var v model.Variant
	if err := tx.First(&v, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) LockByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Variant, error) {
	var v model.Variant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) CountActiveByProductTx(tx *gorm.DB, productID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.Variant{}).
		Where("product_id = ? AND kind <> ? AND active = ?", productID, model.KindUnit, true).
		Count(&n).Error
	return n, err
}

func (r *variantRepo) OldestActiveByProductTx(tx *gorm.DB, productID uuid.UUID) (*model.Variant, error) {
	var v model.Variant
	err := tx.Where("product_id = ? AND kind <> ? AND active = ?", productID, model.KindUnit, true).
		Order("created_at ASC, id ASC").
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepo) CountAvailableUnitsTx(tx *gorm.DB, parentID uuid.UUID) (int64, error) {
	var n int64
	err := availableUnits(tx.Model(&model.Variant{}), parentID).Count(&n).Error
	return n, err
}

func (r *variantRepo) AvailableUnitIDsTx(tx *gorm.DB, parentID uuid.UUID, exclude []uuid.UUID, limit int) ([]uuid.UUID, error) {
	q := availableUnits(tx.Model(&model.Variant{}), parentID)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var ids []uuid.UUID
	err := q.Order("created_at ASC, id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func (r *variantRepo) MarkSoldTx(tx *gorm.DB, unitID uuid.UUID, saleRef *string, at time.Time) (bool, error) {
	res := tx.Model(&model.Variant{}).
		Where("id = ? AND kind = ? AND state = ? AND active = ?", unitID, model.KindUnit, model.UnitAvailable, true).
		Updates(map[string]interface{}{
			"state":    model.UnitSold,
			"quantity": 0,
			"sold_at":  at,
			"sale_ref": saleRef,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *variantRepo) RemoveUnitTx(tx *gorm.DB, unitID uuid.UUID) (bool, error) {
	res := tx.Model(&model.Variant{}).
		Where("id = ? AND kind = ? AND state = ? AND active = ?", unitID, model.KindUnit, model.UnitAvailable, true).
		Updates(map[string]interface{}{"active": false, "quantity": 0})
	return res.RowsAffected == 1, res.Error
}

func (r *variantRepo) UpdateUnitTx(tx *gorm.DB, unitID uuid.UUID, fields UnitFields) (bool, error) {
	updates := map[string]interface{}{}
	if fields.Condition != nil {
		updates["condition"] = *fields.Condition
	}
	if fields.SecondarySerial != nil {
		updates["secondary_serial"] = *fields.SecondarySerial
	}
	if fields.CostPrice != nil {
		updates["cost_price"] = *fields.CostPrice
	}
	if fields.SellingPrice != nil {
		updates["selling_price"] = *fields.SellingPrice
	}
	if len(updates) == 0 {
		return false, nil
	}
	res := tx.Model(&model.Variant{}).
		Where("id = ? AND kind = ? AND state = ? AND active = ?", unitID, model.KindUnit, model.UnitAvailable, true).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *variantRepo) HasReturnTx(tx *gorm.DB, soldUnitID uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.Variant{}).Where("returned_from_id = ?", soldUnitID).Count(&n).Error
	return n > 0, err
}

func (r *variantRepo) SetQuantityTx(tx *gorm.DB, id uuid.UUID, qty int) error {
	return tx.Model(&model.Variant{}).Where("id = ?", id).Update("quantity", qty).Error
}

func (r *variantRepo) UpdatePricesTx(tx *gorm.DB, id uuid.UUID, cost, selling decimal.Decimal) error {
	return tx.Model(&model.Variant{}).Where("id = ?", id).Updates(map[string]interface{}{
		"cost_price":    cost,
		"selling_price": selling,
	}).Error
}

func (r *variantRepo) UpdateKindTx(tx *gorm.DB, id uuid.UUID, kind string) error {
	return tx.Model(&model.Variant{}).Where("id = ?", id).Update("kind", kind).Error
}

func (r *variantRepo) DeactivateTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&model.Variant{}).Where("id = ?", id).Update("active", false).Error
}
