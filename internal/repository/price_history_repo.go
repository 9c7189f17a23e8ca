package repository

import (
	"context"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PriceHistoryRepository interface {
	CreateTx(tx *gorm.DB, h *model.PriceHistory) error
	ListByVariant(ctx context.Context, variantID uuid.UUID, limit int) ([]model.PriceHistory, error)
}

type priceHistoryRepo struct{ db *gorm.DB }

func NewPriceHistoryRepository(db *gorm.DB) PriceHistoryRepository {
	return &priceHistoryRepo{db: db}
}

func (r *priceHistoryRepo) CreateTx(tx *gorm.DB, h *model.PriceHistory) error {
	return tx.Create(h).Error
}

// ListByVariant returns price changes newest-first (append-only table).
func (r *priceHistoryRepo) ListByVariant(ctx context.Context, variantID uuid.UUID, limit int) ([]model.PriceHistory, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var rows []model.PriceHistory
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
