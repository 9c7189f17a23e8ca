package service

import (
	"context"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const defaultAuditBatchSize = 200

// StockService is the variant aggregator: a parent's quantity is always
// recomputed from its units, never incremented or decremented.
type StockService interface {
	RecomputeParentStock(ctx context.Context, parentID uuid.UUID) (int, error)
	// RecomputeAll is the out-of-band repair pass for historically drifted
	// parents. It is not a substitute for the synchronous recompute.
	RecomputeAll(ctx context.Context) (*dto.AuditReport, error)
	ListMovements(ctx context.Context, filter repository.StockMovementFilter) (*dto.StockMovementListResponse, error)
}

// aggregator is shared by every service that mutates units, so the recompute
// always runs inside the caller's transaction.
type aggregator struct {
	variants  repository.VariantRepository
	movements repository.StockMovementRepository
}

// lockParentTx acquires the parent row for the rest of the transaction.
// All unit mutations of one parent serialise on this lock.
func (a *aggregator) lockParentTx(tx *gorm.DB, parentID uuid.UUID) (*model.Variant, error) {
	parent, err := a.variants.LockByIDTx(tx, parentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, &ParentNotFoundError{ParentID: parentID}
		}
		return nil, err
	}
	if !parent.IsParent() {
		return nil, &ParentNotFoundError{ParentID: parentID, Reason: "variant kind is " + parent.Kind}
	}
	if !parent.Active {
		return nil, &ParentNotFoundError{ParentID: parentID, Reason: "parent is inactive"}
	}
	return parent, nil
}

// recomputeTx sets parent.Quantity = count(available units). The parent must
// already be locked in tx. A movement is written whenever the value changes.
func (a *aggregator) recomputeTx(tx *gorm.DB, parent *model.Variant, movementType, reason string, ref *uuid.UUID) (int, error) {
	n, err := a.variants.CountAvailableUnitsTx(tx, parent.ID)
	if err != nil {
		return 0, err
	}
	qty := int(n)
	if qty == parent.Quantity {
		return qty, nil
	}
	if err := a.variants.SetQuantityTx(tx, parent.ID, qty); err != nil {
		return 0, err
	}
	mov := &model.StockMovement{
		VariantID:   parent.ID,
		Type:        movementType,
		Delta:       qty - parent.Quantity,
		QtyBefore:   parent.Quantity,
		QtyAfter:    qty,
		Reason:      reason,
		ReferenceID: ref,
	}
	if err := a.movements.CreateTx(tx, mov); err != nil {
		return 0, err
	}
	parent.Quantity = qty
	return qty, nil
}

type stockService struct {
	agg       *aggregator
	batchSize int
}

func NewStockService(variants repository.VariantRepository, movements repository.StockMovementRepository, batchSize int) StockService {
	if batchSize <= 0 {
		batchSize = defaultAuditBatchSize
	}
	return &stockService{
		agg:       &aggregator{variants: variants, movements: movements},
		batchSize: batchSize,
	}
}

func (s *stockService) RecomputeParentStock(ctx context.Context, parentID uuid.UUID) (int, error) {
	var qty int
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.lockParentTx(tx, parentID)
		if err != nil {
			return err
		}
		qty, err = s.agg.recomputeTx(tx, parent, model.MovementCorrection, "recompute", nil)
		return err
	})
	if err != nil {
		return 0, storeErr("recompute parent stock", err)
	}
	return qty, nil
}

// RecomputeAll walks every parent (active or not) in id order, one short
// transaction per parent, and reports each stored value it had to correct.
func (s *stockService) RecomputeAll(ctx context.Context) (*dto.AuditReport, error) {
	report := &dto.AuditReport{
		Corrections: []dto.Correction{},
		StartedAt:   time.Now().UTC().Format(timeLayout),
	}

	after := uuid.Nil
	for {
		ids, err := s.agg.variants.ListParentIDs(ctx, after, s.batchSize)
		if err != nil {
			return report, storeErr("list parents", err)
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			corr, err := s.auditParent(ctx, id)
			if err != nil {
				return report, storeErr("audit parent "+id.String(), err)
			}
			report.Checked++
			if corr != nil {
				report.Corrected++
				report.Corrections = append(report.Corrections, *corr)
			}
		}
		after = ids[len(ids)-1]
		if len(ids) < s.batchSize {
			break
		}
	}

	report.FinishedAt = time.Now().UTC().Format(timeLayout)
	log.Info().
		Int("checked", report.Checked).
		Int("corrected", report.Corrected).
		Msg("stock audit finished")
	return report, nil
}

func (s *stockService) auditParent(ctx context.Context, id uuid.UUID) (*dto.Correction, error) {
	var corr *dto.Correction
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		parent, err := s.agg.variants.LockByIDTx(tx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil // removed since listing
			}
			return err
		}
		stored := parent.Quantity
		actual, err := s.agg.recomputeTx(tx, parent, model.MovementCorrection, "bulk audit", nil)
		if err != nil {
			return err
		}
		if actual != stored {
			mismatch := &StockMismatchError{VariantID: parent.ID, Stored: stored, Actual: actual}
			log.Warn().Err(mismatch).
				Str("product_id", parent.ProductID.String()).
				Msg("stock audit corrected drifted parent")
			corr = &dto.Correction{
				VariantID: parent.ID.String(),
				ProductID: parent.ProductID.String(),
				Name:      parent.Name,
				Stored:    stored,
				Actual:    actual,
			}
		}
		return nil
	})
	return corr, err
}

func (s *stockService) ListMovements(ctx context.Context, filter repository.StockMovementFilter) (*dto.StockMovementListResponse, error) {
	movements, total, err := s.agg.movements.List(ctx, filter)
	if err != nil {
		return nil, storeErr("list movements", err)
	}
	data := make([]dto.StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		resp := dto.StockMovementResponse{
			ID:        m.ID.String(),
			VariantID: m.VariantID.String(),
			Type:      m.Type,
			Delta:     m.Delta,
			QtyBefore: m.QtyBefore,
			QtyAfter:  m.QtyAfter,
			Reason:    m.Reason,
			CreatedAt: m.CreatedAt.UTC().Format(timeLayout),
		}
		if m.ReferenceID != nil {
			ref := m.ReferenceID.String()
			resp.Reference = &ref
		}
		data = append(data, resp)
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return &dto.StockMovementListResponse{Data: data, Total: total, Page: page, Limit: limit}, nil
}
