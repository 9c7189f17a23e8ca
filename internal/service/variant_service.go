package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// VariantService manages parent and standard variants of a product.
type VariantService interface {
	CreateParentVariant(ctx context.Context, productID uuid.UUID, req dto.CreateParentVariantRequest) (*dto.VariantResponse, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*dto.VariantResponse, error)
	ListProductVariants(ctx context.Context, productID uuid.UUID) ([]dto.VariantResponse, error)
	UpdateVariantPrices(ctx context.Context, id uuid.UUID, req dto.UpdatePricesRequest) (*dto.VariantResponse, error)
	ListPriceHistory(ctx context.Context, id uuid.UUID, limit int) ([]dto.PriceChangeResponse, error)
	ConvertToParent(ctx context.Context, id uuid.UUID) (*dto.VariantResponse, error)
	AdjustStandardStock(ctx context.Context, id uuid.UUID, req dto.AdjustStockRequest) (*dto.VariantResponse, error)
	DeactivateVariant(ctx context.Context, id uuid.UUID) error
	ListLowStock(ctx context.Context, scope string) ([]dto.VariantResponse, error)
}

type variantService struct {
	products repository.ProductRepository
	agg      *aggregator
	prices   repository.PriceHistoryRepository
	now      func() time.Time
}

func NewVariantService(
	products repository.ProductRepository,
	variants repository.VariantRepository,
	movements repository.StockMovementRepository,
	prices repository.PriceHistoryRepository,
) VariantService {
	return &variantService{
		products: products,
		agg:      &aggregator{variants: variants, movements: movements},
		prices:   prices,
		now:      utcNow,
	}
}

func (s *variantService) CreateParentVariant(ctx context.Context, productID uuid.UUID, req dto.CreateParentVariantRequest) (*dto.VariantResponse, error) {
	var v *model.Variant
	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		product, err := s.products.LockByIDTx(tx, productID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
			}
			return err
		}
		v = newVariant(product, dto.VariantInput{
			Kind:         model.KindParent,
			Name:         req.Name,
			SKU:          req.SKU,
			CostPrice:    req.CostPrice,
			SellingPrice: req.SellingPrice,
			MinThreshold: req.MinThreshold,
			Scope:        req.Scope,
		}, s.now())
		return s.agg.variants.CreateTx(tx, v)
	})
	if err != nil {
		return nil, storeErr("create parent variant", err)
	}
	log.Info().
		Str("product_id", productID.String()).
		Str("variant_id", v.ID.String()).
		Msg("parent variant created")
	resp := variantToResponse(v)
	return &resp, nil
}

func (s *variantService) GetVariant(ctx context.Context, id uuid.UUID) (*dto.VariantResponse, error) {
	v, err := s.findNonUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := variantToResponse(v)
	return &resp, nil
}

func (s *variantService) ListProductVariants(ctx context.Context, productID uuid.UUID) ([]dto.VariantResponse, error) {
	variants, err := s.agg.variants.ListByProduct(ctx, productID)
	if err != nil {
		return nil, storeErr("list variants", err)
	}
	out := make([]dto.VariantResponse, 0, len(variants))
	for i := range variants {
		out = append(out, variantToResponse(&variants[i]))
	}
	return out, nil
}

// UpdateVariantPrices changes the current prices of a parent or standard
// variant and records the change. Existing units keep the prices they were
// received with.
func (s *variantService) UpdateVariantPrices(ctx context.Context, id uuid.UUID, req dto.UpdatePricesRequest) (*dto.VariantResponse, error) {
	var v *model.Variant
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		var err error
		if v, err = s.lockNonUnitTx(tx, id); err != nil {
			return err
		}
		if v.CostPrice.Equal(req.CostPrice) && v.SellingPrice.Equal(req.SellingPrice) {
			return nil
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			reason = "manual"
		}
		h := &model.PriceHistory{
			VariantID:     v.ID,
			CostBefore:    v.CostPrice,
			CostAfter:     req.CostPrice,
			SellingBefore: v.SellingPrice,
			SellingAfter:  req.SellingPrice,
			Reason:        reason,
			CreatedAt:     s.now(),
		}
		if err := s.agg.variants.UpdatePricesTx(tx, v.ID, req.CostPrice, req.SellingPrice); err != nil {
			return err
		}
		if err := s.prices.CreateTx(tx, h); err != nil {
			return err
		}
		v.CostPrice, v.SellingPrice = req.CostPrice, req.SellingPrice
		return nil
	})
	if err != nil {
		return nil, storeErr("update variant prices", err)
	}
	resp := variantToResponse(v)
	return &resp, nil
}

func (s *variantService) ListPriceHistory(ctx context.Context, id uuid.UUID, limit int) ([]dto.PriceChangeResponse, error) {
	if _, err := s.findNonUnit(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.prices.ListByVariant(ctx, id, limit)
	if err != nil {
		return nil, storeErr("list price history", err)
	}
	out := make([]dto.PriceChangeResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, dto.PriceChangeResponse{
			CostBefore:    h.CostBefore,
			CostAfter:     h.CostAfter,
			SellingBefore: h.SellingBefore,
			SellingAfter:  h.SellingAfter,
			Reason:        h.Reason,
			CreatedAt:     h.CreatedAt.UTC().Format(timeLayout),
		})
	}
	return out, nil
}

// ConvertToParent turns an empty standard variant into a parent so it can
// start tracking serialized units. A standard variant still holding stock is
// refused: those items have no serials to become units.
func (s *variantService) ConvertToParent(ctx context.Context, id uuid.UUID) (*dto.VariantResponse, error) {
	var v *model.Variant
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		var err error
		if v, err = s.lockNonUnitTx(tx, id); err != nil {
			return err
		}
		if v.IsParent() {
			return nil
		}
		if v.Quantity != 0 {
			return fmt.Errorf("%w: standard variant %s holds %d items", ErrVariantHasStock, id, v.Quantity)
		}
		if err := s.agg.variants.UpdateKindTx(tx, id, model.KindParent); err != nil {
			return err
		}
		v.Kind = model.KindParent
		_, err = s.agg.recomputeTx(tx, v, model.MovementCorrection, "converted to parent", nil)
		return err
	})
	if err != nil {
		return nil, storeErr("convert to parent", err)
	}
	resp := variantToResponse(v)
	return &resp, nil
}

// AdjustStandardStock is the only mutation point for a standard variant's
// quantity. Parents are derived from units and refuse manual adjustment.
func (s *variantService) AdjustStandardStock(ctx context.Context, id uuid.UUID, req dto.AdjustStockRequest) (*dto.VariantResponse, error) {
	if req.Delta == 0 {
		return nil, fmt.Errorf("%w: delta must not be zero", ErrInvalidInput)
	}
	var v *model.Variant
	err := runTx(ctx, s.agg.variants.DB(), func(tx *gorm.DB) error {
		var err error
		if v, err = s.lockNonUnitTx(tx, id); err != nil {
			return err
		}
		if !v.IsStandard() {
			return fmt.Errorf("%w: %s variants are adjusted through their units", ErrInvalidKind, v.Kind)
		}
		after := v.Quantity + req.Delta
		if after < 0 {
			return fmt.Errorf("%w: have %d, adjustment %d", ErrInsufficientStock, v.Quantity, req.Delta)
		}
		if err := s.agg.variants.SetQuantityTx(tx, id, after); err != nil {
			return err
		}
		mov := &model.StockMovement{
			VariantID: id,
			Type:      model.MovementAdjustment,
			Delta:     req.Delta,
			QtyBefore: v.Quantity,
			QtyAfter:  after,
			Reason:    req.Reason,
		}
		if err := s.agg.movements.CreateTx(tx, mov); err != nil {
			return err
		}
		v.Quantity = after
		return nil
	})
	if err != nil {
		return nil, storeErr("adjust stock", err)
	}
	resp := variantToResponse(v)
	return &resp, nil
}

// DeactivateVariant hides a parent or standard variant. An active product
// always keeps at least one active variant, and a parent with available
// units must be emptied first.
func (s *variantService) DeactivateVariant(ctx context.Context, id uuid.UUID) error {
	v, err := s.findNonUnit(ctx, id)
	if err != nil {
		return err
	}
	err = runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		// Product first, then variant: the same order finalize uses.
		product, err := s.products.LockByIDTx(tx, v.ProductID)
		if err != nil {
			return err
		}
		current, err := s.lockNonUnitTx(tx, id)
		if err != nil {
			return err
		}
		if !current.Active {
			return nil
		}
		if current.IsParent() {
			n, err := s.agg.variants.CountAvailableUnitsTx(tx, id)
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: parent %s has %d available units", ErrVariantHasStock, id, n)
			}
		}
		if product.Status == model.ProductActive {
			active, err := s.agg.variants.CountActiveByProductTx(tx, product.ID)
			if err != nil {
				return err
			}
			if active <= 1 {
				return fmt.Errorf("%w: %s", ErrLastVariant, product.ID)
			}
		}
		return s.agg.variants.DeactivateTx(tx, id)
	})
	return storeErr("deactivate variant", err)
}

func (s *variantService) ListLowStock(ctx context.Context, scope string) ([]dto.VariantResponse, error) {
	variants, err := s.agg.variants.ListLowStock(ctx, scope)
	if err != nil {
		return nil, storeErr("list low stock", err)
	}
	out := make([]dto.VariantResponse, 0, len(variants))
	for i := range variants {
		out = append(out, variantToResponse(&variants[i]))
	}
	return out, nil
}

func (s *variantService) findNonUnit(ctx context.Context, id uuid.UUID) (*model.Variant, error) {
	v, err := s.agg.variants.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, id)
		}
		return nil, storeErr("find variant", err)
	}
	if v.IsUnit() {
		return nil, fmt.Errorf("%w: %s is a unit", ErrVariantNotFound, id)
	}
	return v, nil
}

func (s *variantService) lockNonUnitTx(tx *gorm.DB, id uuid.UUID) (*model.Variant, error) {
	v, err := s.agg.variants.LockByIDTx(tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrVariantNotFound, id)
		}
		return nil, err
	}
	if v.IsUnit() {
		return nil, fmt.Errorf("%w: %s is a unit", ErrVariantNotFound, id)
	}
	return v, nil
}

// newVariant builds a standard or parent row for product. A parent always
// starts at zero; its quantity only ever comes from recompute.
func newVariant(product *model.Product, in dto.VariantInput, at time.Time) *model.Variant {
	qty := in.Quantity
	if in.Kind == model.KindParent {
		qty = 0
	}
	scope := in.Scope
	if scope == "" {
		scope = product.Scope
	}
	return &model.Variant{
		ID:           uuid.New(),
		ProductID:    product.ID,
		Kind:         in.Kind,
		Name:         strings.TrimSpace(in.Name),
		SKU:          strings.TrimSpace(in.SKU),
		CostPrice:    in.CostPrice,
		SellingPrice: in.SellingPrice,
		Quantity:     qty,
		MinThreshold: in.MinThreshold,
		Active:       true,
		Scope:        scope,
		CreatedAt:    at,
	}
}

// checkVariantKinds accepts only standard and parent inputs. Units enter
// through the unit ledger, which gives them a parent.
func checkVariantKinds(inputs []dto.VariantInput) error {
	for i, in := range inputs {
		if in.Kind != model.KindStandard && in.Kind != model.KindParent {
			return fmt.Errorf("%w: variant %d has kind %q, want standard or parent", ErrInvalidKind, i, in.Kind)
		}
	}
	return nil
}
