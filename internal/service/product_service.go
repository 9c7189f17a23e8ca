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

// DefaultVariantName is the name given to the variant the reconciler creates
// for a product that would otherwise have none.
const DefaultVariantName = "Default"

// ProductService creates products and keeps every active product sellable,
// i.e. holding at least one active variant.
type ProductService interface {
	CreateProduct(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error)
	AddVariants(ctx context.Context, productID uuid.UUID, req dto.AddVariantsRequest) ([]dto.VariantResponse, error)
	// FinalizeProductVariants is called once a caller's own variant batch is
	// done. It is idempotent and safe to call concurrently.
	FinalizeProductVariants(ctx context.Context, productID uuid.UUID) (*dto.FinalizeResponse, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
}

type productService struct {
	products repository.ProductRepository
	variants repository.VariantRepository
	now      func() time.Time
}

func NewProductService(products repository.ProductRepository, variants repository.VariantRepository) ProductService {
	return &productService{products: products, variants: variants, now: utcNow}
}

// ── CreateProduct ────────────────────────────────────────────────────────────
// Product and initial variants in one transaction:
//   - variants supplied        → product active with those variants
//   - NoVariants flag          → product active with one default variant
//   - neither                  → product draft, awaiting AddVariants + finalize

func (s *productService) CreateProduct(ctx context.Context, req dto.CreateProductRequest) (*dto.ProductResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.NoVariants && len(req.Variants) > 0 {
		return nil, fmt.Errorf("%w: no_variants conflicts with the supplied variants", ErrInvalidInput)
	}
	if err := checkVariantKinds(req.Variants); err != nil {
		return nil, err
	}

	now := s.now()
	product := &model.Product{
		ID:        uuid.New(),
		Name:      name,
		SKU:       strings.TrimSpace(req.SKU),
		Category:  req.Category,
		Scope:     req.Scope,
		Status:    model.ProductActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !req.NoVariants && len(req.Variants) == 0 {
		product.Status = model.ProductDraft
	}

	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		if err := s.products.CreateTx(tx, product); err != nil {
			return err
		}
		inputs := req.Variants
		if req.NoVariants {
			inputs = []dto.VariantInput{defaultVariantInput(product, req)}
		}
		for i, in := range inputs {
			// Creation order is the tie-break for "oldest variant".
			v := newVariant(product, in, now.Add(time.Duration(i)*time.Microsecond))
			if err := s.variants.CreateTx(tx, v); err != nil {
				return err
			}
			product.Variants = append(product.Variants, *v)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("create product", err)
	}

	log.Info().
		Str("product_id", product.ID.String()).
		Str("status", product.Status).
		Int("variants", len(product.Variants)).
		Msg("product created")
	return productToResponse(product), nil
}

// AddVariants is the legacy path: variants submitted in a separate request
// after the product. All of them land or none do.
func (s *productService) AddVariants(ctx context.Context, productID uuid.UUID, req dto.AddVariantsRequest) ([]dto.VariantResponse, error) {
	if len(req.Variants) == 0 {
		return nil, fmt.Errorf("%w: at least one variant is required", ErrInvalidInput)
	}
	if err := checkVariantKinds(req.Variants); err != nil {
		return nil, err
	}
	out := make([]dto.VariantResponse, 0, len(req.Variants))
	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		product, err := s.lockProductTx(tx, productID)
		if err != nil {
			return err
		}
		now := s.now()
		for i, in := range req.Variants {
			v := newVariant(product, in, now.Add(time.Duration(i)*time.Microsecond))
			if err := s.variants.CreateTx(tx, v); err != nil {
				return err
			}
			out = append(out, variantToResponse(v))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("add variants", err)
	}
	return out, nil
}

// ── FinalizeProductVariants ──────────────────────────────────────────────────
// The product row lock makes check-then-create atomic: of two concurrent
// calls on a variant-less product, the second one sees the first one's
// default variant and creates nothing.

func (s *productService) FinalizeProductVariants(ctx context.Context, productID uuid.UUID) (*dto.FinalizeResponse, error) {
	var variantID uuid.UUID
	err := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		product, err := s.lockProductTx(tx, productID)
		if err != nil {
			return err
		}
		if product.Status == model.ProductInactive {
			return fmt.Errorf("%w: product %s is inactive", ErrInvalidTransition, productID)
		}

		n, err := s.variants.CountActiveByProductTx(tx, productID)
		if err != nil {
			return err
		}
		if n == 0 {
			v := newVariant(product, defaultVariantInput(product, dto.CreateProductRequest{}), s.now())
			if err := s.variants.CreateTx(tx, v); err != nil {
				return err
			}
			log.Info().
				Str("product_id", productID.String()).
				Str("variant_id", v.ID.String()).
				Msg("default variant created")
		}

		if product.Status == model.ProductDraft {
			if err := s.products.UpdateStatusTx(tx, productID, model.ProductActive); err != nil {
				return err
			}
		}

		oldest, err := s.variants.OldestActiveByProductTx(tx, productID)
		if err != nil {
			return err
		}
		variantID = oldest.ID
		return nil
	})
	if err != nil {
		return nil, storeErr("finalize product variants", err)
	}
	return &dto.FinalizeResponse{ProductID: productID.String(), VariantID: variantID.String()}, nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, storeErr("get product", err)
	}
	return productToResponse(p), nil
}

func (s *productService) lockProductTx(tx *gorm.DB, id uuid.UUID) (*model.Product, error) {
	p, err := s.products.LockByIDTx(tx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// defaultVariantInput takes its prices from the create request when there is
// one; finalize has none and starts the default variant at zero.
func defaultVariantInput(p *model.Product, req dto.CreateProductRequest) dto.VariantInput {
	return dto.VariantInput{
		Kind:         model.KindStandard,
		Name:         DefaultVariantName,
		SKU:          p.SKU,
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		Scope:        p.Scope,
	}
}

func productToResponse(p *model.Product) *dto.ProductResponse {
	resp := &dto.ProductResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		SKU:       p.SKU,
		Category:  p.Category,
		Scope:     p.Scope,
		Status:    p.Status,
		Variants:  make([]dto.VariantResponse, 0, len(p.Variants)),
		CreatedAt: p.CreatedAt.UTC().Format(timeLayout),
	}
	for i := range p.Variants {
		resp.Variants = append(resp.Variants, variantToResponse(&p.Variants[i]))
	}
	return resp
}
