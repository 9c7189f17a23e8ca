package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

// CreateProductRequest submits a product together with its known initial
// variants as one unit of work.
//
// NoVariants is the explicit "create with zero intended variants" signal: the
// core then creates a default standard variant in the same transaction.
// Leaving Variants empty without the flag creates a draft product that the
// caller must finalize once its own variant batch is done.
type CreateProductRequest struct {
	Name         string          `json:"name"          validate:"required,min=1,max=200"`
	SKU          string          `json:"sku"           validate:"max=80"`
	Category     string          `json:"category"`
	Scope        string          `json:"scope"`
	CostPrice    decimal.Decimal `json:"cost_price"    validate:"min=0"`
	SellingPrice decimal.Decimal `json:"selling_price" validate:"min=0"`
	NoVariants   bool            `json:"no_variants"`
	Variants     []VariantInput  `json:"variants"      validate:"dive"`
}

// AddVariantsRequest is the legacy separate variant batch.
type AddVariantsRequest struct {
	Variants []VariantInput `json:"variants" validate:"required,min=1,dive"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ProductResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	SKU       string            `json:"sku"`
	Category  string            `json:"category"`
	Scope     string            `json:"scope"`
	Status    string            `json:"status"`
	Variants  []VariantResponse `json:"variants"`
	CreatedAt string            `json:"created_at"`
}

type FinalizeResponse struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}
