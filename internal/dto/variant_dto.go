package dto

import "github.com/shopspring/decimal"

// VariantInput describes a standard or parent variant to create.
// Quantity is only honoured for standard variants; a parent always starts at
// zero because its stock is derived from units.
type VariantInput struct {
	Kind         string          `json:"kind"          validate:"required,oneof=standard parent"`
	Name         string          `json:"name"          validate:"required,min=1,max=120"`
	SKU          string          `json:"sku"           validate:"max=80"`
	CostPrice    decimal.Decimal `json:"cost_price"    validate:"min=0"`
	SellingPrice decimal.Decimal `json:"selling_price" validate:"min=0"`
	Quantity     int             `json:"quantity"      validate:"min=0"`
	MinThreshold int             `json:"min_threshold" validate:"min=0"`
	Scope        string          `json:"scope"`
}

type CreateParentVariantRequest struct {
	Name         string          `json:"name"          validate:"required,min=1,max=120"`
	SKU          string          `json:"sku"           validate:"max=80"`
	CostPrice    decimal.Decimal `json:"cost_price"    validate:"min=0"`
	SellingPrice decimal.Decimal `json:"selling_price" validate:"min=0"`
	MinThreshold int             `json:"min_threshold" validate:"min=0"`
	Scope        string          `json:"scope"`
}

type UpdatePricesRequest struct {
	CostPrice    decimal.Decimal `json:"cost_price"    validate:"min=0"`
	SellingPrice decimal.Decimal `json:"selling_price" validate:"min=0"`
	Reason       string          `json:"reason"`
}

// AdjustStockRequest mutates the authoritative quantity of a standard variant.
type AdjustStockRequest struct {
	Delta  int    `json:"delta"  validate:"required"`
	Reason string `json:"reason" validate:"required,min=3"`
}

type VariantResponse struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	Kind         string          `json:"kind"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity"`
	MinThreshold int             `json:"min_threshold"`
	Active       bool            `json:"active"`
	Scope        string          `json:"scope"`
	CreatedAt    string          `json:"created_at"`
}

type PriceChangeResponse struct {
	CostBefore    decimal.Decimal `json:"cost_before"`
	CostAfter     decimal.Decimal `json:"cost_after"`
	SellingBefore decimal.Decimal `json:"selling_before"`
	SellingAfter  decimal.Decimal `json:"selling_after"`
	Reason        string          `json:"reason"`
	CreatedAt     string          `json:"created_at"`
}
