package dto

import "github.com/shopspring/decimal"

// ReceiveUnitRequest registers one serialized physical item under a parent.
// Prices are optional; unset or non-positive prices are inherited from the
// parent at creation time. ReceiptKey makes a retried submission idempotent.
type ReceiveUnitRequest struct {
	Serial          string           `json:"serial"           validate:"required,min=1,max=64"`
	SecondarySerial *string          `json:"secondary_serial" validate:"omitempty,max=64"`
	Condition       string           `json:"condition"        validate:"omitempty,max=30"`
	CostPrice       *decimal.Decimal `json:"cost_price"`
	SellingPrice    *decimal.Decimal `json:"selling_price"`
	ReceiptKey      *string          `json:"receipt_key"      validate:"omitempty,max=120"`
}

type ReceiveUnitsRequest struct {
	Units []ReceiveUnitRequest `json:"units" validate:"required,min=1,max=500,dive"`
}

type AllocateUnitRequest struct {
	SaleRef *string `json:"sale_ref" validate:"omitempty,max=120"`
}

type ReturnUnitRequest struct {
	Condition string `json:"condition" validate:"omitempty,max=30"`
	Reason    string `json:"reason"`
}

// UpdateUnitRequest edits what may change about a unit after receipt.
// Omitted fields keep their value; state and serial are not editable.
type UpdateUnitRequest struct {
	Condition       *string          `json:"condition"        validate:"omitempty,max=30"`
	SecondarySerial *string          `json:"secondary_serial" validate:"omitempty,max=64"`
	CostPrice       *decimal.Decimal `json:"cost_price"`
	SellingPrice    *decimal.Decimal `json:"selling_price"`
}

type UnitResponse struct {
	ID              string          `json:"id"`
	ParentID        string          `json:"parent_id"`
	ProductID       string          `json:"product_id"`
	Serial          string          `json:"serial"`
	SecondarySerial *string         `json:"secondary_serial"`
	Condition       string          `json:"condition"`
	State           string          `json:"state"`
	Active          bool            `json:"active"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	SaleRef         *string         `json:"sale_ref,omitempty"`
	SoldAt          *string         `json:"sold_at,omitempty"`
	ReturnedFromID  *string         `json:"returned_from_id,omitempty"`
	ReceivedAt      string          `json:"received_at"`
}

// UnitPage is one page of the oldest-first available-unit listing.
// NextCursor is empty on the last page; passing it back resumes the listing.
type UnitPage struct {
	Data       []UnitResponse `json:"data"`
	NextCursor string         `json:"next_cursor"`
}

// ReceiveResult is the per-serial outcome of a bulk receive.
type ReceiveResult struct {
	Serial string `json:"serial"`
	UnitID string `json:"unit_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ReceiveUnitsResponse struct {
	Created int             `json:"created"`
	Failed  int             `json:"failed"`
	Results []ReceiveResult `json:"results"`
}
