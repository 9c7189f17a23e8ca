package service

import (
	"github.com/Mtaasisi/NEON-POS-sub042/internal/model"

	"github.com/shopspring/decimal"
)

// ResolvePrices fills a unit's prices at creation time. A supplied positive
// price is kept; anything else is copied from the parent's current price.
// An unset parent price yields zero, which is left for a higher layer to flag.
//
// This runs once. Later parent price changes never touch existing units.
func ResolvePrices(cost, selling *decimal.Decimal, parent *model.Variant) (decimal.Decimal, decimal.Decimal) {
	return inherit(cost, parent.CostPrice), inherit(selling, parent.SellingPrice)
}

func inherit(supplied *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if supplied != nil && supplied.IsPositive() {
		return *supplied
	}
	if fallback.IsNegative() {
		return decimal.Zero
	}
	return fallback
}
