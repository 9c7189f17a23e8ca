package dto

// StockResponse is the result of a single-parent recompute.
type StockResponse struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// Correction describes one parent whose stored quantity had drifted from its
// units before the audit repaired it.
type Correction struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stored    int    `json:"stored"`
	Actual    int    `json:"actual"`
}

// AuditReport is the correction report of a bulk recompute.
type AuditReport struct {
	Checked     int          `json:"checked"`
	Corrected   int          `json:"corrected"`
	Corrections []Correction `json:"corrections"`
	StartedAt   string       `json:"started_at"`
	FinishedAt  string       `json:"finished_at"`
}

type StockMovementResponse struct {
	ID        string  `json:"id"`
	VariantID string  `json:"variant_id"`
	Type      string  `json:"type"`
	Delta     int     `json:"delta"`
	QtyBefore int     `json:"qty_before"`
	QtyAfter  int     `json:"qty_after"`
	Reason    string  `json:"reason"`
	Reference *string `json:"reference_id"`
	CreatedAt string  `json:"created_at"`
}

type StockMovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}
