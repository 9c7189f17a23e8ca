package handler

import (
	"context"
	"net/http"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/apierror"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RecomputeQueue schedules a single-parent recompute on the worker pool.
type RecomputeQueue interface {
	EnqueueRecompute(ctx context.Context, parentID uuid.UUID) (string, error)
}

// VariantsHandler serves /v1/variants: parent and standard variant
// maintenance plus the unit ledger operations scoped to a parent.
type VariantsHandler struct {
	variants service.VariantService
	units    service.UnitService
	stock    service.StockService
	queue    RecomputeQueue
}

func NewVariantsHandler(variants service.VariantService, units service.UnitService, stock service.StockService, queue RecomputeQueue) *VariantsHandler {
	return &VariantsHandler{variants: variants, units: units, stock: stock, queue: queue}
}

func (h *VariantsHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.variants.GetVariant(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) UpdatePrices(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePricesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.variants.UpdateVariantPrices(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Info().Str("variant_id", id.String()).Str("by", actor(c)).Msg("variant prices updated")
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) PriceHistory(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.variants.ListPriceHistory(c.Request.Context(), id, intQuery(c, "limit", 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) AdjustStock(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AdjustStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.variants.AdjustStandardStock(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) ConvertToParent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.variants.ConvertToParent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) Deactivate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.variants.DeactivateVariant(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *VariantsHandler) ReceiveUnit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveUnitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.units.ReceiveUnit(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ReceiveUnits answers 207 when some serials were rejected; the body has
// the outcome of each one.
func (h *VariantsHandler) ReceiveUnits(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveUnitsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.units.ReceiveUnits(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, resp)
}

func (h *VariantsHandler) Allocate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AllocateUnitRequest
	// The body is optional: an empty POST allocates without a sale reference.
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.units.AllocateUnit(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) AvailableUnits(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.units.GetAvailableUnits(c.Request.Context(), id, c.Query("cursor"), intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) ListUnits(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	resp, err := h.units.ListUnits(c.Request.Context(), id, c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *VariantsHandler) Recompute(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	// ?async=true hands the recompute to the worker pool, e.g. from a
	// data-repair script touching many parents.
	if c.Query("async") == "true" {
		jobID, err := h.queue.EnqueueRecompute(c.Request.Context(), id)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, apierror.New("queue_unavailable", "could not enqueue recompute"))
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
		return
	}
	qty, err := h.stock.RecomputeParentStock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StockResponse{VariantID: id.String(), Quantity: qty})
}
