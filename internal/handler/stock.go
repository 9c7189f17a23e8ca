package handler

import (
	"context"
	"net/http"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/apierror"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditRunner runs the bulk recompute and remembers its last report.
type AuditRunner interface {
	Run(ctx context.Context) (*dto.AuditReport, error)
	LastReport(ctx context.Context) (*dto.AuditReport, error)
}

// AuditQueue schedules a bulk recompute on the worker pool.
type AuditQueue interface {
	EnqueueAudit(ctx context.Context, requestedBy string) (string, error)
}

type StockHandler struct {
	stock    service.StockService
	variants service.VariantService
	audits   AuditRunner
	queue    AuditQueue
}

func NewStockHandler(stock service.StockService, variants service.VariantService, audits AuditRunner, queue AuditQueue) *StockHandler {
	return &StockHandler{stock: stock, variants: variants, audits: audits, queue: queue}
}

func (h *StockHandler) Audit(c *gin.Context) {
	report, err := h.audits.Run(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *StockHandler) AuditAsync(c *gin.Context) {
	jobID, err := h.queue.EnqueueAudit(c.Request.Context(), actor(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, apierror.New("queue_unavailable", "could not enqueue audit"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func (h *StockHandler) LastAudit(c *gin.Context) {
	report, err := h.audits.LastReport(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, apierror.New("queue_unavailable", "could not read last audit"))
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, apierror.New("no_audit", "no audit has run yet"))
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *StockHandler) LowStock(c *gin.Context) {
	resp, err := h.variants.ListLowStock(c.Request.Context(), c.Query("scope"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Movements(c *gin.Context) {
	filter := repository.StockMovementFilter{
		Type:  c.Query("type"),
		Page:  intQuery(c, "page", 1),
		Limit: intQuery(c, "limit", 100),
	}
	if v := c.Query("variant_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("invalid_id", "invalid variant_id"))
			return
		}
		filter.VariantID = &id
	}
	resp, err := h.stock.ListMovements(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
