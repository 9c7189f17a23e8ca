package handler

import (
	"net/http"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"

	"github.com/gin-gonic/gin"
)

type UnitsHandler struct{ units service.UnitService }

func NewUnitsHandler(units service.UnitService) *UnitsHandler {
	return &UnitsHandler{units: units}
}

func (h *UnitsHandler) Sell(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.AllocateUnitRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.units.SellUnit(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UnitsHandler) Return(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReturnUnitRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.units.ReturnUnit(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *UnitsHandler) Remove(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.units.RemoveUnit(c.Request.Context(), id, c.Query("reason")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UnitsHandler) BySerial(c *gin.Context) {
	resp, err := h.units.FindUnitBySerial(c.Request.Context(), c.Param("serial"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UnitsHandler) SerialHistory(c *gin.Context) {
	resp, err := h.units.SerialHistory(c.Request.Context(), c.Param("serial"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *UnitsHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateUnitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.units.UpdateUnit(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Search: GET /v1/units/search?q=3567&scope=branch-1
func (h *UnitsHandler) Search(c *gin.Context) {
	resp, err := h.units.SearchUnits(c.Request.Context(), c.Query("q"), c.Query("scope"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
