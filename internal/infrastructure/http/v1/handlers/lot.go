package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/domain/ledger"
	"larder/internal/infrastructure/http/v1/dto"
	"larder/internal/infrastructure/storage/postgres"
)

// EntityHistorySource reads the change history of a single entity.
type EntityHistorySource interface {
	GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// LotHandler handles the lot ledger endpoints.
type LotHandler struct {
	*BaseHandler
	service *ledger.Service
	history EntityHistorySource
}

// NewLotHandler creates a new lot handler.
func NewLotHandler(base *BaseHandler, service *ledger.Service, history EntityHistorySource) *LotHandler {
	return &LotHandler{BaseHandler: base, service: service, history: history}
}

// Create handles POST /ledger/lots (donation intake or manual stock entry).
func (h *LotHandler) Create(c *gin.Context) {
	var req dto.CreateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	itemID, err := id.Parse(req.ItemID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	remaining := req.Quantity
	if req.RemainingQty != nil {
		remaining = *req.RemainingQty
	}

	lot := ledger.NewStockLot(itemID, ledger.ParseLotCode(req.LotCode), req.Quantity, remaining, req.EntryDate)
	lot.ExpiryDate = req.ExpiryDate
	lot.LocationCode = req.LocationCode
	if req.DonorID != nil {
		donor, err := id.Parse(*req.DonorID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid donor id"))
			return
		}
		lot.DonorID = &donor
	}

	if err := h.service.CreateLot(c.Request.Context(), lot); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromLot(lot))
}

// Get handles GET /ledger/lots/:id.
func (h *LotHandler) Get(c *gin.Context) {
	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id"))
		return
	}

	lot, err := h.service.GetByID(c.Request.Context(), lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLot(lot))
}

// List handles GET /ledger/lots.
func (h *LotHandler) List(c *gin.Context) {
	filter := ledger.LotFilter{
		WithStockOnly: c.Query("withStock") == "true",
		Limit:         h.ParseIntQuery(c, "limit", 100),
		Offset:        h.ParseIntQuery(c, "offset", 0),
	}

	if itemStr := c.Query("itemId"); itemStr != "" {
		itemID, err := id.Parse(itemStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid item id"))
			return
		}
		filter.ItemID = &itemID
	}

	lots, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.LotResponse, 0, len(lots))
	for i := range lots {
		items = append(items, dto.FromLot(&lots[i]))
	}

	h.OK(c, dto.LotListResponse{Items: items})
}

// Update handles PATCH /ledger/lots/:id.
func (h *LotHandler) Update(c *gin.Context) {
	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id"))
		return
	}

	var req dto.UpdateLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid donor id"))
		return
	}

	lot, err := h.service.UpdateLot(c.Request.Context(), lotID, patch)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromLot(lot))
}

// Adjust handles POST /ledger/lots/:id/adjust.
func (h *LotHandler) Adjust(c *gin.Context) {
	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id"))
		return
	}

	var req dto.AdjustLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.service.AdjustRemaining(c.Request.Context(), lotID, req.RemainingQty, req.Reason)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAdjustResult(result))
}

// Delete handles DELETE /ledger/lots/:id.
func (h *LotHandler) Delete(c *gin.Context) {
	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id"))
		return
	}

	if err := h.service.DeleteLot(c.Request.Context(), lotID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// History handles GET /ledger/lots/:id/history.
func (h *LotHandler) History(c *gin.Context) {
	lotID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid lot id"))
		return
	}

	entries, err := h.history.GetEntityHistory(c.Request.Context(), "StockLot", lotID, h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAuditEntries(entries))
}

// RegisterRoutes registers lot ledger routes.
func (h *LotHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/adjust", h.Adjust)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/history", h.History)
}
