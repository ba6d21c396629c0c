package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/domain/catalog/item"
	"larder/internal/infrastructure/http/v1/dto"
	"larder/internal/infrastructure/storage/postgres"
)

// ItemHistorySource reads the lot change history of an item.
type ItemHistorySource interface {
	GetItemHistory(ctx context.Context, itemID id.ID, limit int) ([]postgres.AuditEntry, error)
}

// ItemHandler handles the item catalog endpoints.
type ItemHandler struct {
	*BaseHandler
	service *item.Service
	history ItemHistorySource
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *item.Service, history ItemHistorySource) *ItemHandler {
	return &ItemHandler{BaseHandler: base, service: service, history: history}
}

// Create handles POST /catalog/items.
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	it := item.NewItem(req.Code, req.Name, req.Unit)
	it.MinStock = req.MinStock

	if err := h.service.Create(c.Request.Context(), it); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromItem(it))
}

// Get handles GET /catalog/items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	it, err := h.service.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromItem(it))
}

// Update handles PUT /catalog/items/:id.
func (h *ItemHandler) Update(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	it, err := h.service.GetByID(ctx, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if req.Code != nil {
		it.Code = *req.Code
	}
	if req.Name != nil {
		it.Name = *req.Name
	}
	if req.Unit != nil {
		it.Unit = *req.Unit
	}
	if req.MinStock != nil {
		it.MinStock = *req.MinStock
	}

	if err := h.service.Update(ctx, it); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromItem(it))
}

// Delete handles DELETE /catalog/items/:id.
func (h *ItemHandler) Delete(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	if err := h.service.Delete(c.Request.Context(), itemID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// List handles GET /catalog/items.
func (h *ItemHandler) List(c *gin.Context) {
	filter := item.ListFilter{
		Search:       c.Query("search"),
		LowStockOnly: c.Query("lowStock") == "true",
		OrderBy:      c.Query("orderBy"),
		Limit:        h.ParseIntQuery(c, "limit", 50),
		Offset:       h.ParseIntQuery(c, "offset", 0),
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.ItemResponse, 0, len(result.Items))
	for _, it := range result.Items {
		items = append(items, dto.FromItem(it))
	}

	h.OK(c, dto.ItemListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// History handles GET /catalog/items/:id/history. It returns the lot change
// audit for the item, including entries for lots that were since deleted.
func (h *ItemHandler) History(c *gin.Context) {
	itemID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.service.GetByID(ctx, itemID); err != nil {
		h.Error(c, err)
		return
	}

	entries, err := h.history.GetItemHistory(ctx, itemID, h.ParseIntQuery(c, "limit", 100))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromAuditEntries(entries))
}

// RegisterRoutes registers item catalog routes.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/history", h.History)
}
