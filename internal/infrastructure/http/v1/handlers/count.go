package handlers

import (
	"github.com/gin-gonic/gin"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/domain/stockcount"
	"larder/internal/infrastructure/http/v1/dto"
)

// CountHandler handles the stock count endpoints.
type CountHandler struct {
	*BaseHandler
	service *stockcount.Service
}

// NewCountHandler creates a new count handler.
func NewCountHandler(base *BaseHandler, service *stockcount.Service) *CountHandler {
	return &CountHandler{BaseHandler: base, service: service}
}

// Create handles POST /counts.
func (h *CountHandler) Create(c *gin.Context) {
	var req dto.CreateCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	count, err := h.service.CreateCount(c.Request.Context(), req.Name, req.Filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromCount(count))
}

// Get handles GET /counts/:id.
func (h *CountHandler) Get(c *gin.Context) {
	countID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid count id"))
		return
	}

	count, err := h.service.GetCount(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCount(count))
}

// List handles GET /counts.
func (h *CountHandler) List(c *gin.Context) {
	filter := stockcount.CountFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	counts, err := h.service.ListCounts(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.CountResponse, 0, len(counts))
	for i := range counts {
		items = append(items, dto.FromCount(&counts[i]))
	}

	h.OK(c, dto.CountListResponse{Items: items})
}

// AddLine handles POST /counts/:id/lines.
func (h *CountHandler) AddLine(c *gin.Context) {
	countID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid count id"))
		return
	}

	var req dto.AddLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	itemID, err := id.Parse(req.ItemID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	var lotID *id.ID
	if req.LotID != nil {
		parsed, err := id.Parse(*req.LotID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid lot id"))
			return
		}
		lotID = &parsed
	}

	line, err := h.service.AddLine(c.Request.Context(), countID, itemID, lotID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromCountLine(line))
}

// PrepareLines handles POST /counts/:id/prepare.
func (h *CountHandler) PrepareLines(c *gin.Context) {
	countID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid count id"))
		return
	}

	lines, err := h.service.PrepareLines(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.CountLineResponse, 0, len(lines))
	for i := range lines {
		items = append(items, dto.FromCountLine(&lines[i]))
	}

	h.OK(c, dto.CountLineListResponse{Items: items})
}

// ListLines handles GET /counts/:id/lines.
func (h *CountHandler) ListLines(c *gin.Context) {
	countID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid count id"))
		return
	}

	lines, err := h.service.ListLines(c.Request.Context(), countID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.CountLineResponse, 0, len(lines))
	for i := range lines {
		items = append(items, dto.FromCountLine(&lines[i]))
	}

	h.OK(c, dto.CountLineListResponse{Items: items})
}

// SetCountedQty handles PUT /counts/:id/lines/:lineId.
func (h *CountHandler) SetCountedQty(c *gin.Context) {
	lineID, err := id.Parse(c.Param("lineId"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid line id"))
		return
	}

	var req dto.SetCountedQtyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	line, err := h.service.SetCountedQty(c.Request.Context(), lineID, req.CountedQty, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCountLine(line))
}

// Close handles POST /counts/:id/close.
func (h *CountHandler) Close(c *gin.Context) {
	countID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid count id"))
		return
	}

	// Body is optional: closing defaults to a pure audit snapshot.
	var req dto.CloseCountRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	count, err := h.service.CloseCount(c.Request.Context(), countID, req.ApplyAdjustments)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromCount(count))
}

// RegisterRoutes registers stock count routes.
func (h *CountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/lines", h.AddLine)
	rg.POST("/:id/prepare", h.PrepareLines)
	rg.GET("/:id/lines", h.ListLines)
	rg.PUT("/:id/lines/:lineId", h.SetCountedQty)
	rg.POST("/:id/close", h.Close)
}
