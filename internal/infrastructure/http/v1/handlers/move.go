package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/domain/journal"
	"larder/internal/infrastructure/http/v1/dto"
)

// MoveHandler handles the move journal endpoints (read-only: moves are
// written only as side effects of ledger mutations).
type MoveHandler struct {
	*BaseHandler
	service *journal.Service
}

// NewMoveHandler creates a new move handler.
func NewMoveHandler(base *BaseHandler, service *journal.Service) *MoveHandler {
	return &MoveHandler{BaseHandler: base, service: service}
}

// List handles GET /ledger/moves.
func (h *MoveHandler) List(c *gin.Context) {
	filter := journal.MoveFilter{
		Descending: c.Query("order") != "asc",
		Limit:      h.ParseIntQuery(c, "limit", 100),
		Offset:     h.ParseIntQuery(c, "offset", 0),
	}

	if itemStr := c.Query("itemId"); itemStr != "" {
		itemID, err := id.Parse(itemStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid item id"))
			return
		}
		filter.ItemID = &itemID
	}
	if lotStr := c.Query("lotId"); lotStr != "" {
		lotID, err := id.Parse(lotStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid lot id"))
			return
		}
		filter.LotID = &lotID
	}
	if typeStr := c.Query("type"); typeStr != "" {
		moveType := journal.MoveType(typeStr)
		filter.Type = &moveType
	}
	if fromStr := c.Query("fromDate"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid fromDate format, expected RFC3339"))
			return
		}
		filter.FromDate = &parsed
	}
	if toStr := c.Query("toDate"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid toDate format, expected RFC3339"))
			return
		}
		filter.ToDate = &parsed
	}

	moves, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.MoveResponse, 0, len(moves))
	for _, m := range moves {
		items = append(items, dto.FromMove(m))
	}

	h.OK(c, dto.MoveListResponse{Items: items})
}

// RegisterRoutes registers journal routes.
func (h *MoveHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
}
