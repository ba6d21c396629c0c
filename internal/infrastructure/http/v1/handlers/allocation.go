package handlers

import (
	"github.com/gin-gonic/gin"

	"larder/internal/core/apperror"
	"larder/internal/core/id"
	"larder/internal/domain/allocation"
	"larder/internal/infrastructure/http/v1/dto"
)

// AllocationHandler handles the deduction endpoints.
type AllocationHandler struct {
	*BaseHandler
	service *allocation.Service
}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler(base *BaseHandler, service *allocation.Service) *AllocationHandler {
	return &AllocationHandler{BaseHandler: base, service: service}
}

// Deduct handles POST /ledger/deductions.
// With ?dryRun=true the plan is computed but the ledger is left untouched,
// which lets the delivery workflow preview availability before confirmation.
func (h *AllocationHandler) Deduct(c *gin.Context) {
	var req dto.DeductionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	itemID, err := id.Parse(req.ItemID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id"))
		return
	}

	domReq := allocation.DeductionRequest{
		ItemID:   itemID,
		Quantity: req.Quantity,
		Reason:   req.Reason,
		DryRun:   c.Query("dryRun") == "true",
	}
	if req.PreferredLotID != nil {
		preferred, err := id.Parse(*req.PreferredLotID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid preferred lot id"))
			return
		}
		domReq.PreferredLotID = &preferred
	}

	result, err := h.service.ApplyDeduction(c.Request.Context(), domReq)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromDeductionResult(result))
}

// RegisterRoutes registers allocation routes.
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Deduct)
}
