package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stakemarket/internal/auth"
	"stakemarket/internal/models"
	"stakemarket/internal/service"
)

// SettlementHandler exposes the admin resolve/cancel operations.
type SettlementHandler struct {
	Resolutions *service.ResolutionService
}

func (h *SettlementHandler) Register(r *gin.RouterGroup) {
	r.POST("/markets/:id/resolve", h.resolve)
	r.POST("/markets/:id/cancel", h.cancel)
}

type resolveRequest struct {
	WinningOptionID    string                `json:"winning_option_id"`
	Evidence           []models.EvidenceItem `json:"evidence"`
	CreatorFeeFraction *float64              `json:"creator_fee_fraction"`
}

type cancelRequest struct {
	Reason       string `json:"reason"`
	RefundTokens bool   `json:"refund_tokens"`
}

// @Summary Resolve a market with a winning option
// @Tags admin
// @Accept json
// @Produce json
// @Router /api/admin/markets/{id}/resolve [post]
func (h *SettlementHandler) resolve(c *gin.Context) {
	if h.Resolutions == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	claims, ok := auth.ClaimsFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}

	resolution, err := h.Resolutions.Resolve(c.Request.Context(), service.ResolveParams{
		MarketID:           strings.TrimSpace(c.Param("id")),
		WinningOptionID:    strings.TrimSpace(req.WinningOptionID),
		Evidence:           req.Evidence,
		AdminID:            claims.UserID,
		CreatorFeeFraction: req.CreatorFeeFraction,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, resolution, nil)
}

// @Summary Cancel a market, optionally refunding stakes
// @Tags admin
// @Accept json
// @Produce json
// @Router /api/admin/markets/{id}/cancel [post]
func (h *SettlementHandler) cancel(c *gin.Context) {
	if h.Resolutions == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	claims, ok := auth.ClaimsFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}

	summary, err := h.Resolutions.Cancel(c.Request.Context(), service.CancelParams{
		MarketID:     strings.TrimSpace(c.Param("id")),
		Reason:       strings.TrimSpace(req.Reason),
		RefundTokens: req.RefundTokens,
		AdminID:      claims.UserID,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, summary, nil)
}
