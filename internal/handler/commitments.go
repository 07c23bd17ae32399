package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"stakemarket/internal/auth"
	"stakemarket/internal/repository"
	"stakemarket/internal/service"
)

type CommitmentHandler struct {
	Commitments *service.CommitmentService
	Repo        repository.Repository
}

func (h *CommitmentHandler) Register(r *gin.RouterGroup) {
	r.POST("/markets/:id/commitments", h.place)
	r.GET("/markets/:id/commitments", h.listForMarket)
	r.GET("/users/:id/commitments", h.listForUser)
}

type placeCommitmentRequest struct {
	OptionID string `json:"option_id"`
	Tokens   int64  `json:"tokens"`
}

// @Summary Stake tokens on a market option
// @Tags commitments
// @Accept json
// @Produce json
// @Router /api/markets/{id}/commitments [post]
func (h *CommitmentHandler) place(c *gin.Context) {
	if h.Commitments == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	claims, ok := auth.ClaimsFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req placeCommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}

	commitment, err := h.Commitments.Place(c.Request.Context(), service.PlaceParams{
		MarketID: strings.TrimSpace(c.Param("id")),
		OptionID: strings.TrimSpace(req.OptionID),
		UserID:   claims.UserID,
		Tokens:   req.Tokens,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, commitment, nil)
}

// @Summary List commitments on a market
// @Tags commitments
// @Produce json
// @Router /api/markets/{id}/commitments [get]
func (h *CommitmentHandler) listForMarket(c *gin.Context) {
	marketID := strings.TrimSpace(c.Param("id"))
	h.list(c, repository.ListCommitmentsParams{MarketID: &marketID})
}

// @Summary List a user's commitments
// @Tags commitments
// @Produce json
// @Router /api/users/{id}/commitments [get]
func (h *CommitmentHandler) listForUser(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("id"))
	h.list(c, repository.ListCommitmentsParams{UserID: &userID})
}

func (h *CommitmentHandler) list(c *gin.Context, params repository.ListCommitmentsParams) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params.Limit = parseIntQuery(c, "limit", 50)
	params.Offset = parseIntQuery(c, "offset", 0)
	params.OrderBy = strings.TrimSpace(c.Query("order_by"))
	params.Asc = boolPtr(strings.EqualFold(c.Query("order"), "asc"))
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		params.Status = &status
	}

	items, err := h.Repo.ListCommitments(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}
