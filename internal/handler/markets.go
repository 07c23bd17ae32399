package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stakemarket/internal/auth"
	"stakemarket/internal/models"
	"stakemarket/internal/repository"
	"stakemarket/internal/service"
)

// DetailCache is the optional read-through cache for market detail pages.
// Satisfied by the redis market cache; nil disables caching.
type DetailCache interface {
	Get(ctx context.Context, marketID string, out any) (bool, error)
	Set(ctx context.Context, marketID string, snapshot any) error
}

type MarketHandler struct {
	Markets *service.MarketService
	Repo    repository.Repository
	Cache   DetailCache
}

func (h *MarketHandler) Register(r *gin.RouterGroup) {
	group := r.Group("/markets")
	group.POST("", h.create)
	group.GET("", h.list)
	group.GET("/:id", h.get)
}

type createMarketRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Options            []string `json:"options"`
	EndsAtRFC3339      string   `json:"ends_at"`
	CreatorFeeFraction float64  `json:"creator_fee_fraction"`
}

type marketDetail struct {
	Market     models.Market         `json:"market"`
	Options    []models.MarketOption `json:"options"`
	Resolution *models.Resolution    `json:"resolution,omitempty"`
}

// @Summary Create a prediction market
// @Tags markets
// @Accept json
// @Produce json
// @Router /api/markets [post]
func (h *MarketHandler) create(c *gin.Context) {
	if h.Markets == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	claims, ok := auth.ClaimsFromGin(c)
	if !ok {
		Error(c, http.StatusUnauthorized, "missing identity", nil)
		return
	}
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndsAtRFC3339))
	if err != nil {
		Error(c, http.StatusBadRequest, "ends_at must be RFC3339", nil)
		return
	}

	market, options, err := h.Markets.Create(c.Request.Context(), service.CreateMarketParams{
		Title:              req.Title,
		Description:        req.Description,
		CreatorID:          claims.UserID,
		Options:            req.Options,
		EndsAt:             endsAt,
		CreatorFeeFraction: req.CreatorFeeFraction,
	})
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, marketDetail{Market: *market, Options: options}, nil)
}

// @Summary List markets
// @Tags markets
// @Produce json
// @Router /api/markets [get]
func (h *MarketHandler) list(c *gin.Context) {
	if h.Markets == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	params := repository.ListMarketsParams{
		Limit:   parseIntQuery(c, "limit", 50),
		Offset:  parseIntQuery(c, "offset", 0),
		OrderBy: strings.TrimSpace(c.Query("order_by")),
		Asc:     boolPtr(strings.EqualFold(c.Query("order"), "asc")),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		params.Status = &status
	}
	if creator := strings.TrimSpace(c.Query("creator_id")); creator != "" {
		params.CreatorID = &creator
	}

	items, total, err := h.Markets.List(c.Request.Context(), params)
	if err != nil {
		ServiceError(c, err)
		return
	}
	Ok(c, items, map[string]any{
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

// @Summary Get one market with options and resolution
// @Tags markets
// @Produce json
// @Router /api/markets/{id} [get]
func (h *MarketHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		Error(c, http.StatusBadRequest, "market id required", nil)
		return
	}
	ctx := c.Request.Context()

	if h.Cache != nil {
		var cached marketDetail
		if hit, err := h.Cache.Get(ctx, id, &cached); err == nil && hit {
			Ok(c, cached, map[string]any{"cache": "hit"})
			return
		}
	}

	market, err := h.Repo.GetMarketByID(ctx, id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if market == nil {
		Error(c, http.StatusNotFound, "market not found", nil)
		return
	}
	options, err := h.Repo.ListOptionsByMarketID(ctx, id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	detail := marketDetail{Market: *market, Options: options}
	if market.Status == models.MarketStatusResolved {
		if resolution, err := h.Repo.GetResolutionByMarketID(ctx, id); err == nil {
			detail.Resolution = resolution
		}
	}

	if h.Cache != nil {
		_ = h.Cache.Set(ctx, id, detail)
	}
	Ok(c, detail, nil)
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
