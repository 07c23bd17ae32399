package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"stakemarket/internal/repository"
)

type BalanceHandler struct {
	Repo repository.Repository
}

func (h *BalanceHandler) Register(r *gin.RouterGroup) {
	r.GET("/users/:id/balance", h.balance)
	r.GET("/users/:id/transactions", h.transactions)
}

// @Summary Get a user's token balance
// @Tags balances
// @Produce json
// @Router /api/users/{id}/balance [get]
func (h *BalanceHandler) balance(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		Error(c, http.StatusBadRequest, "user id required", nil)
		return
	}
	balance, err := h.Repo.GetBalance(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if balance == nil {
		Error(c, http.StatusNotFound, "balance not found", nil)
		return
	}
	Ok(c, balance, nil)
}

// @Summary List a user's balance ledger entries
// @Tags balances
// @Produce json
// @Router /api/users/{id}/transactions [get]
func (h *BalanceHandler) transactions(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	userID := strings.TrimSpace(c.Param("id"))
	if userID == "" {
		Error(c, http.StatusBadRequest, "user id required", nil)
		return
	}
	params := repository.ListBalanceTransactionsParams{
		Limit:   parseIntQuery(c, "limit", 50),
		Offset:  parseIntQuery(c, "offset", 0),
		UserID:  &userID,
		OrderBy: strings.TrimSpace(c.Query("order_by")),
		Asc:     boolPtr(strings.EqualFold(c.Query("order"), "asc")),
	}
	if txType := strings.TrimSpace(c.Query("type")); txType != "" {
		params.Type = &txType
	}
	if sinceRaw := strings.TrimSpace(c.Query("since")); sinceRaw != "" {
		if ts, err := time.Parse(time.RFC3339, sinceRaw); err == nil {
			since := ts.UTC()
			params.Since = &since
		}
	}

	items, err := h.Repo.ListBalanceTransactions(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, map[string]any{
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}
