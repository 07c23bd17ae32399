package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stakemarket/internal/service"
)

type apiResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, apiResponse{
		Code:    0,
		Message: "ok",
		Data:    data,
		Meta:    meta,
	})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, apiResponse{
		Code:    status,
		Message: message,
		Meta:    meta,
	})
}

// ServiceError maps a classified service error onto an HTTP status.
func ServiceError(c *gin.Context, err error) {
	switch {
	case service.IsValidation(err):
		Error(c, http.StatusBadRequest, err.Error(), nil)
	case service.IsNotFound(err):
		Error(c, http.StatusNotFound, err.Error(), nil)
	case service.IsInvalidState(err):
		Error(c, http.StatusConflict, err.Error(), nil)
	default:
		Error(c, http.StatusBadGateway, err.Error(), nil)
	}
}

func boolPtr(v bool) *bool { return &v }
