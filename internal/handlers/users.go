package handlers

import (
	"net/http"

	"field-service/internal/middleware"
	"field-service/internal/reports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserHandler struct {
	reports *reports.Manager
	log     *zap.Logger
}

func NewUserHandler(m *reports.Manager, log *zap.Logger) *UserHandler {
	return &UserHandler{reports: m, log: orNop(log)}
}

type signatureRequest struct {
	Signature string `json:"signature"`
}

// UpdateSignature сохраняет подпись инженера для подписания на месте.
func (h *UserHandler) UpdateSignature(c *gin.Context) {
	var req signatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	if err := h.reports.UpdateStoredSignature(c.Request.Context(), middleware.UserID(c), req.Signature); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signature updated successfully"})
}
