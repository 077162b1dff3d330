package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// History отдаёт журнал действий по отчёту (только администраторы).
func (h *ReportHandler) History(c *gin.Context) {
	logs, err := h.reports.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}
