package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} rag.HealthStatus
// @Failure 500 {object} ErrorResponse
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	status, err := h.sysService.CheckHealth(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	sendJSON(c, code, status)
}
