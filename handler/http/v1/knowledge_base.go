package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nuvaru/src/core/rag"
)

type createKnowledgeBaseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateKnowledgeBase godoc
// @Summary Create a knowledge base
// @Tags knowledge-bases
// @Accept json
// @Produce json
// @Param body body createKnowledgeBaseRequest true "Knowledge base parameters"
// @Success 201 {object} rag.KnowledgeBase
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases [post]
func (h *Handler) CreateKnowledgeBase(c *gin.Context) {
	var req createKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	kb, err := h.kbService.Create(c.Request.Context(), ownerID(c), req.Name, req.Description)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusCreated, kb)
}

// ListKnowledgeBases godoc
// @Summary List the caller's knowledge bases
// @Tags knowledge-bases
// @Produce json
// @Success 200 {array} rag.KnowledgeBase
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases [get]
func (h *Handler) ListKnowledgeBases(c *gin.Context) {
	kbs, err := h.kbService.List(c.Request.Context(), ownerID(c))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if kbs == nil {
		kbs = []rag.KnowledgeBase{}
	}
	sendJSON(c, http.StatusOK, kbs)
}

// DeleteKnowledgeBase godoc
// @Summary Delete a knowledge base and everything in it
// @Tags knowledge-bases
// @Param id path string true "Knowledge base ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id} [delete]
func (h *Handler) DeleteKnowledgeBase(c *gin.Context) {
	if err := h.kbService.Delete(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetKnowledgeBaseStats godoc
// @Summary Get document and chunk counts for a knowledge base
// @Tags knowledge-bases
// @Param id path string true "Knowledge base ID"
// @Produce json
// @Success 200 {object} rag.KnowledgeBaseStats
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/stats [get]
func (h *Handler) GetKnowledgeBaseStats(c *gin.Context) {
	stats, err := h.kbService.Stats(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, stats)
}
