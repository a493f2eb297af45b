package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"nuvaru/src/core/rag"
)

type queryRequest struct {
	Query string `json:"query" binding:"required"`
}

// Query godoc
// @Summary Retrieve the most relevant chunks for a query
// @Tags query
// @Accept json
// @Produce json
// @Param id path string true "Knowledge base ID"
// @Param body body queryRequest true "Query parameters"
// @Success 200 {object} rag.RetrievalResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/query [post]
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	result, err := h.retrieval.Retrieve(c.Request.Context(), ownerID(c), c.Param("id"), req.Query)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, result)
}

type generateAnswerRequest struct {
	KnowledgeBaseID string `json:"knowledgeBaseId" binding:"required"`
	Query           string `json:"query" binding:"required"`
	SessionID       string `json:"sessionId"`
}

// GenerateAnswer godoc
// @Summary Answer a question from knowledge base content
// @Tags chat
// @Accept json
// @Produce json
// @Param body body generateAnswerRequest true "Completion parameters"
// @Success 200 {object} rag.Answer
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/completions [post]
func (h *Handler) GenerateAnswer(c *gin.Context) {
	var req generateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	answer, err := h.generation.Answer(
		c.Request.Context(),
		ownerID(c),
		req.KnowledgeBaseID,
		req.SessionID,
		req.Query,
	)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	sendJSON(c, http.StatusOK, answer)
}

// GetChatHistory godoc
// @Summary Get chat history for a session
// @Tags chat
// @Param sessionId query string true "Chat session ID"
// @Produce json
// @Success 200 {array} rag.Turn
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/history [get]
func (h *Handler) GetChatHistory(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sendError(c, http.StatusBadRequest, fmt.Errorf("sessionId is required"))
		return
	}

	history, err := h.generation.History(c.Request.Context(), sessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if history == nil {
		history = []rag.Turn{}
	}
	sendJSON(c, http.StatusOK, history)
}

type feedbackRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	TurnID    string `json:"turnId" binding:"required"`
	Rating    int    `json:"rating" binding:"required,min=1,max=5"`
	Comment   string `json:"comment"`
}

// SubmitFeedback godoc
// @Summary Record feedback on an answer
// @Tags chat
// @Accept json
// @Param body body feedbackRequest true "Feedback parameters"
// @Success 202 "Accepted"
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/feedback [post]
func (h *Handler) SubmitFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	err := h.generation.SubmitFeedback(c.Request.Context(), rag.Feedback{
		SessionID: req.SessionID,
		TurnID:    req.TurnID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusAccepted)
}
