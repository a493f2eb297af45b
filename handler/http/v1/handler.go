package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"nuvaru/src/core/rag"
)

type Handler struct {
	kbService  rag.KnowledgeBaseService
	ingest     rag.IngestService
	retrieval  rag.RetrievalService
	generation rag.GenerationService
	registry   rag.DocumentRegistry
	objects    rag.ObjectStore
	sysService rag.SystemService
}

func NewHandler(
	kbService rag.KnowledgeBaseService,
	ingest rag.IngestService,
	retrieval rag.RetrievalService,
	generation rag.GenerationService,
	registry rag.DocumentRegistry,
	objects rag.ObjectStore,
	sysService rag.SystemService,
) *Handler {
	return &Handler{
		kbService:  kbService,
		ingest:     ingest,
		retrieval:  retrieval,
		generation: generation,
		registry:   registry,
		objects:    objects,
		sysService: sysService,
	}
}

// RegisterRoutes registers all v1 API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	v1 := r.Group("/api/v1")

	// Knowledge base routes
	v1.GET("/knowledge-bases", h.ListKnowledgeBases)
	v1.POST("/knowledge-bases", h.CreateKnowledgeBase)
	v1.DELETE("/knowledge-bases/:id", h.DeleteKnowledgeBase)
	v1.GET("/knowledge-bases/:id/stats", h.GetKnowledgeBaseStats)

	// Document routes
	v1.GET("/knowledge-bases/:id/documents", h.ListDocuments)
	v1.POST("/knowledge-bases/:id/documents", h.UploadDocument)
	v1.GET("/knowledge-bases/:id/documents/:documentId", h.GetDocument)
	v1.GET("/knowledge-bases/:id/documents/:documentId/content", h.GetDocumentContent)
	v1.GET("/knowledge-bases/:id/documents/:documentId/file", h.DownloadDocument)
	v1.DELETE("/knowledge-bases/:id/documents/:documentId", h.DeleteDocument)

	// Query routes
	v1.POST("/knowledge-bases/:id/query", h.Query)

	// Chat routes
	v1.POST("/chat/completions", h.GenerateAnswer)
	v1.GET("/chat/history", h.GetChatHistory)
	v1.POST("/chat/feedback", h.SubmitFeedback)

	// System routes
	v1.GET("/health", h.CheckHealth)
}

// ownerID resolves the calling owner; authn happened upstream and passed the
// identity through this header.
func ownerID(c *gin.Context) string {
	owner := c.GetHeader("X-Owner-ID")
	if owner == "" {
		owner = "default"
	}
	return owner
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	code := "INTERNAL_ERROR"

	if dup, ok := rag.IsDuplicate(err); ok {
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    string(dup.Kind),
			Message: dup.Error(),
			Details: gin.H{
				"existingId":       dup.ExistingID,
				"existingFilename": dup.ExistingFilename,
			},
		})
		return
	}

	switch {
	case errors.Is(err, rag.ErrKnowledgeBaseNotFound),
		errors.Is(err, rag.ErrDocumentNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, rag.ErrUnsupportedFormat):
		code = "UNSUPPORTED_FORMAT"
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, rag.ErrStoreUnavailable):
		code = "STORE_UNAVAILABLE"
		status = http.StatusServiceUnavailable
	case status == http.StatusBadRequest:
		code = "BAD_REQUEST"
	default:
		status = http.StatusInternalServerError
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
