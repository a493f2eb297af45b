package v1

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"nuvaru/src/core/rag"
)

const maxUploadBytes = 50 << 20 // 50 MiB

type documentListResponse struct {
	Documents []rag.Document `json:"documents"`
	Total     int64          `json:"total"`
	Offset    int            `json:"offset"`
	Limit     int            `json:"limit"`
}

// UploadDocument godoc
// @Summary Upload a document into a knowledge base
// @Tags documents
// @Accept multipart/form-data
// @Param id path string true "Knowledge base ID"
// @Param file formData file true "Document file"
// @Param force formData bool false "Accept duplicate content"
// @Produce json
// @Success 201 {object} rag.Document
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/documents [post]
func (h *Handler) UploadDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, fmt.Errorf("file upload required: %w", err))
		return
	}
	defer file.Close()

	if header.Size > maxUploadBytes {
		sendError(c, http.StatusBadRequest, fmt.Errorf("file exceeds the %d byte limit", maxUploadBytes))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		sendError(c, http.StatusInternalServerError, fmt.Errorf("failed to read file: %w", err))
		return
	}
	if len(data) > maxUploadBytes {
		sendError(c, http.StatusBadRequest, fmt.Errorf("file exceeds the %d byte limit", maxUploadBytes))
		return
	}
	if len(data) == 0 {
		sendError(c, http.StatusBadRequest, fmt.Errorf("file is empty"))
		return
	}

	force, _ := strconv.ParseBool(c.PostForm("force"))

	doc, err := h.ingest.Upload(c.Request.Context(), rag.UploadRequest{
		OwnerID:         ownerID(c),
		KnowledgeBaseID: c.Param("id"),
		Filename:        header.Filename,
		ContentType:     contentTypeFor(header.Filename, header.Header.Get("Content-Type")),
		Content:         data,
		Force:           force,
	})
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusCreated, doc)
}

// contentTypeFor prefers the declared type but falls back to the filename
// extension, since browsers often send application/octet-stream.
func contentTypeFor(filename, declared string) string {
	declared = strings.TrimSpace(strings.Split(declared, ";")[0])
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return rag.ContentTypePDF
	case ".md", ".markdown":
		return rag.ContentTypeMarkdown
	case ".json":
		return rag.ContentTypeJSON
	default:
		return rag.ContentTypeText
	}
}

// ListDocuments godoc
// @Summary List documents in a knowledge base
// @Tags documents
// @Param id path string true "Knowledge base ID"
// @Param offset query int false "Page offset"
// @Param limit query int false "Page size"
// @Produce json
// @Success 200 {object} documentListResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/documents [get]
func (h *Handler) ListDocuments(c *gin.Context) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	docs, total, err := h.registry.List(c.Request.Context(), ownerID(c), c.Param("id"), offset, limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if docs == nil {
		docs = []rag.Document{}
	}
	sendJSON(c, http.StatusOK, documentListResponse{
		Documents: docs,
		Total:     total,
		Offset:    offset,
		Limit:     limit,
	})
}

// GetDocument godoc
// @Summary Get one document's metadata and processing status
// @Tags documents
// @Param id path string true "Knowledge base ID"
// @Param documentId path string true "Document ID"
// @Produce json
// @Success 200 {object} rag.Document
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/documents/{documentId} [get]
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.registry.Get(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if doc.OwnerID != ownerID(c) || doc.KnowledgeBaseID != c.Param("id") {
		sendError(c, http.StatusNotFound, rag.ErrDocumentNotFound)
		return
	}
	sendJSON(c, http.StatusOK, doc)
}

// fetchDocumentBytes loads a document record scoped to the caller and its
// stored bytes. A document outside the caller's scope reads as not found.
func (h *Handler) fetchDocumentBytes(c *gin.Context) (*rag.Document, []byte, bool) {
	doc, err := h.registry.Get(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return nil, nil, false
	}
	if doc.OwnerID != ownerID(c) || doc.KnowledgeBaseID != c.Param("id") {
		sendError(c, http.StatusNotFound, rag.ErrDocumentNotFound)
		return nil, nil, false
	}

	content, err := h.objects.Get(c.Request.Context(), rag.ObjectName(doc.ID, doc.Filename))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return nil, nil, false
	}
	return doc, content, true
}

// GetDocumentContent godoc
// @Summary Read the document content inline
// @Tags documents
// @Param id path string true "Knowledge base ID"
// @Param documentId path string true "Document ID"
// @Produce plain
// @Success 200 {string} string
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/documents/{documentId}/content [get]
func (h *Handler) GetDocumentContent(c *gin.Context) {
	doc, content, ok := h.fetchDocumentBytes(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, doc.ContentType, content)
}

// DownloadDocument godoc
// @Summary Download the original uploaded file
// @Tags documents
// @Param id path string true "Knowledge base ID"
// @Param documentId path string true "Document ID"
// @Produce octet-stream
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/documents/{documentId}/file [get]
func (h *Handler) DownloadDocument(c *gin.Context) {
	doc, content, ok := h.fetchDocumentBytes(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, content)
}

// DeleteDocument godoc
// @Summary Remove a document and its chunks
// @Tags documents
// @Param id path string true "Knowledge base ID"
// @Param documentId path string true "Document ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /knowledge-bases/{id}/documents/{documentId} [delete]
func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.ingest.Delete(c.Request.Context(), ownerID(c), c.Param("documentId")); err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}
