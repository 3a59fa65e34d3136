// Package handler provides HTTP handlers for the assistant service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/guideline-rag/internal/assistant/biz"
	"github.com/kart-io/guideline-rag/internal/pkg/errno"
	"github.com/kart-io/guideline-rag/internal/pkg/httputils"
)

// queryTimeout bounds one query including embedding, search, classification
// and generation round trips.
const queryTimeout = 60 * time.Second

// AssistantHandler handles assistant HTTP requests.
type AssistantHandler struct {
	service biz.Service
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(service biz.Service) *AssistantHandler {
	return &AssistantHandler{service: service}
}

// IngestRequest represents an ingest request.
type IngestRequest struct {
	Path   string `json:"path" binding:"required"`
	Source string `json:"source,omitempty"`
}

// Ingest extracts, chunks, embeds and upserts one PDF document.
func (h *AssistantHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteBadRequest(c, err)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), req.Path, req.Source)
	httputils.WriteResponse(c, err, result)
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question            string `json:"question" binding:"required"`
	TopK                int    `json:"top_k,omitempty"`
	DebugReturnEvidence bool   `json:"debug_return_evidence,omitempty"`
}

// Query answers a question grounded on the ingested guideline.
func (h *AssistantHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteBadRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question, req.TopK, req.DebugReturnEvidence)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		httputils.WriteResponse(c, errno.ErrQueryTimeout.WithCause(err), nil)
		return
	}
	httputils.WriteResponse(c, err, result)
}

// Status reports collection diagnostics.
func (h *AssistantHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	httputils.WriteResponse(c, err, status)
}

// DebugPages returns the page set of the most recent ingestion.
func (h *AssistantHandler) DebugPages(c *gin.Context) {
	httputils.WriteResponse(c, nil, gin.H{"pages": h.service.DebugPages()})
}

// Health is the liveness endpoint.
func (h *AssistantHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
