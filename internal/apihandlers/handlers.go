// Package apihandlers exposes the decision engine over HTTP for the UI layer.
package apihandlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"curator/internal/app"
	"curator/internal/models"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a}
}

// CategorizeHandler runs one request through the full decision pipeline.
func (h *APIHandler) CategorizeHandler(c *gin.Context) {
	var req models.CategorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Signature.Filename == "" {
		BadRequest(c, "signature.filename is required")
		return
	}

	result, err := h.App.Engine.Categorize(c.Request.Context(), req)
	if err != nil {
		var apf *models.AllProvidersFailedError
		if errors.As(err, &apf) {
			ServiceUnavailable(c, apf.Error())
			return
		}
		Internal(c, fmt.Sprintf("categorize failed: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ScoreHandler returns the calibrated confidence breakdown for a file.
func (h *APIHandler) ScoreHandler(c *gin.Context) {
	var req models.CategorizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Signature.Filename == "" {
		BadRequest(c, "signature.filename is required")
		return
	}

	result, err := h.App.Engine.Score(c.Request.Context(), req)
	if err != nil {
		Internal(c, fmt.Sprintf("score failed: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

// ClassifyHandler runs the prototype-only classification path.
func (h *APIHandler) ClassifyHandler(c *gin.Context) {
	var req struct {
		models.CategorizationRequest
		MinConfidence float64 `json:"min_confidence"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cls, err := h.App.Engine.Classify(c.Request.Context(), req.Embedding, req.MinConfidence)
	if err != nil {
		Internal(c, fmt.Sprintf("classify failed: %v", err))
		return
	}
	if cls == nil {
		c.JSON(http.StatusOK, gin.H{"data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cls})
}

// FeedbackHandler records a correction or an outcome report.
type feedbackRequest struct {
	models.CategorizationRequest
	CorrectedLabel string `json:"corrected_label,omitempty"`
	OriginalLabel  string `json:"original_label,omitempty"`
	WasCorrect     *bool  `json:"was_correct,omitempty"`
	WasAutoPlace   bool   `json:"was_auto_place,omitempty"`
}

func (h *APIHandler) FeedbackHandler(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if req.CorrectedLabel != "" {
		if err := h.App.Engine.Learn(c.Request.Context(), req.CategorizationRequest, req.CorrectedLabel, req.OriginalLabel); err != nil {
			Internal(c, fmt.Sprintf("learn failed: %v", err))
			return
		}
	}
	if req.WasCorrect != nil {
		h.App.Engine.RecordOutcome(*req.WasCorrect, req.WasAutoPlace)
	}
	c.JSON(http.StatusOK, gin.H{"data": "ok"})
}

// StatsHandler returns the precision statistics.
func (h *APIHandler) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.App.Engine.GetPrecisionStatistics()})
}

// RoutingHandler returns the orchestrator's routing snapshot.
func (h *APIHandler) RoutingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.App.Engine.RoutingState(c.Request.Context())})
}
