package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/custrisk-backend/internal/http/response"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/services"
)

type PredictionHandler struct {
	log      *logger.Logger
	workflow services.RiskWorkflowService
}

func NewPredictionHandler(baseLog *logger.Logger, workflow services.RiskWorkflowService) *PredictionHandler {
	return &PredictionHandler{
		log:      baseLog.With("handler", "PredictionHandler"),
		workflow: workflow,
	}
}

// POST /api/predictions/predict
// body: { "customer_id": "...", "customer_features": { "age": 40, ... } }
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req struct {
		CustomerID       string         `json:"customer_id" binding:"required,uuid"`
		CustomerFeatures map[string]any `json:"customer_features"`
	}
	if !bindJSON(c, &req) {
		return
	}
	pred, err := h.workflow.Predict(c.Request.Context(), uuid.MustParse(req.CustomerID), req.CustomerFeatures)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, pred)
}

// GET /api/predictions/statistics?scope=assessed|all
func (h *PredictionHandler) Statistics(c *gin.Context) {
	var q struct {
		Scope string `form:"scope" binding:"omitempty,oneof=assessed all"`
	}
	if !bindQuery(c, &q) {
		return
	}
	dist, err := h.workflow.Statistics(c.Request.Context(), q.Scope)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, dist)
}

// GET /api/predictions/high-risk
func (h *PredictionHandler) HighRisk(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	out, err := h.workflow.HighRiskCustomers(c.Request.Context(), q.page())
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}
