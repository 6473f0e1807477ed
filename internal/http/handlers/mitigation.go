package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/custrisk-backend/internal/http/response"
	"github.com/yungbote/custrisk-backend/internal/platform/apierr"
	"github.com/yungbote/custrisk-backend/internal/platform/dbctx"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/services"
)

type MitigationHandler struct {
	log         *logger.Logger
	mitigations services.MitigationTracker
}

func NewMitigationHandler(baseLog *logger.Logger, mitigations services.MitigationTracker) *MitigationHandler {
	return &MitigationHandler{
		log:         baseLog.With("handler", "MitigationHandler"),
		mitigations: mitigations,
	}
}

// POST /api/mitigations
func (h *MitigationHandler) Create(c *gin.Context) {
	var req struct {
		CustomerID     string   `json:"customer_id" binding:"required,uuid"`
		RiskLevel      string   `json:"risk_level"`
		MitigationType string   `json:"mitigation_type"`
		Description    string   `json:"description"`
		AssignedTo     *string  `json:"assigned_to"`
		DueDate        *isoTime `json:"due_date"`
	}
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.mitigations.Create(dbctx.New(c.Request.Context()), services.MitigationInput{
		CustomerID:  uuid.MustParse(req.CustomerID),
		RiskLevel:   req.RiskLevel,
		Type:        req.MitigationType,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		DueDate:     req.DueDate.ptr(),
	})
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, m)
}

// GET /api/mitigations?customer_id=&status=&skip=&limit=
func (h *MitigationHandler) List(c *gin.Context) {
	var q struct {
		pageQuery
		CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
		Status     string `form:"status"`
	}
	if !bindQuery(c, &q) {
		return
	}
	query := services.MitigationQuery{Status: q.Status, Page: q.page()}
	if q.CustomerID != "" {
		id := uuid.MustParse(q.CustomerID)
		query.CustomerID = &id
	}
	out, err := h.mitigations.List(dbctx.New(c.Request.Context()), query)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/mitigations/due-soon?days=7
func (h *MitigationHandler) DueSoon(c *gin.Context) {
	var q struct {
		Days *int `form:"days" binding:"omitempty,min=0,max=3650"`
	}
	if !bindQuery(c, &q) {
		return
	}
	days := services.DefaultDueSoonDays
	if q.Days != nil {
		days = *q.Days
	}
	out, err := h.mitigations.PendingDueSoon(dbctx.New(c.Request.Context()), days)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/mitigations/:id
func (h *MitigationHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.mitigations.Get(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, m)
}

// PUT /api/mitigations/:id/status?status=Completed
// The status may also come as a JSON body: { "status": "Completed" }.
func (h *MitigationHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	status, present := c.GetQuery("status")
	if !present && c.Request.ContentLength != 0 {
		var body struct {
			Status string `json:"status"`
		}
		if !bindJSON(c, &body) {
			return
		}
		status, present = body.Status, true
	}
	if !present || strings.TrimSpace(status) == "" {
		ae := apierr.BadRequest("invalid_status", "status is required")
		response.RespondError(c, http.StatusBadRequest, ae.Code, ae)
		return
	}
	m, err := h.mitigations.UpdateStatus(dbctx.New(c.Request.Context()), id, status)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, m)
}
