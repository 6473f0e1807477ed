package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/http/response"
	"github.com/yungbote/custrisk-backend/internal/platform/logger"
	"github.com/yungbote/custrisk-backend/internal/services"
)

type CustomerHandler struct {
	log       *logger.Logger
	customers services.CustomerService
	workflow  services.RiskWorkflowService
}

func NewCustomerHandler(baseLog *logger.Logger, customers services.CustomerService, workflow services.RiskWorkflowService) *CustomerHandler {
	return &CustomerHandler{
		log:       baseLog.With("handler", "CustomerHandler"),
		customers: customers,
		workflow:  workflow,
	}
}

type customerFields struct {
	Name       *string `json:"name" binding:"omitempty,max=255"`
	Email      *string `json:"email" binding:"omitempty,max=255"`
	Phone      *string `json:"phone" binding:"omitempty,max=64"`
	ExternalID *string `json:"external_id" binding:"omitempty,max=255"`
}

// Null feature values are accepted and skipped.
type customerRequest struct {
	Customer customerFields      `json:"customer"`
	Features map[string]*float64 `json:"features"`
}

func (r customerRequest) input() services.CustomerInput {
	return services.CustomerInput{
		Name:       r.Customer.Name,
		Email:      r.Customer.Email,
		Phone:      r.Customer.Phone,
		ExternalID: r.Customer.ExternalID,
	}
}

func (r customerRequest) features() map[string]float64 {
	out := make(map[string]float64, len(r.Features))
	for k, v := range r.Features {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

type listCustomersQuery struct {
	pageQuery
	RiskLevel string `form:"risk_level"`
}

// GET /api/customers
func (h *CustomerHandler) List(c *gin.Context) {
	var q listCustomersQuery
	if !bindQuery(c, &q) {
		return
	}
	var level *types.RiskLevel
	if strings.TrimSpace(q.RiskLevel) != "" {
		l, err := types.ParseRiskLevel(q.RiskLevel)
		if err != nil {
			response.RespondDomainError(c, h.log, err)
			return
		}
		level = &l
	}
	out, err := h.workflow.ListCustomers(c.Request.Context(), level, q.page())
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/customers/:id
func (h *CustomerHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	snap, err := h.workflow.CustomerSnapshot(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, snap)
}

// GET /api/customers/:id/predictions?limit=10
func (h *CustomerHandler) History(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var q struct {
		Limit *int `form:"limit" binding:"omitempty,min=1,max=500"`
	}
	if !bindQuery(c, &q) {
		return
	}
	limit := services.DefaultHistoryLimit
	if q.Limit != nil {
		limit = *q.Limit
	}
	out, err := h.workflow.RiskHistory(c.Request.Context(), id, limit)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/customers
// body: { "customer": {"name": "...", "email": "...", "phone": "...", "external_id": "..."}, "features": {...} }
func (h *CustomerHandler) Create(c *gin.Context) {
	var req customerRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.customers.Create(c.Request.Context(), req.input(), req.features())
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	h.respondSnapshot(c, created)
}

// PUT /api/customers/:id
func (h *CustomerHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req customerRequest
	if !bindJSON(c, &req) {
		return
	}
	updated, err := h.customers.Update(c.Request.Context(), id, req.input(), req.features())
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	h.respondSnapshot(c, updated)
}

// DELETE /api/customers/:id
func (h *CustomerHandler) Delete(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.customers.Delete(c.Request.Context(), id); err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

func (h *CustomerHandler) respondSnapshot(c *gin.Context, cust *types.Customer) {
	snap, err := h.workflow.CustomerSnapshot(c.Request.Context(), cust.ID)
	if err != nil {
		response.RespondDomainError(c, h.log, err)
		return
	}
	response.RespondOK(c, snap)
}
