package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/service"
	domainappr "github.com/millworks/backoffice/internal/domain/approval"
	"github.com/millworks/backoffice/internal/domain/entity"
)

// Identity headers set by the authenticating reverse proxy
const (
	userIDHeader = "X-User-ID"
	adminHeader  = "X-Admin"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	overtimeService service.OvertimeService
	purchaseService service.PurchaseService
	policyService   service.PolicyService
	registryService service.RegistryService
	logger          *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	overtimeService service.OvertimeService,
	purchaseService service.PurchaseService,
	policyService service.PolicyService,
	registryService service.RegistryService,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		overtimeService: overtimeService,
		purchaseService: purchaseService,
		policyService:   policyService,
		registryService: registryService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// actor extracts the caller identity from the proxy headers. A missing or
// malformed X-User-ID aborts the request with 401.
func (h *Handlers) actor(c *gin.Context) (domainappr.Actor, bool) {
	raw := c.GetHeader(userIDHeader)
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, Response{Success: false, Error: "missing or invalid " + userIDHeader})
		return domainappr.Actor{}, false
	}
	return domainappr.Actor{
		UserID:  userID,
		IsAdmin: c.GetHeader(adminHeader) == "true",
	}, true
}

// pathID parses the :id path parameter
func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps domain and service errors onto status codes
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, domainappr.ErrNoPolicyMatched):
		status = http.StatusBadRequest
	case errors.Is(err, domainappr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, domainappr.ErrWorkflowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrOverlap),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, domainappr.ErrWorkflowExists),
		errors.Is(err, domainappr.ErrWorkflowClosed),
		errors.Is(err, domainappr.ErrStageClosed),
		errors.Is(err, domainappr.ErrCancelNotAllowed),
		errors.Is(err, domainappr.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, domainappr.ErrNotifierFailed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		c.JSON(status, Response{Success: false, Error: "internal error"})
		return
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

// listParams reads limit/offset query parameters with defaults
func listParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// --- overtime ---

// CreateOvertimeRequest is the payload for POST /api/overtime
type CreateOvertimeRequest struct {
	Team    string    `json:"team"`
	Reason  string    `json:"reason" binding:"required"`
	StartAt time.Time `json:"start_at" binding:"required"`
	EndAt   time.Time `json:"end_at" binding:"required"`
	Entries []struct {
		UserID      int64  `json:"user_id" binding:"required"`
		JobNo       string `json:"job_no"`
		Description string `json:"description"`
	} `json:"entries" binding:"required"`
}

// CreateOvertime handles POST /api/overtime
func (h *Handlers) CreateOvertime(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreateOvertimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	entries := make([]entity.OvertimeEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, entity.OvertimeEntry{
			UserID:      e.UserID,
			JobNo:       e.JobNo,
			Description: e.Description,
		})
	}

	created, err := h.overtimeService.Create(c.Request.Context(), &entity.OvertimeRequest{
		RequesterID: actor.UserID,
		Team:        req.Team,
		Reason:      req.Reason,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Entries:     entries,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: toOvertimeResponse(created)})
}

// ListOvertime handles GET /api/overtime
func (h *Handlers) ListOvertime(c *gin.Context) {
	limit, offset := listParams(c)
	requests, err := h.overtimeService.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]OvertimeResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, toOvertimeResponse(r))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetOvertime handles GET /api/overtime/:id
func (h *Handlers) GetOvertime(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	req, err := h.overtimeService.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toOvertimeResponse(req)})
}

// GetOvertimeWorkflow handles GET /api/overtime/:id/workflow
func (h *Handlers) GetOvertimeWorkflow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	wf, err := h.overtimeService.Workflow(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toWorkflowResponse(wf)})
}

// DecisionRequest is the payload for approve/reject endpoints
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// ApproveOvertime handles POST /api/overtime/:id/approve
func (h *Handlers) ApproveOvertime(c *gin.Context) {
	h.decide(c, h.overtimeService.Approve)
}

// RejectOvertime handles POST /api/overtime/:id/reject
func (h *Handlers) RejectOvertime(c *gin.Context) {
	h.decide(c, h.overtimeService.Reject)
}

// decide is the shared approve/reject handler body. The decision function is
// one of the subject services' Approve or Reject methods.
func (h *Handlers) decide(c *gin.Context, decide func(ctx context.Context, id int64, actor domainappr.Actor, comment string) (*domainappr.Workflow, error)) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	// An empty body means a decision without comment.
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	wf, err := decide(c.Request.Context(), id, actor, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toWorkflowResponse(wf)})
}

// CancelOvertime handles POST /api/overtime/:id/cancel
func (h *Handlers) CancelOvertime(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.overtimeService.Cancel(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// OvertimeInbox handles GET /api/inbox/overtime
func (h *Handlers) OvertimeInbox(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	items, err := h.overtimeService.Inbox(c.Request.Context(), actor.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]InboxItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, InboxItemResponse{
			Subject:    toOvertimeResponse(it.Request),
			WorkflowID: it.Workflow.ID,
			StageOrder: it.StageOrder,
			StageName:  it.StageName,
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// --- purchase requests ---

// CreatePurchaseRequest is the payload for POST /api/purchase-requests
type CreatePurchaseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Department  string `json:"department"`
	Priority    string `json:"priority"`
	Items       []struct {
		ItemCode       string  `json:"item_code" binding:"required"`
		ItemName       string  `json:"item_name"`
		Unit           string  `json:"unit"`
		Quantity       float64 `json:"quantity" binding:"required"`
		Specifications string  `json:"specifications"`
	} `json:"items" binding:"required"`
}

// CreatePurchase handles POST /api/purchase-requests
func (h *Handlers) CreatePurchase(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	items := make([]entity.PurchaseRequestItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, entity.PurchaseRequestItem{
			ItemCode:       it.ItemCode,
			ItemName:       it.ItemName,
			Unit:           it.Unit,
			Quantity:       it.Quantity,
			Specifications: it.Specifications,
		})
	}

	created, err := h.purchaseService.Create(c.Request.Context(), &entity.PurchaseRequest{
		Title:       req.Title,
		Description: req.Description,
		RequesterID: actor.UserID,
		Department:  req.Department,
		Priority:    entity.PurchasePriority(req.Priority),
		Items:       items,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: toPurchaseResponse(created)})
}

// ListPurchases handles GET /api/purchase-requests
func (h *Handlers) ListPurchases(c *gin.Context) {
	limit, offset := listParams(c)
	requests, err := h.purchaseService.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]PurchaseResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, toPurchaseResponse(r))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetPurchase handles GET /api/purchase-requests/:id
func (h *Handlers) GetPurchase(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	req, err := h.purchaseService.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toPurchaseResponse(req)})
}

// GetPurchaseWorkflow handles GET /api/purchase-requests/:id/workflow
func (h *Handlers) GetPurchaseWorkflow(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	wf, err := h.purchaseService.Workflow(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toWorkflowResponse(wf)})
}

// SubmitPurchase handles POST /api/purchase-requests/:id/submit
func (h *Handlers) SubmitPurchase(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	req, err := h.purchaseService.Submit(c.Request.Context(), id, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toPurchaseResponse(req)})
}

// ApprovePurchase handles POST /api/purchase-requests/:id/approve
func (h *Handlers) ApprovePurchase(c *gin.Context) {
	h.decide(c, h.purchaseService.Approve)
}

// RejectPurchase handles POST /api/purchase-requests/:id/reject
func (h *Handlers) RejectPurchase(c *gin.Context) {
	h.decide(c, h.purchaseService.Reject)
}

// CancelPurchase handles POST /api/purchase-requests/:id/cancel
func (h *Handlers) CancelPurchase(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.purchaseService.Cancel(c.Request.Context(), id, actor); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// PurchaseInbox handles GET /api/inbox/purchase-requests
func (h *Handlers) PurchaseInbox(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	items, err := h.purchaseService.Inbox(c.Request.Context(), actor.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]InboxItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, InboxItemResponse{
			Subject:    toPurchaseResponse(it.Request),
			WorkflowID: it.Workflow.ID,
			StageOrder: it.StageOrder,
			StageName:  it.StageName,
		})
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// --- registry exports ---

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportRegistry renders the workbook into a buffer before writing anything
// to the response, so a failed export still returns a clean 500 instead of a
// truncated download.
func (h *Handlers) exportRegistry(c *gin.Context, filename string, export func(ctx context.Context, w io.Writer) error) {
	var buf bytes.Buffer
	if err := export(c.Request.Context(), &buf); err != nil {
		h.logger.Error("Registry export failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportOvertimeRegistry handles GET /api/registry/overtime.xlsx
func (h *Handlers) ExportOvertimeRegistry(c *gin.Context) {
	h.exportRegistry(c, "overtime-registry.xlsx", h.registryService.ExportOvertimeRegistry)
}

// ExportPurchaseRegistry handles GET /api/registry/purchase-requests.xlsx
func (h *Handlers) ExportPurchaseRegistry(c *gin.Context) {
	h.exportRegistry(c, "purchase-registry.xlsx", h.registryService.ExportPurchaseRegistry)
}

// --- policies ---

// CreatePolicyRequest is the payload for POST /api/policies
type CreatePolicyRequest struct {
	Name              string            `json:"name" binding:"required"`
	IsActive          bool              `json:"is_active"`
	SelectionPriority int               `json:"selection_priority"`
	Match             map[string]string `json:"match"`
	Stages            []struct {
		Order  int                    `json:"order" binding:"required"`
		Name   string                 `json:"name" binding:"required"`
		Rule   domainappr.ApproverRule `json:"rule"`
		Quorum int                    `json:"quorum"`
	} `json:"stages" binding:"required"`
}

// CreatePolicy handles POST /api/policies
func (h *Handlers) CreatePolicy(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if !actor.IsAdmin {
		c.JSON(http.StatusForbidden, Response{Success: false, Error: "admin required"})
		return
	}

	var req CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}

	policy := &domainappr.Policy{
		Name:              req.Name,
		IsActive:          req.IsActive,
		SelectionPriority: req.SelectionPriority,
		Match:             req.Match,
	}
	for _, st := range req.Stages {
		policy.Stages = append(policy.Stages, domainappr.StageTemplate{
			Order:  st.Order,
			Name:   st.Name,
			Rule:   st.Rule,
			Quorum: st.Quorum,
		})
	}

	created, err := h.policyService.Create(c.Request.Context(), policy)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: toPolicyResponse(created)})
}

// ListPolicies handles GET /api/policies
func (h *Handlers) ListPolicies(c *gin.Context) {
	policies, err := h.policyService.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		out = append(out, toPolicyResponse(p))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetPolicy handles GET /api/policies/:id
func (h *Handlers) GetPolicy(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	policy, err := h.policyService.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toPolicyResponse(policy)})
}
