package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/izin-asrama-api/internal/dto"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
	"github.com/noah-isme/izin-asrama-api/pkg/response"
)

type leaveService interface {
	Submit(ctx context.Context, req dto.SubmitLeaveRequest, actor models.Actor) (*models.LeaveApplication, error)
	Get(ctx context.Context, id string, actor models.Actor) (*models.LeaveApplication, error)
	List(ctx context.Context, query dto.LeaveQuery, actor models.Actor) ([]models.LeaveApplication, *models.Pagination, error)
	ListOverdue(ctx context.Context, actor models.Actor) ([]models.LeaveApplication, error)
	ApproveStaff(ctx context.Context, id string, req dto.ReviewLeaveRequest, actor models.Actor) (*models.LeaveApplication, error)
	ApproveSupervisor(ctx context.Context, id string, req dto.ReviewLeaveRequest, actor models.Actor) (*models.LeaveApplication, error)
	VerifyReturn(ctx context.Context, id string, req dto.VerifyReturnRequest, actor models.Actor) (*models.LeaveApplication, error)
	VerifyRecovery(ctx context.Context, id string, req dto.VerifyRecoveryRequest, actor models.Actor) (*models.LeaveApplication, error)
	Withdraw(ctx context.Context, id string, actor models.Actor) error
}

// LeaveHandler exposes the leave application workflow.
type LeaveHandler struct {
	service leaveService
}

// NewLeaveHandler builds a new handler.
func NewLeaveHandler(service leaveService) *LeaveHandler {
	return &LeaveHandler{service: service}
}

// Submit godoc
// @Summary Submit a leave application
// @Tags Leave
// @Accept json
// @Produce json
// @Param payload body dto.SubmitLeaveRequest true "Leave application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /leave-applications [post]
func (h *LeaveHandler) Submit(c *gin.Context) {
	var req dto.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	req.Kind = models.LeaveKind(strings.ToUpper(string(req.Kind)))
	app, err := h.service.Submit(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List leave applications
// @Tags Leave
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param kind query string false "SICK or HOME"
// @Param residentId query string false "Resident ID"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leave-applications [get]
func (h *LeaveHandler) List(c *gin.Context) {
	query := dto.LeaveQuery{
		Kind:       models.LeaveKind(strings.ToUpper(c.Query("kind"))),
		ResidentID: c.Query("residentId"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "pageSize", 20),
	}
	for _, raw := range queryList(c, "status") {
		status := models.LeaveStatus(strings.ToUpper(raw))
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status "+raw))
			return
		}
		query.Status = append(query.Status, status)
	}
	items, pagination, err := h.service.List(c.Request.Context(), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Overdue godoc
// @Summary List residents still away past their planned return
// @Tags Leave
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leave-applications/overdue [get]
func (h *LeaveHandler) Overdue(c *gin.Context) {
	items, err := h.service.ListOverdue(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Get godoc
// @Summary Get a leave application
// @Tags Leave
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave-applications/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	app, err := h.service.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// StaffReview godoc
// @Summary Record the ustadzah decision
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ReviewLeaveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-applications/{id}/staff-review [post]
func (h *LeaveHandler) StaffReview(c *gin.Context) {
	h.review(c, h.service.ApproveStaff)
}

// SupervisorReview godoc
// @Summary Record the ndalem decision on a home leave
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ReviewLeaveRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave-applications/{id}/supervisor-review [post]
func (h *LeaveHandler) SupervisorReview(c *gin.Context) {
	h.review(c, h.service.ApproveSupervisor)
}

type reviewFunc func(ctx context.Context, id string, req dto.ReviewLeaveRequest, actor models.Actor) (*models.LeaveApplication, error)

func (h *LeaveHandler) review(c *gin.Context, decide reviewFunc) {
	var req dto.ReviewLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	app, err := decide(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// VerifyReturn godoc
// @Summary Confirm a resident came back from home leave
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.VerifyReturnRequest false "Actual return time"
// @Success 200 {object} response.Envelope
// @Router /leave-applications/{id}/return [post]
func (h *LeaveHandler) VerifyReturn(c *gin.Context) {
	var req dto.VerifyReturnRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := h.service.VerifyReturn(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// VerifyRecovery godoc
// @Summary Confirm a resident recovered from sick leave
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.VerifyRecoveryRequest false "Recovery time"
// @Success 200 {object} response.Envelope
// @Router /leave-applications/{id}/recovery [post]
func (h *LeaveHandler) VerifyRecovery(c *gin.Context) {
	var req dto.VerifyRecoveryRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := h.service.VerifyRecovery(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// Withdraw godoc
// @Summary Withdraw a pending leave application
// @Tags Leave
// @Param id path string true "Application ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /leave-applications/{id} [delete]
func (h *LeaveHandler) Withdraw(c *gin.Context) {
	if err := h.service.Withdraw(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// bindOptionalJSON binds a body when one was sent; an empty body keeps defaults.
func bindOptionalJSON(c *gin.Context, dest interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return false
	}
	return true
}
