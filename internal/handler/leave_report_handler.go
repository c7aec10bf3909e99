package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/izin-asrama-api/internal/dto"
	"github.com/noah-isme/izin-asrama-api/internal/middleware"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	"github.com/noah-isme/izin-asrama-api/internal/service"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
	"github.com/noah-isme/izin-asrama-api/pkg/export"
	"github.com/noah-isme/izin-asrama-api/pkg/response"
)

type leaveReportService interface {
	Report(ctx context.Context, req dto.LeaveReportRequest, actor models.Actor) (*models.LeaveReport, error)
	Export(ctx context.Context, req dto.LeaveReportRequest, format export.Format, actor models.Actor) (*service.LeaveReportFile, error)
}

// LeaveReportHandler serves the per-resident leave recap.
type LeaveReportHandler struct {
	service leaveReportService
}

// NewLeaveReportHandler constructs handler.
func NewLeaveReportHandler(service leaveReportService) *LeaveReportHandler {
	return &LeaveReportHandler{service: service}
}

// Report godoc
// @Summary Leave recap per resident
// @Tags Leave Reports
// @Produce json
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD), inclusive"
// @Param room query string false "Room filter"
// @Param residentId query []string false "Resident IDs"
// @Success 200 {object} response.Envelope
// @Router /leave-reports [get]
func (h *LeaveReportHandler) Report(c *gin.Context) {
	req, ok := bindReportQuery(c)
	if !ok {
		return
	}
	report, err := h.service.Report(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the leave recap
// @Tags Leave Reports
// @Produce octet-stream
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD), inclusive"
// @Param room query string false "Room filter"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /leave-reports/export [get]
func (h *LeaveReportHandler) Export(c *gin.Context) {
	req, ok := bindReportQuery(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	file, err := h.service.Export(c.Request.Context(), req, format, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}

func bindReportQuery(c *gin.Context) (dto.LeaveReportRequest, bool) {
	var req dto.LeaveReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end must be YYYY-MM-DD dates"))
		return req, false
	}
	req.ResidentIDs = queryList(c, "residentId")
	return req, true
}
