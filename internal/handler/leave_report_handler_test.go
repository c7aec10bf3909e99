package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/izin-asrama-api/internal/dto"
	"github.com/noah-isme/izin-asrama-api/internal/middleware"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	"github.com/noah-isme/izin-asrama-api/internal/service"
	"github.com/noah-isme/izin-asrama-api/pkg/export"
)

type leaveReportServiceMock struct {
	lastReq    dto.LeaveReportRequest
	lastFormat export.Format
	cached     bool
}

func (m *leaveReportServiceMock) Report(ctx context.Context, req dto.LeaveReportRequest, actor models.Actor) (*models.LeaveReport, error) {
	m.lastReq = req
	return &models.LeaveReport{Start: req.Start, End: req.End, Cached: m.cached, Rows: []models.ResidentLeaveSummary{{ResidentID: "santri-1", HomeLeaveCount: 2}}}, nil
}

func (m *leaveReportServiceMock) Export(ctx context.Context, req dto.LeaveReportRequest, format export.Format, actor models.Actor) (*service.LeaveReportFile, error) {
	m.lastReq, m.lastFormat = req, format
	return &service.LeaveReportFile{Filename: "rekap-izin_20240101_20240131.csv", ContentType: format.ContentType(), Data: []byte("Nama\n")}, nil
}

func newReportRouter(svc *leaveReportServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewLeaveReportHandler(svc)
	r := gin.New()
	r.Use(middleware.WithResponseMeta(), func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "ust-1", Role: models.RoleUstadzah})
		c.Next()
	})
	r.GET("/leave-reports", h.Report)
	r.GET("/leave-reports/export", h.Export)
	return r
}

func TestLeaveReportHandlerReport(t *testing.T) {
	svc := &leaveReportServiceMock{cached: true}
	r := newReportRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leave-reports?start=2024-01-01&end=2024-01-31&room=A1&residentId=santri-1,santri-2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), svc.lastReq.Start.UTC())
	assert.Equal(t, "A1", svc.lastReq.Room)
	assert.Equal(t, []string{"santri-1", "santri-2"}, svc.lastReq.ResidentIDs)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)
	assert.Contains(t, w.Body.String(), `"homeLeaveCount":2`)
}

func TestLeaveReportHandlerBadDate(t *testing.T) {
	r := newReportRouter(&leaveReportServiceMock{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leave-reports?start=01-01-2024&end=2024-01-31", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeaveReportHandlerExport(t *testing.T) {
	svc := &leaveReportServiceMock{}
	r := newReportRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leave-reports/export?start=2024-01-01&end=2024-01-31&format=XLSX", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatXLSX, svc.lastFormat)
	assert.Equal(t, `attachment; filename="rekap-izin_20240101_20240131.csv"`, w.Header().Get("Content-Disposition"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leave-reports/export?start=2024-01-01&end=2024-01-31&format=docx", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
