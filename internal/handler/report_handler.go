package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type utilizationReporter interface {
	FacultyLoad(ctx context.Context) (*dto.FacultyLoadReport, error)
	RoomUtilization(ctx context.Context) (*dto.RoomUtilizationReport, error)
}

// ReportHandler serves utilization reports.
type ReportHandler struct {
	service utilizationReporter
}

// NewReportHandler constructs the handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// FacultyLoad godoc
// @Summary Faculty load against advisory maximum hours
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/faculty-load [get]
func (h *ReportHandler) FacultyLoad(c *gin.Context) {
	report, err := h.service.FacultyLoad(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	response.JSON(c, http.StatusOK, report, middleware.ExtractMeta(c))
}

// RoomUtilization godoc
// @Summary Share of weekly slots booked per room
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/room-utilization [get]
func (h *ReportHandler) RoomUtilization(c *gin.Context) {
	report, err := h.service.RoomUtilization(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, report.Cached)
	response.JSON(c, http.StatusOK, report, middleware.ExtractMeta(c))
}
