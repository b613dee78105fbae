package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context) (*dto.GenerateTimetableResponse, error)
}

type timetableReader interface {
	List(ctx context.Context, query dto.TimetableQuery) (*dto.TimetableListResponse, error)
	CheckMove(ctx context.Context, id string, req dto.MoveEntryRequest) (*dto.MoveCheckResponse, error)
	Move(ctx context.Context, id, actorID string, req dto.MoveEntryRequest) (*dto.MoveEntryResponse, error)
	Export(ctx context.Context, format string, query dto.TimetableQuery) (*service.ExportFile, error)
	ExportLink(ctx context.Context) (*dto.ExportLinkResponse, error)
	Download(ctx context.Context, token string) (*service.ExportFile, error)
}

// TimetableHandler exposes timetable generation and maintenance endpoints.
type TimetableHandler struct {
	generator timetableGenerator
	timetable timetableReader
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(generator *service.TimetableGeneratorService, timetable *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{generator: generator, timetable: timetable}
}

// Generate godoc
// @Summary Generate the weekly timetable
// @Description Rebuilds the whole timetable from the current courses, faculty, rooms and sections. The stored timetable is replaced only when a feasible solution is found.
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	result, err := h.generator.Generate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// List godoc
// @Summary List timetable entries
// @Tags Timetable
// @Produce json
// @Param sectionId query string false "Section ID"
// @Param facultyId query string false "Faculty ID"
// @Param roomId query string false "Room ID"
// @Param day query string false "Day (Mon-Fri)"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.timetable.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result.Entries, map[string]interface{}{"total": result.Total})
}

// CheckMove godoc
// @Summary Check whether an entry can move to another slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Timetable entry ID"
// @Param payload body dto.MoveEntryRequest true "Target slot"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries/{id}/check-move [post]
func (h *TimetableHandler) CheckMove(c *gin.Context) {
	req, ok := bindMove(c)
	if !ok {
		return
	}
	result, err := h.timetable.CheckMove(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Move godoc
// @Summary Move an entry to another slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Timetable entry ID"
// @Param payload body dto.MoveEntryRequest true "Target slot"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries/{id}/move [post]
func (h *TimetableHandler) Move(c *gin.Context) {
	req, ok := bindMove(c)
	if !ok {
		return
	}
	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}
	result, err := h.timetable.Move(c.Request.Context(), c.Param("id"), actorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Export the stored timetable
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "csv, pdf or xlsx"
// @Param sectionId query string false "Section ID"
// @Param facultyId query string false "Faculty ID"
// @Success 200 {file} file
// @Router /timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.timetable.Export(c.Request.Context(), c.Query("format"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// ExportLink godoc
// @Summary Issue a signed download link for the last generated export
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /timetable/export/link [get]
func (h *TimetableHandler) ExportLink(c *gin.Context) {
	link, err := h.timetable.ExportLink(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link)
}

// Download godoc
// @Summary Download the generated export with a signed token
// @Tags Timetable
// @Produce text/csv
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Router /timetable/export/download [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, err := h.timetable.Download(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func bindMove(c *gin.Context) (dto.MoveEntryRequest, bool) {
	var req dto.MoveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return req, false
	}
	return req, true
}
