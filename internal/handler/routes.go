package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Router mounts the API endpoints with their authentication and role checks.
type Router struct {
	Timetable *TimetableHandler
	Reports   *ReportHandler
	Auth      middleware.TokenValidator
}

// Mount registers the API routes on api. Only the signed download is public;
// generation, moves, export links and reports require the admin role.
func (r Router) Mount(api *gin.RouterGroup) {
	api.GET("/timetable/export/download", r.Timetable.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(r.Auth))

	timetable := secured.Group("/timetable")
	timetable.GET("", r.Timetable.List)
	timetable.GET("/export", r.Timetable.Export)
	timetable.POST("/entries/:id/check-move", r.Timetable.CheckMove)

	admin := timetable.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	admin.POST("/generate", r.Timetable.Generate)
	admin.POST("/entries/:id/move", r.Timetable.Move)
	admin.GET("/export/link", r.Timetable.ExportLink)

	reports := secured.Group("/reports")
	reports.Use(middleware.RequireRoles(models.RoleAdmin))
	reports.GET("/faculty-load", r.Reports.FacultyLoad)
	reports.GET("/room-utilization", r.Reports.RoomUtilization)
}
