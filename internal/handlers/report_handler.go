package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves teacher progress reports
type ReportHandler struct {
	BaseHandler
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService, logger utils.Logger) *ReportHandler {
	return &ReportHandler{
		BaseHandler:   NewBaseHandler(logger),
		reportService: reportService,
	}
}

// ClassProgress reports every approved member's progress on the modules assigned to them
// @Summary Class progress
// @Tags reports
// @Produce json
// @Param id path uint true "Class ID"
// @Success 200 {array} models.ProgressRow
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /classes/{id}/progress [get]
func (h *ReportHandler) ClassProgress(c *gin.Context) {
	classID := h.parseIDParam(c, "id")
	if classID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	rows, err := h.reportService.ClassProgress(c.Request.Context(), teacherID, classID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}

// ExportClassProgress downloads the class progress as an xlsx workbook
// @Summary Export class progress
// @Tags reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Class ID"
// @Success 200 {file} file
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /classes/{id}/progress/export [get]
func (h *ReportHandler) ExportClassProgress(c *gin.Context) {
	classID := h.parseIDParam(c, "id")
	if classID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting class progress", "class_id", classID)

	export, err := h.reportService.ExportClassProgress(c.Request.Context(), teacherID, classID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Content)
}

// ModuleProgress reports every student's progress on one module
// @Summary Module progress
// @Tags reports
// @Produce json
// @Param id path uint true "Module ID"
// @Success 200 {array} models.ProgressRow
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id}/progress [get]
func (h *ReportHandler) ModuleProgress(c *gin.Context) {
	moduleID := h.parseIDParam(c, "id")
	if moduleID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	rows, err := h.reportService.ModuleProgress(c.Request.Context(), teacherID, moduleID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, rows)
}
