package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

type AssignmentHandler struct {
	BaseHandler
	assignmentService services.AssignmentService
}

func NewAssignmentHandler(assignmentService services.AssignmentService, logger utils.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		assignmentService: assignmentService,
	}
}

// PublishModule publishes a module and applies its assignment targets
// @Summary Publish module
// @Description Sets the module to published and replaces its assignments with the given targets. Every approved member of a target class gets a zero-progress record.
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path uint true "Module ID"
// @Param request body services.AssignmentsRequest true "Assignment targets"
// @Success 200 {object} services.AssignmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Module has no lessons"
// @Router /modules/{id}/publish [post]
func (h *AssignmentHandler) PublishModule(c *gin.Context) {
	h.applyAssignments(c, true)
}

// UpdateAssignments replaces the assignment targets of a module
// @Summary Update module assignments
// @Description Inserts new targets, updates changed due dates and deletes dropped targets. Student progress is kept.
// @Tags assignments
// @Accept json
// @Produce json
// @Param id path uint true "Module ID"
// @Param request body services.AssignmentsRequest true "Assignment targets"
// @Success 200 {object} services.AssignmentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id}/assignments [put]
func (h *AssignmentHandler) UpdateAssignments(c *gin.Context) {
	h.applyAssignments(c, false)
}

func (h *AssignmentHandler) applyAssignments(c *gin.Context, publish bool) {
	moduleID := h.parseIDParam(c, "id")
	if moduleID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.AssignmentsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Applying module assignments", "module_id", moduleID, "targets", len(req.Targets), "publish", publish)

	var (
		resp *services.AssignmentResponse
		err  error
	)
	if publish {
		resp, err = h.assignmentService.Publish(c.Request.Context(), moduleID, teacherID, &req)
	} else {
		resp, err = h.assignmentService.UpdateAssignments(c.Request.Context(), moduleID, teacherID, &req)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListAssignments lists the assignment targets of a module
// @Summary List module assignments
// @Tags assignments
// @Produce json
// @Param id path uint true "Module ID"
// @Success 200 {array} models.ModuleAssignment
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id}/assignments [get]
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	moduleID := h.parseIDParam(c, "id")
	if moduleID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListAssignments(c.Request.Context(), moduleID, teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assignments)
}
