package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type ClassHandler struct {
	BaseHandler
	classService services.ClassService
}

func NewClassHandler(classService services.ClassService, logger utils.Logger) *ClassHandler {
	return &ClassHandler{
		BaseHandler:  NewBaseHandler(logger),
		classService: classService,
	}
}

// CreateClass creates a class with a fresh join code
// @Summary Create class
// @Tags classes
// @Accept json
// @Produce json
// @Param request body services.ClassCreateRequest true "Class"
// @Success 201 {object} models.Class
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Could not allocate a class code"
// @Router /classes [post]
func (h *ClassHandler) CreateClass(c *gin.Context) {
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ClassCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating class", "name", req.Name)

	class, err := h.classService.Create(c.Request.Context(), teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, class)
}

// ListClasses lists the teacher's classes with member counts
// @Summary List classes
// @Tags classes
// @Produce json
// @Success 200 {array} models.ClassSummary
// @Router /classes [get]
func (h *ClassHandler) ListClasses(c *gin.Context) {
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	classes, err := h.classService.List(c.Request.Context(), teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, classes)
}

// GetClass returns one class owned by the teacher
// @Summary Get class
// @Tags classes
// @Produce json
// @Param id path uint true "Class ID"
// @Success 200 {object} models.ClassSummary
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /classes/{id} [get]
func (h *ClassHandler) GetClass(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	class, err := h.classService.Get(c.Request.Context(), id, teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, class)
}

// UpdateClass renames a class
// @Summary Rename class
// @Tags classes
// @Accept json
// @Produce json
// @Param id path uint true "Class ID"
// @Param request body services.ClassUpdateRequest true "Class"
// @Success 200 {object} models.Class
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /classes/{id} [put]
func (h *ClassHandler) UpdateClass(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ClassUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating class", "class_id", id)

	class, err := h.classService.Update(c.Request.Context(), id, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, class)
}

// DeleteClass deletes a class and its memberships
// @Summary Delete class
// @Tags classes
// @Param id path uint true "Class ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /classes/{id} [delete]
func (h *ClassHandler) DeleteClass(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting class", "class_id", id)

	if err := h.classService.Delete(c.Request.Context(), id, teacherID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListMembers lists memberships of a class
// @Summary List class members
// @Tags classes
// @Produce json
// @Param id path uint true "Class ID"
// @Param status query string false "pending, approved or rejected"
// @Success 200 {array} models.ClassMembership
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /classes/{id}/members [get]
func (h *ClassHandler) ListMembers(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var status *models.MembershipStatus
	if raw := c.Query("status"); raw != "" {
		s := models.MembershipStatus(raw)
		switch s {
		case models.MembershipPending, models.MembershipApproved, models.MembershipRejected:
			status = &s
		default:
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid status",
				Details: "status must be pending, approved or rejected",
			})
			return
		}
	}

	members, err := h.classService.ListMembers(c.Request.Context(), id, teacherID, status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

// AddMember enrolls a student directly
// @Summary Add student to class
// @Tags classes
// @Accept json
// @Produce json
// @Param id path uint true "Class ID"
// @Param request body validator.AddStudentRequest true "Student"
// @Success 201 {object} models.ClassMembership
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /classes/{id}/members [post]
func (h *ClassHandler) AddMember(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req validator.AddStudentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Adding class member", "class_id", id, "student_id", req.StudentID)

	membership, err := h.classService.AddStudent(c.Request.Context(), id, teacherID, req.StudentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, membership)
}

// RemoveMember removes a student from a class
// @Summary Remove class member
// @Tags classes
// @Param id path uint true "Class ID"
// @Param student_id path string true "Student ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /classes/{id}/members/{student_id} [delete]
func (h *ClassHandler) RemoveMember(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	studentID := h.parseStringIDParam(c, "student_id")
	if studentID == "" {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Removing class member", "class_id", id, "student_id", studentID)

	if err := h.classService.RemoveMember(c.Request.Context(), id, teacherID, studentID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ApproveMembership approves a pending join request
// @Summary Approve membership
// @Tags memberships
// @Produce json
// @Param id path uint true "Membership ID"
// @Success 200 {object} models.ClassMembership
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Membership is not pending"
// @Router /memberships/{id}/approve [post]
func (h *ClassHandler) ApproveMembership(c *gin.Context) {
	h.decideMembership(c, true)
}

// RejectMembership rejects a pending join request
// @Summary Reject membership
// @Tags memberships
// @Produce json
// @Param id path uint true "Membership ID"
// @Success 200 {object} models.ClassMembership
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Membership is not pending"
// @Router /memberships/{id}/reject [post]
func (h *ClassHandler) RejectMembership(c *gin.Context) {
	h.decideMembership(c, false)
}

func (h *ClassHandler) decideMembership(c *gin.Context, approve bool) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deciding membership", "membership_id", id, "approve", approve)

	var (
		membership *models.ClassMembership
		err        error
	)
	if approve {
		membership, err = h.classService.ApproveMembership(c.Request.Context(), id, teacherID)
	} else {
		membership, err = h.classService.RejectMembership(c.Request.Context(), id, teacherID)
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, membership)
}
