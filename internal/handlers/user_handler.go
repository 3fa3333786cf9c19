package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

// UserHandler serves the directories teachers and students browse
type UserHandler struct {
	BaseHandler
	classService services.ClassService
}

func NewUserHandler(classService services.ClassService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler:  NewBaseHandler(logger),
		classService: classService,
	}
}

// SearchStudents searches students by name or email
// @Summary Search students
// @Description Get a paginated list of students, for adding them to classes or assigning modules
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 25, max: 100)"
// @Param q query string false "Search query (name or email)"
// @Success 200 {object} services.StudentListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /users/students [get]
func (h *UserHandler) SearchStudents(c *gin.Context) {
	h.LogRequest(c, "Searching students")

	resp, err := h.classService.SearchStudents(c.Request.Context(), h.parseUserFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SearchTeachers lists teachers with their classes
// @Summary Search teachers
// @Tags users
// @Produce json
// @Param q query string false "Search query (name or email)"
// @Param size query int false "Maximum results (default: 20, max: 50)"
// @Success 200 {array} models.TeacherDirectoryEntry
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /teachers [get]
func (h *UserHandler) SearchTeachers(c *gin.Context) {
	h.LogRequest(c, "Searching teachers")

	query := strings.TrimSpace(c.Query("q"))
	teachers, err := h.classService.SearchTeachers(c.Request.Context(), query, h.parseIntQuery(c, "size", 20))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, teachers)
}

// TeacherClasses lists the classes a teacher runs
// @Summary List a teacher's classes
// @Tags users
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {array} models.Class
// @Failure 404 {object} ErrorResponse
// @Router /teachers/{id}/classes [get]
func (h *UserHandler) TeacherClasses(c *gin.Context) {
	teacherID := h.parseStringIDParam(c, "id")
	if teacherID == "" {
		return
	}

	classes, err := h.classService.TeacherClasses(c.Request.Context(), teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, classes)
}

func (h *UserHandler) parseUserFilters(c *gin.Context) repositories.UserFilters {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 25)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 25
	}

	return repositories.UserFilters{
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  size,
		Offset: (page - 1) * size,
	}
}
