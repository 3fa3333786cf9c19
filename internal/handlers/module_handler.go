package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

// ModuleHandler serves module, lesson and quiz question authoring
type ModuleHandler struct {
	BaseHandler
	moduleService services.ModuleService
}

func NewModuleHandler(moduleService services.ModuleService, logger utils.Logger) *ModuleHandler {
	return &ModuleHandler{
		BaseHandler:   NewBaseHandler(logger),
		moduleService: moduleService,
	}
}

// ===== MODULES =====

// CreateModule creates a draft module
// @Summary Create module
// @Tags modules
// @Accept json
// @Produce json
// @Param request body services.ModuleCreateRequest true "Module"
// @Success 201 {object} models.Module
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /modules [post]
func (h *ModuleHandler) CreateModule(c *gin.Context) {
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ModuleCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating module", "title", req.Title)

	module, err := h.moduleService.Create(c.Request.Context(), teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, module)
}

// ListModules lists the teacher's modules
// @Summary List modules
// @Tags modules
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 20, max: 100)"
// @Param status query string false "draft or published"
// @Param subject query string false "Subject"
// @Param q query string false "Title search"
// @Param sort_by query string false "created_at, title or updated_at"
// @Param sort_order query string false "asc or desc"
// @Success 200 {object} services.ModuleListResponse
// @Failure 400 {object} ErrorResponse
// @Router /modules [get]
func (h *ModuleHandler) ListModules(c *gin.Context) {
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	filters, ok := h.parseModuleFilters(c)
	if !ok {
		return
	}

	resp, err := h.moduleService.List(c.Request.Context(), teacherID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetModule returns a module with its ordered lessons and questions
// @Summary Get module
// @Tags modules
// @Produce json
// @Param id path uint true "Module ID"
// @Success 200 {object} models.Module
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id} [get]
func (h *ModuleHandler) GetModule(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	module, err := h.moduleService.Get(c.Request.Context(), id, teacherID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, module)
}

// UpdateModule updates module fields
// @Summary Update module
// @Tags modules
// @Accept json
// @Produce json
// @Param id path uint true "Module ID"
// @Param request body services.ModuleUpdateRequest true "Fields to change"
// @Success 200 {object} models.Module
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Publishing a module without lessons"
// @Router /modules/{id} [put]
func (h *ModuleHandler) UpdateModule(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ModuleUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating module", "module_id", id)

	module, err := h.moduleService.Update(c.Request.Context(), id, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, module)
}

// DeleteModule deletes a module with its lessons, questions and assignments
// @Summary Delete module
// @Tags modules
// @Param id path uint true "Module ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id} [delete]
func (h *ModuleHandler) DeleteModule(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting module", "module_id", id)

	if err := h.moduleService.Delete(c.Request.Context(), id, teacherID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== LESSONS =====

// AddLesson appends a lesson to a module
// @Summary Add lesson
// @Description order_index defaults to the end of the module
// @Tags lessons
// @Accept json
// @Produce json
// @Param id path uint true "Module ID"
// @Param request body services.LessonCreateRequest true "Lesson"
// @Success 201 {object} models.Lesson
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /modules/{id}/lessons [post]
func (h *ModuleHandler) AddLesson(c *gin.Context) {
	moduleID := h.parseIDParam(c, "id")
	if moduleID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.LessonCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Adding lesson", "module_id", moduleID)

	lesson, err := h.moduleService.AddLesson(c.Request.Context(), moduleID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lesson)
}

// ReorderLessons sets the lesson order of a module
// @Summary Reorder lessons
// @Tags lessons
// @Accept json
// @Produce json
// @Param id path uint true "Module ID"
// @Param request body services.ReorderLessonsRequest true "Every lesson id of the module, in the new order"
// @Success 200 {array} models.Lesson
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /modules/{id}/lessons/order [put]
func (h *ModuleHandler) ReorderLessons(c *gin.Context) {
	moduleID := h.parseIDParam(c, "id")
	if moduleID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.ReorderLessonsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Reordering lessons", "module_id", moduleID, "count", len(req.LessonIDs))

	lessons, err := h.moduleService.ReorderLessons(c.Request.Context(), moduleID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lessons)
}

// UpdateLesson updates lesson fields
// @Summary Update lesson
// @Tags lessons
// @Accept json
// @Produce json
// @Param id path uint true "Lesson ID"
// @Param request body services.LessonUpdateRequest true "Fields to change"
// @Success 200 {object} models.Lesson
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id} [put]
func (h *ModuleHandler) UpdateLesson(c *gin.Context) {
	lessonID := h.parseIDParam(c, "id")
	if lessonID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.LessonUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating lesson", "lesson_id", lessonID)

	lesson, err := h.moduleService.UpdateLesson(c.Request.Context(), lessonID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// DeleteLesson deletes a lesson and recomputes progress of students on the module
// @Summary Delete lesson
// @Tags lessons
// @Param id path uint true "Lesson ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id} [delete]
func (h *ModuleHandler) DeleteLesson(c *gin.Context) {
	lessonID := h.parseIDParam(c, "id")
	if lessonID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting lesson", "lesson_id", lessonID)

	if err := h.moduleService.DeleteLesson(c.Request.Context(), lessonID, teacherID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ===== QUESTIONS =====

// AddQuestion adds a quiz question to a lesson
// @Summary Add quiz question
// @Description multiple_choice needs options and correct_index, free_response needs correct_answer
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Lesson ID"
// @Param request body services.QuestionCreateRequest true "Question"
// @Success 201 {object} models.QuizQuestion
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /lessons/{id}/questions [post]
func (h *ModuleHandler) AddQuestion(c *gin.Context) {
	lessonID := h.parseIDParam(c, "id")
	if lessonID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.QuestionCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Adding question", "lesson_id", lessonID, "type", req.Type)

	question, err := h.moduleService.AddQuestion(c.Request.Context(), lessonID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// UpdateQuestion updates a quiz question
// @Summary Update quiz question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Question ID"
// @Param request body services.QuestionUpdateRequest true "Fields to change"
// @Success 200 {object} models.QuizQuestion
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [put]
func (h *ModuleHandler) UpdateQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.QuestionUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating question", "question_id", questionID)

	question, err := h.moduleService.UpdateQuestion(c.Request.Context(), questionID, teacherID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// DeleteQuestion deletes a quiz question
// @Summary Delete quiz question
// @Tags questions
// @Param id path uint true "Question ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /questions/{id} [delete]
func (h *ModuleHandler) DeleteQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}
	teacherID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", questionID)

	if err := h.moduleService.DeleteQuestion(c.Request.Context(), questionID, teacherID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *ModuleHandler) parseModuleFilters(c *gin.Context) (repositories.ModuleFilters, bool) {
	page := h.parseIntQuery(c, "page", 1)
	size := h.parseIntQuery(c, "size", 20)
	if page < 1 {
		page = 1
	}

	filters := repositories.ModuleFilters{
		Query:     strings.TrimSpace(c.Query("q")),
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if status := c.Query("status"); status != "" {
		moduleStatus := models.ModuleStatus(status)
		if moduleStatus != models.ModuleDraft && moduleStatus != models.ModulePublished {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid status",
				Details: "status must be draft or published",
			})
			return filters, false
		}
		filters.Status = &moduleStatus
	}

	if subject := c.Query("subject"); subject != "" {
		filters.Subject = &subject
	}

	return filters, true
}
