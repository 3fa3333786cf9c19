package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type StudentHandler struct {
	BaseHandler
	classService    services.ClassService
	progressService services.ProgressService
}

func NewStudentHandler(classService services.ClassService, progressService services.ProgressService, logger utils.Logger) *StudentHandler {
	return &StudentHandler{
		BaseHandler:     NewBaseHandler(logger),
		classService:    classService,
		progressService: progressService,
	}
}

// ===== CLASSES =====

// ListMyClasses lists the student's memberships
// @Summary List my classes
// @Tags students
// @Produce json
// @Success 200 {array} models.ClassMembership
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Router /students/me/classes [get]
func (h *StudentHandler) ListMyClasses(c *gin.Context) {
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	memberships, err := h.classService.ListStudentClasses(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, memberships)
}

// JoinClass requests membership with a class code
// @Summary Join class by code
// @Tags students
// @Accept json
// @Produce json
// @Param request body validator.JoinClassRequest true "Class code"
// @Success 201 {object} models.ClassMembership
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Unknown code"
// @Failure 409 {object} ErrorResponse "Already pending or a member"
// @Router /students/me/classes/join [post]
func (h *StudentHandler) JoinClass(c *gin.Context) {
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req validator.JoinClassRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Joining class by code")

	membership, err := h.classService.JoinByCode(c.Request.Context(), studentID, req.Code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, membership)
}

// RequestToJoin requests membership of a class found in the teacher directory
// @Summary Request to join class
// @Tags students
// @Produce json
// @Param id path uint true "Class ID"
// @Success 201 {object} models.ClassMembership
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Already pending or a member"
// @Router /students/me/classes/{id}/request [post]
func (h *StudentHandler) RequestToJoin(c *gin.Context) {
	classID := h.parseIDParam(c, "id")
	if classID == 0 {
		return
	}
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Requesting to join class", "class_id", classID)

	membership, err := h.classService.RequestToJoin(c.Request.Context(), studentID, classID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, membership)
}

// ===== MODULES AND LESSONS =====

// ListMyModules lists assigned modules with progress, soonest due first
// @Summary List my modules
// @Tags students
// @Produce json
// @Success 200 {array} models.StudentModuleView
// @Router /students/me/modules [get]
func (h *StudentHandler) ListMyModules(c *gin.Context) {
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	modules, err := h.progressService.ListStudentModules(c.Request.Context(), studentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, modules)
}

// GetMyModule returns an assigned module with lesson completion
// @Summary Get my module
// @Tags students
// @Produce json
// @Param id path uint true "Module ID"
// @Success 200 {object} models.StudentModuleDetail
// @Failure 403 {object} ErrorResponse "Module not assigned"
// @Failure 404 {object} ErrorResponse
// @Router /students/me/modules/{id} [get]
func (h *StudentHandler) GetMyModule(c *gin.Context) {
	moduleID := h.parseIDParam(c, "id")
	if moduleID == 0 {
		return
	}
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	module, err := h.progressService.GetStudentModule(c.Request.Context(), studentID, moduleID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, module)
}

// GetMyLesson returns a lesson with its questions, answers hidden
// @Summary Get my lesson
// @Tags students
// @Produce json
// @Param id path uint true "Lesson ID"
// @Success 200 {object} models.StudentLessonView
// @Failure 403 {object} ErrorResponse "Module not assigned"
// @Failure 404 {object} ErrorResponse
// @Router /students/me/lessons/{id} [get]
func (h *StudentHandler) GetMyLesson(c *gin.Context) {
	lessonID := h.parseIDParam(c, "id")
	if lessonID == 0 {
		return
	}
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	lesson, err := h.progressService.GetStudentLesson(c.Request.Context(), studentID, lessonID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// SubmitQuiz grades a quiz and records lesson and module progress
// @Summary Submit quiz
// @Description Every question of the lesson must be answered. The lesson completes when every multiple choice answer is correct.
// @Tags students
// @Accept json
// @Produce json
// @Param id path uint true "Lesson ID"
// @Param request body services.SubmitQuizRequest true "Answers"
// @Success 200 {object} models.QuizResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Module not assigned"
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Lesson has no quiz"
// @Router /students/me/lessons/{id}/quiz [post]
func (h *StudentHandler) SubmitQuiz(c *gin.Context) {
	lessonID := h.parseIDParam(c, "id")
	if lessonID == 0 {
		return
	}
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	var req services.SubmitQuizRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting quiz", "lesson_id", lessonID, "answers", len(req.Answers))

	result, err := h.progressService.SubmitQuiz(c.Request.Context(), studentID, lessonID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CompleteLesson marks a lesson without a quiz as completed
// @Summary Complete lesson
// @Tags students
// @Produce json
// @Param id path uint true "Lesson ID"
// @Success 200 {object} services.LessonCompletion
// @Failure 403 {object} ErrorResponse "Module not assigned"
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Lesson has a quiz"
// @Router /students/me/lessons/{id}/complete [post]
func (h *StudentHandler) CompleteLesson(c *gin.Context) {
	lessonID := h.parseIDParam(c, "id")
	if lessonID == 0 {
		return
	}
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Completing lesson", "lesson_id", lessonID)

	completion, err := h.progressService.CompleteLesson(c.Request.Context(), studentID, lessonID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, completion)
}

// ListMyAttempts lists quiz attempts, optionally for one lesson
// @Summary List my quiz attempts
// @Tags students
// @Produce json
// @Param lesson_id query uint false "Lesson ID"
// @Success 200 {array} models.QuizAttempt
// @Failure 400 {object} ErrorResponse
// @Router /students/me/attempts [get]
func (h *StudentHandler) ListMyAttempts(c *gin.Context) {
	studentID, ok := h.getUserID(c)
	if !ok {
		return
	}

	lessonID, ok := h.parseUintQueryPtr(c, "lesson_id")
	if !ok {
		return
	}

	attempts, err := h.progressService.ListAttempts(c.Request.Context(), studentID, lessonID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}
