package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries the logging and error mapping shared by every handler
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	return utils.FromContext(c.Request.Context(), h.logger)
}

// LogRequest logs the start of a handler with the caller id attached
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "user_id", c.GetString("user_id"))
	h.requestLogger(c).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "user_id", c.GetString("user_id"))
	h.requestLogger(c).Error(msg, args...)
}

// ===== REQUEST HELPERS =====

// getUserID returns the authenticated user id, answering 401 when there is none
func (h *BaseHandler) getUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil || userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

func (h *BaseHandler) getIdentity(c *gin.Context) (*models.Identity, bool) {
	identity, err := GetIdentityFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return nil, false
	}
	return identity, true
}

// parseIDParam returns 0 after answering 400 when the path parameter is not a positive integer
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		details := "ID must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: details,
		})
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func (h *BaseHandler) parseUintQueryPtr(c *gin.Context, param string) (*uint, bool) {
	valueStr := c.Query(param)
	if valueStr == "" {
		return nil, true
	}
	value, err := strconv.ParseUint(valueStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: err.Error(),
		})
		return nil, false
	}
	id := uint(value)
	return &id, true
}

// bindJSON answers 400 when the body is not valid JSON for dest
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return false
	}
	return true
}

// ===== ERROR MAPPING =====

func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var businessRuleError *services.BusinessRuleError
	if errors.As(err, &businessRuleError) {
		status := http.StatusUnprocessableEntity
		if businessRuleError.Conflict {
			status = http.StatusConflict
		}
		c.JSON(status, ErrorResponse{
			Message: businessRuleError.Message,
			Details: map[string]interface{}{
				"rule":    businessRuleError.Rule,
				"context": businessRuleError.Context,
			},
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	var roleMismatch *services.RoleMismatchError
	if errors.As(err, &roleMismatch) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: roleMismatch.Error(),
			Details: map[string]interface{}{
				"registered_role": roleMismatch.Registered,
				"intended_role":   roleMismatch.Intended,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "User not found"})
	case errors.Is(err, services.ErrClassNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Class not found"})
	case errors.Is(err, services.ErrMembershipNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Membership not found"})
	case errors.Is(err, services.ErrModuleNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Module not found"})
	case errors.Is(err, services.ErrLessonNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Lesson not found"})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Question not found"})
	case errors.Is(err, services.ErrModuleNotAssigned):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: "Module is not assigned to you"})
	case errors.Is(err, services.ErrRoleMismatch):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})
	case errors.Is(err, services.ErrInvalidAdminKey):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Invalid admin key"})
	case errors.Is(err, services.ErrChatUnavailable):
		c.JSON(http.StatusServiceUnavailable, services.ChatResponse{Reply: services.FallbackReply, Fallback: true})
	case errors.Is(err, services.ErrChatFailed):
		h.LogError(c, err, "Chat completion failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Chat tutor request failed"})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
