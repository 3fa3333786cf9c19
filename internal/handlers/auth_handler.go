package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

// AdminKeyHeader carries the demo cleanup key
const AdminKeyHeader = "X-Admin-Key"

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
	demoService services.DemoService
}

func NewAuthHandler(authService services.AuthService, demoService services.DemoService, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		authService: authService,
		demoService: demoService,
	}
}

// Login resolves the authenticated identity to an application user
// @Summary Resolve login
// @Description Creates the user from identity metadata when complete, otherwise reports the profile fields still needed. A role that contradicts intended_role is rejected.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.LoginRequest false "Intended role"
// @Success 200 {object} services.LoginResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse "Role mismatch"
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	identity, ok := h.getIdentity(c)
	if !ok {
		return
	}

	// The body is optional
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request body",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Resolving login")

	resp, err := h.authService.ResolveLogin(c.Request.Context(), identity, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CompleteProfile creates or updates the user's profile
// @Summary Complete profile
// @Description Stores full name, role and grade level, and writes them back to the identity provider
// @Tags auth
// @Accept json
// @Produce json
// @Param request body services.CompleteProfileRequest true "Profile"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /auth/profile [post]
func (h *AuthHandler) CompleteProfile(c *gin.Context) {
	identity, ok := h.getIdentity(c)
	if !ok {
		return
	}

	var req services.CompleteProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Completing profile", "role", req.Role)

	user, err := h.authService.CompleteProfile(c.Request.Context(), identity, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Me returns the authenticated identity and its profile
// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} services.MeResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := h.getIdentity(c)
	if !ok {
		return
	}

	resp, err := h.authService.Me(c.Request.Context(), identity)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DemoLogin issues a session for the shared demo account of a role
// @Summary Demo login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body validator.DemoLoginRequest true "Role"
// @Success 200 {object} services.DemoSession
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/demo [post]
func (h *AuthHandler) DemoLogin(c *gin.Context) {
	var req validator.DemoLoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Demo login", "role", req.Role)

	sess, err := h.demoService.Login(c.Request.Context(), req.Role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess)
}

// DemoCleanup deletes timestamped demo identities
// @Summary Clean up demo accounts
// @Tags auth
// @Produce json
// @Param X-Admin-Key header string true "Admin key"
// @Success 200 {object} services.CleanupResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/demo/cleanup [post]
func (h *AuthHandler) DemoCleanup(c *gin.Context) {
	h.LogRequest(c, "Cleaning up demo accounts")

	resp, err := h.demoService.Cleanup(c.Request.Context(), c.GetHeader(AdminKeyHeader))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
