package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/session"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

// Context keys set by AuthMiddleware
const (
	ContextIdentity  = "identity"
	ContextUserID    = "user_id"
	ContextUser      = "user"
	ContextUserRole  = "user_role"
	ContextUserEmail = "user_email"
)

// CasdoorAuthMiddleware authenticates Casdoor-issued JWTs and locally issued demo session tokens
type CasdoorAuthMiddleware struct {
	identities repositories.IdentityRepository
	users      repositories.UserRepository
	sessions   *session.Issuer
	logger     utils.Logger
}

func NewCasdoorAuthMiddleware(
	identities repositories.IdentityRepository,
	users repositories.UserRepository,
	sessions *session.Issuer,
	logger utils.Logger,
) *CasdoorAuthMiddleware {
	return &CasdoorAuthMiddleware{
		identities: identities,
		users:      users,
		sessions:   sessions,
		logger:     logger,
	}
}

// AuthMiddleware rejects requests without a valid bearer token. The application user and role
// are only set once the identity has completed its profile.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header missing")
			return
		}

		tokenParts := strings.Fields(authHeader)
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		identity, err := cam.parseToken(tokenParts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(ContextIdentity, identity)
		c.Set(ContextUserID, identity.ID)
		c.Set(ContextUserEmail, identity.Email)

		user, err := cam.users.GetByID(c.Request.Context(), identity.ID)
		switch {
		case err == nil:
			c.Set(ContextUser, user)
			c.Set(ContextUserRole, user.Role)
		case repositories.IsNotFoundError(err):
			// profile not completed yet
		default:
			utils.FromContext(c.Request.Context(), cam.logger).Error("Failed to load user for identity",
				"user_id", identity.ID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
				Message: "Internal server error",
			})
			return
		}

		c.Next()
	}
}

// parseToken tries the local session issuer first, then the identity provider
func (cam *CasdoorAuthMiddleware) parseToken(token string) (*models.Identity, error) {
	if cam.sessions != nil {
		if identity, err := cam.sessions.Parse(token); err == nil {
			return identity, nil
		}
	}
	return cam.identities.ParseToken(token)
}

// RequireRoleMiddleware answers 403 unless the user has one of requiredRoles
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetUserRoleFromContext(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Profile required",
				Details: "complete your profile before using this endpoint",
			})
			return
		}

		for _, requiredRole := range requiredRoles {
			if role == requiredRole {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
			Details: fmt.Sprintf("required role: %v", requiredRoles),
		})
	}
}

func abortUnauthorized(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
		Message: "Unauthorized",
		Details: details,
	})
}

// GetIdentityFromContext extracts the authenticated identity from Gin context
func GetIdentityFromContext(c *gin.Context) (*models.Identity, error) {
	identity, exists := c.Get(ContextIdentity)
	if !exists {
		return nil, fmt.Errorf("identity not found in context")
	}

	model, ok := identity.(*models.Identity)
	if !ok {
		return nil, fmt.Errorf("invalid identity type in context")
	}

	return model, nil
}

// GetUserFromContext extracts user from Gin context
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	user, exists := c.Get(ContextUser)
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}

	userModel, ok := user.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}

	return userModel, nil
}

// GetUserIDFromContext extracts user ID from Gin context
func GetUserIDFromContext(c *gin.Context) (string, error) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}

	id, ok := userID.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type in context")
	}

	return id, nil
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get(ContextUserRole)
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
