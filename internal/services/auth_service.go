package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type authService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAuthService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) AuthService {
	return &authService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ResolveLogin finds or creates the application user for identity.
// Identities without a complete profile get profile_required with the fields already known.
func (s *authService) ResolveLogin(ctx context.Context, identity *models.Identity, req *LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByID(ctx, identity.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user != nil && err == nil {
		if err := checkIntendedRole(user.Role, req.IntendedRole); err != nil {
			return nil, err
		}
		return &LoginResponse{Status: LoginOK, User: user}, nil
	}

	draft := profileFromMetadata(identity)
	if draft.Role != nil {
		if err := checkIntendedRole(*draft.Role, req.IntendedRole); err != nil {
			return nil, err
		}
	}

	if !profileComplete(draft) {
		// Pre-fill the form, the role still has to be confirmed by the user
		if draft.Role == nil && req.IntendedRole != nil {
			role := *req.IntendedRole
			draft.Role = &role
		}
		s.logger.Info("Profile required", "identity_id", identity.ID)
		return &LoginResponse{Status: LoginProfileRequired, Profile: draft}, nil
	}

	user, err = s.createUser(ctx, identity, draft.FullName, *draft.Role, draft.GradeLevel)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Status: LoginOK, User: user}, nil
}

func (s *authService) CompleteProfile(ctx context.Context, identity *models.Identity, req *CompleteProfileRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Role == models.RoleStudent && req.GradeLevel == nil {
		return nil, ValidationErrors{fieldError("grade_level", "is required for students", nil)}
	}
	gradeLevel := req.GradeLevel
	if req.Role != models.RoleStudent {
		gradeLevel = nil
	}

	user, err := s.repo.User().GetByID(ctx, identity.ID)
	switch {
	case err == nil:
		if user.Role != req.Role {
			return nil, NewBusinessRuleError(RuleRoleImmutable, "The account role cannot be changed", map[string]interface{}{
				"role":      user.Role,
				"requested": req.Role,
			})
		}
		user.FullName = req.FullName
		user.GradeLevel = gradeLevel
		if err := s.repo.User().Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
	case repositories.IsNotFoundError(err):
		user, err = s.createUser(ctx, identity, req.FullName, req.Role, gradeLevel)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Write-back failures are logged only, the user row is already saved
	if err := s.repo.Identity().UpdateMetadata(ctx, identity.ID, profileMetadata(user)); err != nil {
		s.logger.Warn("Failed to write profile to identity provider", "identity_id", identity.ID, "error", err)
	}

	s.logger.Info("Profile completed", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *authService) Me(ctx context.Context, identity *models.Identity) (*MeResponse, error) {
	user, err := s.repo.User().GetByID(ctx, identity.ID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return &MeResponse{Identity: identity}, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &MeResponse{Identity: identity, User: user, ProfileComplete: true}, nil
}

func (s *authService) createUser(ctx context.Context, identity *models.Identity, fullName string, role models.UserRole, gradeLevel *int) (*models.User, error) {
	user := &models.User{
		ID:         identity.ID,
		Email:      strings.ToLower(identity.Email),
		FullName:   fullName,
		Role:       role,
		GradeLevel: gradeLevel,
		IsDemo:     identity.IsDemo,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// A concurrent login created the row first
		existing, getErr := s.repo.User().GetByID(ctx, identity.ID)
		if getErr != nil {
			return nil, NewConflictError(RuleEmailInUse, "This email is already registered to another account", map[string]interface{}{
				"email": user.Email,
			})
		}
		return existing, nil
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func checkIntendedRole(registered models.UserRole, intended *models.UserRole) error {
	if intended == nil || *intended == registered {
		return nil
	}
	return &RoleMismatchError{Registered: string(registered), Intended: string(*intended)}
}

// profileFromMetadata reads the profile fields stored with the identity provider
func profileFromMetadata(identity *models.Identity) *ProfileDraft {
	draft := &ProfileDraft{
		Email:    strings.ToLower(identity.Email),
		FullName: strings.TrimSpace(identity.Metadata[models.MetadataFullName]),
	}
	if draft.FullName == "" {
		draft.FullName = strings.TrimSpace(identity.DisplayName)
	}
	if role := models.UserRole(strings.ToLower(identity.Metadata[models.MetadataRole])); role.Valid() {
		draft.Role = &role
	}
	if raw := strings.TrimSpace(identity.Metadata[models.MetadataGradeLevel]); raw != "" {
		if level, err := strconv.Atoi(raw); err == nil && level >= validator.MinGradeLevel && level <= validator.MaxGradeLevel {
			draft.GradeLevel = &level
		}
	}
	return draft
}

func profileComplete(draft *ProfileDraft) bool {
	if draft.FullName == "" || draft.Role == nil {
		return false
	}
	if *draft.Role == models.RoleStudent {
		return draft.GradeLevel != nil
	}
	draft.GradeLevel = nil
	return true
}

func profileMetadata(user *models.User) map[string]string {
	md := map[string]string{
		models.MetadataFullName: user.FullName,
		models.MetadataRole:     string(user.Role),
	}
	if user.GradeLevel != nil {
		md[models.MetadataGradeLevel] = strconv.Itoa(*user.GradeLevel)
	}
	return md
}
