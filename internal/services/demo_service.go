package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/session"
)

// Demo student accounts start in this grade
const demoGradeLevel = 5

// Timestamped accounts left behind by the per-visitor demo flow
var disposableDemoEmail = regexp.MustCompile(`^demo-(student|teacher)-\d{10,13}@`)

type DemoConfig struct {
	EmailDomain string
	Password    string
	AdminKey    string
}

type demoService struct {
	repo     repositories.Repository
	sessions *session.Issuer
	logger   *slog.Logger
	config   DemoConfig
}

func NewDemoService(repo repositories.Repository, sessions *session.Issuer, logger *slog.Logger, config DemoConfig) DemoService {
	return &demoService{
		repo:     repo,
		sessions: sessions,
		logger:   logger,
		config:   config,
	}
}

// DemoEmail is the fixed address of the shared demo account for role
func DemoEmail(role models.UserRole, domain string) string {
	return fmt.Sprintf("demo-%s@%s", role, domain)
}

func (s *demoService) Login(ctx context.Context, role models.UserRole) (*DemoSession, error) {
	if !role.Valid() {
		return nil, ValidationErrors{fieldError("role", "must be student or teacher", role)}
	}

	identity, err := s.demoIdentity(ctx, role)
	if err != nil {
		return nil, err
	}

	user, err := s.demoUser(ctx, identity, role)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.sessions.Issue(identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Demo session issued", "user_id", user.ID, "role", role)
	return &DemoSession{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *demoService) demoIdentity(ctx context.Context, role models.UserRole) (*models.Identity, error) {
	email := DemoEmail(role, s.config.EmailDomain)

	identity, err := s.repo.Identity().GetByEmail(ctx, email)
	if err == nil {
		identity.IsDemo = true
		return identity, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up demo identity: %w", err)
	}

	draft := &models.Identity{
		Name:        "demo-" + string(role),
		Email:       email,
		DisplayName: demoName(role),
		Metadata: map[string]string{
			models.MetadataFullName: demoName(role),
			models.MetadataRole:     string(role),
		},
		IsDemo: true,
	}
	if role == models.RoleStudent {
		draft.Metadata[models.MetadataGradeLevel] = strconv.Itoa(demoGradeLevel)
	}

	created, err := s.repo.Identity().Create(ctx, draft, s.config.Password)
	if err != nil {
		// Another request may have created it first
		existing, getErr := s.repo.Identity().GetByEmail(ctx, email)
		if getErr != nil {
			return nil, fmt.Errorf("failed to create demo identity: %w", err)
		}
		created = existing
	} else {
		s.logger.Info("Demo identity created", "identity_id", created.ID, "role", role)
	}
	created.IsDemo = true
	return created, nil
}

func (s *demoService) demoUser(ctx context.Context, identity *models.Identity, role models.UserRole) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, identity.ID)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get demo user: %w", err)
	}

	user = &models.User{
		ID:       identity.ID,
		Email:    strings.ToLower(identity.Email),
		FullName: demoName(role),
		Role:     role,
		IsDemo:   true,
	}
	if role == models.RoleStudent {
		grade := demoGradeLevel
		user.GradeLevel = &grade
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to create demo user: %w", err)
		}
		return s.repo.User().GetByID(ctx, identity.ID)
	}
	return user, nil
}

// Cleanup deletes the timestamped demo accounts and their application data
func (s *demoService) Cleanup(ctx context.Context, adminKey string) (*CleanupResponse, error) {
	if s.config.AdminKey == "" || subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.config.AdminKey)) != 1 {
		return nil, ErrInvalidAdminKey
	}

	identities, err := s.repo.Identity().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}

	deleted := 0
	for _, identity := range identities {
		if !disposableDemoEmail.MatchString(strings.ToLower(identity.Email)) {
			continue
		}
		if err := s.repo.User().Delete(ctx, identity.ID); err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to delete demo user %s: %w", identity.ID, err)
		}
		if err := s.repo.Identity().Delete(ctx, identity.ID); err != nil && !repositories.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to delete demo identity %s: %w", identity.ID, err)
		}
		deleted++
	}

	s.logger.Info("Demo accounts cleaned up", "deleted", deleted, "scanned", len(identities))
	return &CleanupResponse{Deleted: deleted}, nil
}

func demoName(role models.UserRole) string {
	if role == models.RoleTeacher {
		return "Demo Teacher"
	}
	return "Demo Student"
}
