package casdoor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// Property key marking identities created by the demo login
const propertyIsDemo = "is_demo"

type IdentityCasdoor struct {
	client *casdoorsdk.Client
	cache  *cache.CacheHelper
	config CasdoorConfig
}

func NewIdentityCasdoor(config CasdoorConfig, cm *cache.CacheManager) repositories.IdentityRepository {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &IdentityCasdoor{
		client: client,
		cache:  cm.User,
		config: config,
	}
}

// ===== CONVERSION =====

// toIdentity maps a Casdoor user onto an Identity. Role metadata falls back to Casdoor roles.
func toIdentity(u *casdoorsdk.User) *models.Identity {
	if u == nil {
		return nil
	}

	metadata := make(map[string]string, len(u.Properties)+1)
	for k, v := range u.Properties {
		metadata[k] = v
	}
	if metadata[models.MetadataRole] == "" {
		if role := roleFromCasdoor(u.Roles); role != "" {
			metadata[models.MetadataRole] = string(role)
		}
	}
	if metadata[models.MetadataFullName] == "" && u.DisplayName != "" {
		metadata[models.MetadataFullName] = u.DisplayName
	}

	id := u.Id
	if id == "" {
		id = u.Owner + "/" + u.Name
	}

	return &models.Identity{
		ID:          id,
		Name:        u.Name,
		Email:       strings.ToLower(u.Email),
		DisplayName: u.DisplayName,
		Metadata:    metadata,
		IsDemo:      metadata[propertyIsDemo] == "true",
	}
}

// roleFromCasdoor picks the first role that maps onto an application role
func roleFromCasdoor(roles []*casdoorsdk.Role) models.UserRole {
	for _, r := range roles {
		if r == nil {
			continue
		}
		switch strings.ToLower(r.Name) {
		case "teacher", "instructor":
			return models.RoleTeacher
		case "student":
			return models.RoleStudent
		}
	}
	return ""
}

// userName derives a Casdoor login name from an email address
func userName(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	return strings.NewReplacer(".", "-", "+", "-").Replace(local)
}

// ===== TOKEN =====

func (c *IdentityCasdoor) ParseToken(token string) (*models.Identity, error) {
	claims, err := c.client.ParseJwtToken(token)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Casdoor token: %w", err)
	}
	return toIdentity(&claims.User), nil
}

// ===== READS =====

func (c *IdentityCasdoor) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	var identity models.Identity
	err := c.cache.CacheOrExecute(ctx, "id:"+id, &identity, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		u, err := c.client.GetUserByUserId(id)
		if err != nil {
			return nil, fmt.Errorf("failed to get user from Casdoor: %w", err)
		}
		if u == nil {
			return nil, fmt.Errorf("identity %s: %w", id, repositories.ErrNotFound)
		}
		return toIdentity(u), nil
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *IdentityCasdoor) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var identity models.Identity
	err := c.cache.CacheOrExecute(ctx, "email:"+email, &identity, cache.UserCacheConfig.TTL, func() (interface{}, error) {
		u, err := c.client.GetUserByEmail(email)
		if err != nil {
			return nil, fmt.Errorf("failed to get user by email from Casdoor: %w", err)
		}
		if u == nil || u.Name == "" {
			return nil, fmt.Errorf("identity %s: %w", email, repositories.ErrNotFound)
		}
		return toIdentity(u), nil
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func (c *IdentityCasdoor) List(ctx context.Context) ([]*models.Identity, error) {
	users, err := c.client.GetUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to list users from Casdoor: %w", err)
	}
	identities := make([]*models.Identity, 0, len(users))
	for _, u := range users {
		if identity := toIdentity(u); identity != nil {
			identities = append(identities, identity)
		}
	}
	return identities, nil
}

// ===== WRITES =====

func (c *IdentityCasdoor) Create(ctx context.Context, identity *models.Identity, password string) (*models.Identity, error) {
	properties := make(map[string]string, len(identity.Metadata)+1)
	for k, v := range identity.Metadata {
		properties[k] = v
	}
	if identity.IsDemo {
		properties[propertyIsDemo] = "true"
	}

	name := identity.Name
	if name == "" {
		name = userName(identity.Email)
	}

	ok, err := c.client.AddUser(&casdoorsdk.User{
		Owner:       c.config.OrganizationName,
		Name:        name,
		Type:        "normal-user",
		DisplayName: identity.DisplayName,
		Email:       strings.ToLower(identity.Email),
		Password:    password,
		Properties:  properties,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Casdoor user: %w", err)
	}
	if !ok {
		return nil, errors.New("casdoor rejected user creation")
	}

	// Casdoor assigns the id, read it back
	u, err := c.client.GetUser(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read created Casdoor user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("created identity %s: %w", name, repositories.ErrNotFound)
	}
	return toIdentity(u), nil
}

// UpdateMetadata merges metadata into the user's Casdoor properties
func (c *IdentityCasdoor) UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error {
	u, err := c.client.GetUserByUserId(id)
	if err != nil {
		return fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if u == nil {
		return fmt.Errorf("identity %s: %w", id, repositories.ErrNotFound)
	}

	if u.Properties == nil {
		u.Properties = make(map[string]string, len(metadata))
	}
	for k, v := range metadata {
		u.Properties[k] = v
	}
	if name := metadata[models.MetadataFullName]; name != "" {
		u.DisplayName = name
	}

	if _, err := c.client.UpdateUser(u); err != nil {
		return fmt.Errorf("failed to update Casdoor user: %w", err)
	}

	c.forget(ctx, id, u.Email)
	return nil
}

func (c *IdentityCasdoor) Delete(ctx context.Context, id string) error {
	u, err := c.client.GetUserByUserId(id)
	if err != nil {
		return fmt.Errorf("failed to get user from Casdoor: %w", err)
	}
	if u == nil {
		return fmt.Errorf("identity %s: %w", id, repositories.ErrNotFound)
	}

	if _, err := c.client.DeleteUser(u); err != nil {
		return fmt.Errorf("failed to delete Casdoor user: %w", err)
	}

	c.forget(ctx, id, u.Email)
	return nil
}

func (c *IdentityCasdoor) forget(ctx context.Context, id, email string) {
	cache.SafeDelete(ctx, c.cache, "id:"+id, "email:"+strings.ToLower(email))
}
