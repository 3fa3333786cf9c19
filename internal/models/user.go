package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
)

// Valid reports whether r is one of the application roles
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// User is the application-level profile for an authenticated identity.
// ID is the identity provider's user id.
type User struct {
	ID         string   `json:"id" gorm:"primaryKey;size:255"`
	Email      string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	FullName   string   `json:"full_name" gorm:"not null;size:100"`
	Role       UserRole `json:"role" gorm:"not null;size:20;index"`
	GradeLevel *int     `json:"grade_level,omitempty"`
	IsDemo     bool     `json:"is_demo" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Identity is an authenticated principal as known by the identity provider
type Identity struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	IsDemo      bool              `json:"is_demo"`
}

// Identity metadata keys shared with the identity provider
const (
	MetadataFullName   = "full_name"
	MetadataRole       = "role"
	MetadataGradeLevel = "grade_level"
)
