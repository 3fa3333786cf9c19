package repositories

import (
	"context"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

type ClassRepository interface {
	Create(ctx context.Context, class *models.Class) error
	GetByID(ctx context.Context, id uint) (*models.Class, error)
	GetByCode(ctx context.Context, code string) (*models.Class, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Class, error)
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id uint) error

	ExistsByCode(ctx context.Context, code string) (bool, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]*models.Class, error)
	ListByTeachers(ctx context.Context, teacherIDs []string) ([]*models.Class, error)
}

// MembershipCounts is the per-class membership tally
type MembershipCounts struct {
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
}

type MembershipRepository interface {
	// CreateIfAbsent inserts m unless a row for (class, student) exists.
	// created is false when the insert was skipped.
	CreateIfAbsent(ctx context.Context, m *models.ClassMembership) (created bool, err error)

	GetByID(ctx context.Context, id uint) (*models.ClassMembership, error)
	Get(ctx context.Context, classID uint, studentID string) (*models.ClassMembership, error)
	Update(ctx context.Context, m *models.ClassMembership) error
	Delete(ctx context.Context, classID uint, studentID string) error

	// ListByClass preloads Student
	ListByClass(ctx context.Context, classID uint, filters MembershipFilters) ([]*models.ClassMembership, error)
	// ListByStudent preloads Class and its Teacher
	ListByStudent(ctx context.Context, studentID string) ([]*models.ClassMembership, error)

	ApprovedStudentIDs(ctx context.Context, classIDs []uint) ([]string, error)
	ApprovedClassIDs(ctx context.Context, studentID string) ([]uint, error)
	CountByClass(ctx context.Context, classIDs []uint) (map[uint]MembershipCounts, error)
}
