package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

// SharedHelpers contains query fragments reused across repositories
type SharedHelpers struct {
	db *gorm.DB
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db}
}

var allowedSortColumns = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"id":           true,
	"title":        true,
	"status":       true,
	"subject":      true,
	"published_at": true,
	"name":         true,
}

// ApplyPaginationAndSort applies a whitelisted ORDER BY plus LIMIT/OFFSET
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}
	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	query = query.Order(sortBy + " " + sortOrder)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// ApplyModuleFilters narrows a module query
func (h *SharedHelpers) ApplyModuleFilters(query *gorm.DB, filters repositories.ModuleFilters) *gorm.DB {
	if filters.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filters.TeacherID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Subject != nil {
		query = query.Where("subject = ?", *filters.Subject)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + escapeLike(q) + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", like, like)
	}
	return query
}

// ApplyUserFilters narrows a user query
func (h *SharedHelpers) ApplyUserFilters(query *gorm.DB, filters repositories.UserFilters) *gorm.DB {
	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.IsDemo != nil {
		query = query.Where("is_demo = ?", *filters.IsDemo)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		like := "%" + escapeLike(q) + "%"
		query = query.Where("full_name ILIKE ? OR email ILIKE ?", like, like)
	}
	return query
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// handleDBError maps gorm errors onto repository errors
func handleDBError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, repositories.ErrDuplicate)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
