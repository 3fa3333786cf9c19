package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

type UserPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db, helpers: NewSharedHelpers(db)}
}

func (u *UserPostgreSQL) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	return handleDBError(u.db.WithContext(ctx).Create(user).Error, "create user")
}

func (u *UserPostgreSQL) Update(ctx context.Context, user *models.User) error {
	return handleDBError(u.db.WithContext(ctx).Save(user).Error, "update user")
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, handleDBError(err, "get user")
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := u.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, handleDBError(err, "get user by email")
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := []*models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	if err := u.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, handleDBError(err, "get users by IDs")
	}
	return users, nil
}

func (u *UserPostgreSQL) Search(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	query := u.helpers.ApplyUserFilters(u.db.WithContext(ctx).Model(&models.User{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count users")
	}

	users := []*models.User{}
	query = query.Order("full_name ASC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, handleDBError(err, "search users")
	}
	return users, total, nil
}

// Delete removes the user together with rows that only reference them by id.
// Memberships, classes and student modules go through ON DELETE CASCADE.
func (u *UserPostgreSQL) Delete(ctx context.Context, id string) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", id).Delete(&models.QuizAttempt{}).Error; err != nil {
			return handleDBError(err, "delete quiz attempts")
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.LessonProgress{}).Error; err != nil {
			return handleDBError(err, "delete lesson progress")
		}
		if err := tx.Where("student_id = ?", id).Delete(&models.ModuleAssignment{}).Error; err != nil {
			return handleDBError(err, "delete student assignments")
		}
		if err := tx.Where("teacher_id = ?", id).Delete(&models.Module{}).Error; err != nil {
			return handleDBError(err, "delete modules")
		}
		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return handleDBError(res.Error, "delete user")
		}
		if res.RowsAffected == 0 {
			return handleDBError(gorm.ErrRecordNotFound, "delete user")
		}
		return nil
	})
}
