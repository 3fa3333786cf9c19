package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

type AssignmentPostgreSQL struct {
	db *gorm.DB
}

func NewAssignmentPostgreSQL(db *gorm.DB) repositories.AssignmentRepository {
	return &AssignmentPostgreSQL{db: db}
}

func (a *AssignmentPostgreSQL) Create(ctx context.Context, assignment *models.ModuleAssignment) error {
	return handleDBError(a.db.WithContext(ctx).Omit("Module").Create(assignment).Error, "create assignment")
}

func (a *AssignmentPostgreSQL) UpdateDueDate(ctx context.Context, id uint, dueDate *time.Time) error {
	err := a.db.WithContext(ctx).
		Model(&models.ModuleAssignment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"due_date":   dueDate,
			"updated_at": time.Now().UTC(),
		}).Error
	return handleDBError(err, "update assignment due date")
}

func (a *AssignmentPostgreSQL) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return handleDBError(a.db.WithContext(ctx).Delete(&models.ModuleAssignment{}, ids).Error, "delete assignments")
}

func (a *AssignmentPostgreSQL) ListByModule(ctx context.Context, moduleID uint) ([]*models.ModuleAssignment, error) {
	assignments := []*models.ModuleAssignment{}
	err := a.db.WithContext(ctx).
		Where("module_id = ?", moduleID).
		Order("id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, handleDBError(err, "list module assignments")
	}
	return assignments, nil
}

func (a *AssignmentPostgreSQL) ListByClass(ctx context.Context, classID uint) ([]*models.ModuleAssignment, error) {
	assignments := []*models.ModuleAssignment{}
	err := a.db.WithContext(ctx).
		Preload("Module").
		Where("class_id = ?", classID).
		Order("id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, handleDBError(err, "list class assignments")
	}
	return assignments, nil
}

func (a *AssignmentPostgreSQL) ListByStudents(ctx context.Context, studentIDs []string) ([]*models.ModuleAssignment, error) {
	assignments := []*models.ModuleAssignment{}
	if len(studentIDs) == 0 {
		return assignments, nil
	}
	err := a.db.WithContext(ctx).
		Preload("Module").
		Where("student_id IN ?", studentIDs).
		Order("id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, handleDBError(err, "list student assignments")
	}
	return assignments, nil
}

func (a *AssignmentPostgreSQL) ListForStudent(ctx context.Context, studentID string, classIDs []uint) ([]repositories.StudentAssignment, error) {
	query := a.db.WithContext(ctx).
		Model(&models.ModuleAssignment{}).
		Select("module_id, MIN(due_date) AS due_date")
	if len(classIDs) > 0 {
		query = query.Where("student_id = ? OR class_id IN ?", studentID, classIDs)
	} else {
		query = query.Where("student_id = ?", studentID)
	}

	rows := []repositories.StudentAssignment{}
	if err := query.Group("module_id").Scan(&rows).Error; err != nil {
		return nil, handleDBError(err, "list assignments for student")
	}
	return rows, nil
}
