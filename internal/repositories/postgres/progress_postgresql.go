package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

type ProgressPostgreSQL struct {
	db *gorm.DB
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{db: db}
}

// ===== QUIZ ATTEMPTS =====

func (p *ProgressPostgreSQL) UpsertAttempts(ctx context.Context, attempts []*models.QuizAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	err := p.db.WithContext(ctx).
		Omit("Question").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"lesson_id", "selected_index", "answer_text", "is_correct", "attempted_at"}),
		}).
		Create(&attempts).Error
	return handleDBError(err, "upsert quiz attempts")
}

func (p *ProgressPostgreSQL) ListAttempts(ctx context.Context, filters repositories.AttemptFilters) ([]*models.QuizAttempt, error) {
	query := p.db.WithContext(ctx).
		Preload("Question").
		Where("quiz_attempts.student_id = ?", filters.StudentID)

	if filters.ModuleID != nil {
		query = query.
			Joins("JOIN lessons ON lessons.id = quiz_attempts.lesson_id").
			Where("lessons.module_id = ?", *filters.ModuleID)
	}
	if len(filters.LessonIDs) > 0 {
		query = query.Where("quiz_attempts.lesson_id IN ?", filters.LessonIDs)
	}
	if filters.Since != nil {
		query = query.Where("quiz_attempts.attempted_at >= ?", *filters.Since)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	attempts := []*models.QuizAttempt{}
	if err := query.Order("quiz_attempts.attempted_at DESC, quiz_attempts.id DESC").Find(&attempts).Error; err != nil {
		return nil, handleDBError(err, "list quiz attempts")
	}
	return attempts, nil
}

// ===== LESSON PROGRESS =====

func (p *ProgressPostgreSQL) UpsertLessonProgress(ctx context.Context, progress *models.LessonProgress) error {
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"completed", "completed_at", "updated_at"}),
		}).
		Create(progress).Error
	return handleDBError(err, "upsert lesson progress")
}

func (p *ProgressPostgreSQL) ListLessonProgress(ctx context.Context, studentID string, lessonIDs []uint) ([]*models.LessonProgress, error) {
	rows := []*models.LessonProgress{}
	if len(lessonIDs) == 0 {
		return rows, nil
	}
	err := p.db.WithContext(ctx).
		Where("student_id = ? AND lesson_id IN ?", studentID, lessonIDs).
		Find(&rows).Error
	if err != nil {
		return nil, handleDBError(err, "list lesson progress")
	}
	return rows, nil
}

func (p *ProgressPostgreSQL) CountCompletedLessons(ctx context.Context, studentID string, moduleID uint) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Model(&models.LessonProgress{}).
		Joins("JOIN lessons ON lessons.id = lesson_progress.lesson_id").
		Where("lesson_progress.student_id = ? AND lessons.module_id = ? AND lesson_progress.completed = ?", studentID, moduleID, true).
		Count(&count).Error
	if err != nil {
		return 0, handleDBError(err, "count completed lessons")
	}
	return count, nil
}

// ===== STUDENT MODULES =====

func (p *ProgressPostgreSQL) EnsureStudentModules(ctx context.Context, rows []*models.StudentModule) error {
	if len(rows) == 0 {
		return nil
	}
	err := p.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "module_id"}},
			DoNothing: true,
		}).
		CreateInBatches(rows, 200).Error
	return handleDBError(err, "ensure student modules")
}

func (p *ProgressPostgreSQL) GetStudentModule(ctx context.Context, studentID string, moduleID uint) (*models.StudentModule, error) {
	var row models.StudentModule
	err := p.db.WithContext(ctx).
		Where("student_id = ? AND module_id = ?", studentID, moduleID).
		First(&row).Error
	if err != nil {
		return nil, handleDBError(err, "get student module")
	}
	return &row, nil
}

// SaveStudentModule upserts progress and completed_at for (student, module)
func (p *ProgressPostgreSQL) SaveStudentModule(ctx context.Context, row *models.StudentModule) error {
	err := p.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "module_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"progress", "completed_at", "updated_at"}),
		}).
		Create(row).Error
	return handleDBError(err, "save student module")
}

func (p *ProgressPostgreSQL) ListStudentModules(ctx context.Context, filters repositories.StudentModuleFilters) ([]*models.StudentModule, error) {
	query := p.db.WithContext(ctx).Preload("Module").Preload("Student")
	if len(filters.StudentIDs) > 0 {
		query = query.Where("student_id IN ?", filters.StudentIDs)
	}
	if len(filters.ModuleIDs) > 0 {
		query = query.Where("module_id IN ?", filters.ModuleIDs)
	}

	rows := []*models.StudentModule{}
	if err := query.Order("module_id ASC, student_id ASC").Find(&rows).Error; err != nil {
		return nil, handleDBError(err, "list student modules")
	}
	return rows, nil
}
