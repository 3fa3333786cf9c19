package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

type ModulePostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewModulePostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.ModuleRepository {
	return &ModulePostgreSQL{db: db, helpers: NewSharedHelpers(db), cacheManager: cm}
}

func (m *ModulePostgreSQL) Create(ctx context.Context, module *models.Module) error {
	return handleDBError(m.db.WithContext(ctx).Omit(clause.Associations).Create(module).Error, "create module")
}

func (m *ModulePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Module, error) {
	var module models.Module
	if err := m.db.WithContext(ctx).First(&module, id).Error; err != nil {
		return nil, handleDBError(err, "get module")
	}
	return &module, nil
}

// GetByIDWithLessons returns the full module tree with caching
func (m *ModulePostgreSQL) GetByIDWithLessons(ctx context.Context, id uint) (*models.Module, error) {
	var module models.Module
	err := m.cacheManager.Module.CacheOrExecute(ctx, cache.ModuleKey(id), &module, cache.ModuleCacheConfig.TTL, func() (interface{}, error) {
		var row models.Module
		err := m.db.WithContext(ctx).
			Preload("Lessons", func(db *gorm.DB) *gorm.DB {
				return db.Order("order_index ASC, id ASC")
			}).
			Preload("Lessons.Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("order_index ASC, id ASC")
			}).
			First(&row, id).Error
		if err != nil {
			return nil, handleDBError(err, "get module with lessons")
		}
		return &row, nil
	})
	if err != nil {
		return nil, err
	}
	return &module, nil
}

func (m *ModulePostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Module, error) {
	modules := []*models.Module{}
	if len(ids) == 0 {
		return modules, nil
	}
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Order("title ASC").Find(&modules).Error; err != nil {
		return nil, handleDBError(err, "get modules by IDs")
	}
	return modules, nil
}

func (m *ModulePostgreSQL) Update(ctx context.Context, module *models.Module) error {
	return handleDBError(m.db.WithContext(ctx).Omit(clause.Associations).Save(module).Error, "update module")
}

// Delete removes the module; lessons, questions, assignments and student modules cascade
func (m *ModulePostgreSQL) Delete(ctx context.Context, id uint) error {
	res := m.db.WithContext(ctx).Delete(&models.Module{}, id)
	if res.Error != nil {
		return handleDBError(res.Error, "delete module")
	}
	if res.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete module")
	}
	return nil
}

func (m *ModulePostgreSQL) List(ctx context.Context, filters repositories.ModuleFilters) ([]*models.Module, int64, error) {
	query := m.helpers.ApplyModuleFilters(m.db.WithContext(ctx).Model(&models.Module{}), filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, handleDBError(err, "count modules")
	}

	modules := []*models.Module{}
	query = m.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&modules).Error; err != nil {
		return nil, 0, handleDBError(err, "list modules")
	}
	return modules, total, nil
}

// ===== LESSONS =====
// Lesson and question writes may run inside a transaction, callers drop the cached module tree after commit.

type LessonPostgreSQL struct {
	db *gorm.DB
}

func NewLessonPostgreSQL(db *gorm.DB) repositories.LessonRepository {
	return &LessonPostgreSQL{db: db}
}

func (l *LessonPostgreSQL) Create(ctx context.Context, lesson *models.Lesson) error {
	return handleDBError(l.db.WithContext(ctx).Omit(clause.Associations).Create(lesson).Error, "create lesson")
}

func (l *LessonPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	if err := l.db.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, handleDBError(err, "get lesson")
	}
	return &lesson, nil
}

func (l *LessonPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Lesson, error) {
	var lesson models.Lesson
	err := l.db.WithContext(ctx).
		Preload("Module").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		First(&lesson, id).Error
	if err != nil {
		return nil, handleDBError(err, "get lesson with questions")
	}
	return &lesson, nil
}

func (l *LessonPostgreSQL) Update(ctx context.Context, lesson *models.Lesson) error {
	return handleDBError(l.db.WithContext(ctx).Omit(clause.Associations).Save(lesson).Error, "update lesson")
}

func (l *LessonPostgreSQL) Delete(ctx context.Context, id uint) error {
	var lesson models.Lesson
	if err := l.db.WithContext(ctx).Select("id").First(&lesson, id).Error; err != nil {
		return handleDBError(err, "get lesson before delete")
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lesson_id = ?", id).Delete(&models.LessonProgress{}).Error; err != nil {
			return handleDBError(err, "delete lesson progress")
		}
		if err := tx.Where("lesson_id = ?", id).Delete(&models.QuizAttempt{}).Error; err != nil {
			return handleDBError(err, "delete lesson attempts")
		}
		if err := tx.Delete(&models.Lesson{}, id).Error; err != nil {
			return handleDBError(err, "delete lesson")
		}
		return nil
	})
}

func (l *LessonPostgreSQL) ListByModule(ctx context.Context, moduleID uint) ([]*models.Lesson, error) {
	lessons := []*models.Lesson{}
	err := l.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC, id ASC")
		}).
		Where("module_id = ?", moduleID).
		Order("order_index ASC, id ASC").
		Find(&lessons).Error
	if err != nil {
		return nil, handleDBError(err, "list lessons")
	}
	return lessons, nil
}

func (l *LessonPostgreSQL) CountByModule(ctx context.Context, moduleID uint) (int64, error) {
	var count int64
	if err := l.db.WithContext(ctx).Model(&models.Lesson{}).Where("module_id = ?", moduleID).Count(&count).Error; err != nil {
		return 0, handleDBError(err, "count lessons")
	}
	return count, nil
}

func (l *LessonPostgreSQL) CountByModules(ctx context.Context, moduleIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ModuleID uint
		Total    int64
	}
	err := l.db.WithContext(ctx).
		Model(&models.Lesson{}).
		Select("module_id, COUNT(*) AS total").
		Where("module_id IN ?", moduleIDs).
		Group("module_id").
		Scan(&rows).Error
	if err != nil {
		return nil, handleDBError(err, "count lessons by module")
	}
	for _, row := range rows {
		counts[row.ModuleID] = row.Total
	}
	return counts, nil
}

func (l *LessonPostgreSQL) NextOrderIndex(ctx context.Context, moduleID uint) (int, error) {
	var next int
	err := l.db.WithContext(ctx).
		Model(&models.Lesson{}).
		Select("COALESCE(MAX(order_index) + 1, 0)").
		Where("module_id = ?", moduleID).
		Scan(&next).Error
	if err != nil {
		return 0, handleDBError(err, "compute next lesson order")
	}
	return next, nil
}

// UpdateOrder rewrites order_index for the given lessons of moduleID
func (l *LessonPostgreSQL) UpdateOrder(ctx context.Context, moduleID uint, orders []repositories.LessonOrder) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range orders {
			res := tx.Model(&models.Lesson{}).
				Where("id = ? AND module_id = ?", o.LessonID, moduleID).
				Update("order_index", o.OrderIndex)
			if res.Error != nil {
				return handleDBError(res.Error, "reorder lessons")
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("lesson %d is not part of module %d: %w", o.LessonID, moduleID, repositories.ErrNotFound)
			}
		}
		return nil
	})
}

// ===== QUESTIONS =====

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.QuizQuestion) error {
	return handleDBError(q.db.WithContext(ctx).Create(question).Error, "create question")
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.QuizQuestion, error) {
	var question models.QuizQuestion
	if err := q.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, handleDBError(err, "get question")
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.QuizQuestion) error {
	return handleDBError(q.db.WithContext(ctx).Save(question).Error, "update question")
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	res := q.db.WithContext(ctx).Delete(&models.QuizQuestion{}, id)
	if res.Error != nil {
		return handleDBError(res.Error, "delete question")
	}
	if res.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete question")
	}
	return nil
}

func (q *QuestionPostgreSQL) ListByLesson(ctx context.Context, lessonID uint) ([]*models.QuizQuestion, error) {
	questions := []*models.QuizQuestion{}
	err := q.db.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("order_index ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, handleDBError(err, "list questions")
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) NextOrderIndex(ctx context.Context, lessonID uint) (int, error) {
	var next int
	err := q.db.WithContext(ctx).
		Model(&models.QuizQuestion{}).
		Select("COALESCE(MAX(order_index) + 1, 0)").
		Where("lesson_id = ?", lessonID).
		Scan(&next).Error
	if err != nil {
		return 0, handleDBError(err, "compute next question order")
	}
	return next, nil
}
