package repositories

import (
	"context"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// ModuleRepository for teacher-authored modules
type ModuleRepository interface {
	Create(ctx context.Context, module *models.Module) error
	GetByID(ctx context.Context, id uint) (*models.Module, error)
	// GetByIDWithLessons loads lessons and their questions, both by order_index
	GetByIDWithLessons(ctx context.Context, id uint) (*models.Module, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Module, error)
	Update(ctx context.Context, module *models.Module) error
	Delete(ctx context.Context, id uint) error

	List(ctx context.Context, filters ModuleFilters) ([]*models.Module, int64, error)
}

type LessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	GetByID(ctx context.Context, id uint) (*models.Lesson, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Lesson, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id uint) error

	// ListByModule preloads questions so callers can tell quiz lessons apart
	ListByModule(ctx context.Context, moduleID uint) ([]*models.Lesson, error)
	CountByModule(ctx context.Context, moduleID uint) (int64, error)
	CountByModules(ctx context.Context, moduleIDs []uint) (map[uint]int64, error)
	NextOrderIndex(ctx context.Context, moduleID uint) (int, error)
	UpdateOrder(ctx context.Context, moduleID uint, orders []LessonOrder) error
}

// QuestionRepository for quiz questions
type QuestionRepository interface {
	Create(ctx context.Context, question *models.QuizQuestion) error
	GetByID(ctx context.Context, id uint) (*models.QuizQuestion, error)
	Update(ctx context.Context, question *models.QuizQuestion) error
	Delete(ctx context.Context, id uint) error

	ListByLesson(ctx context.Context, lessonID uint) ([]*models.QuizQuestion, error)
	NextOrderIndex(ctx context.Context, lessonID uint) (int, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.ModuleAssignment) error
	UpdateDueDate(ctx context.Context, id uint, dueDate *time.Time) error
	DeleteByIDs(ctx context.Context, ids []uint) error

	ListByModule(ctx context.Context, moduleID uint) ([]*models.ModuleAssignment, error)
	ListByClass(ctx context.Context, classID uint) ([]*models.ModuleAssignment, error)
	ListByStudents(ctx context.Context, studentIDs []string) ([]*models.ModuleAssignment, error)

	// ListForStudent returns one row per module assigned to the student directly
	// or through classIDs, with the earliest due date
	ListForStudent(ctx context.Context, studentID string, classIDs []uint) ([]StudentAssignment, error)
}
