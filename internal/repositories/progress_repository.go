package repositories

import (
	"context"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// ProgressRepository holds quiz attempts, lesson completion and derived module progress
type ProgressRepository interface {
	// UpsertAttempts keeps one row per (student, question), the latest submission wins
	UpsertAttempts(ctx context.Context, attempts []*models.QuizAttempt) error
	// ListAttempts preloads Question, newest first
	ListAttempts(ctx context.Context, filters AttemptFilters) ([]*models.QuizAttempt, error)

	UpsertLessonProgress(ctx context.Context, progress *models.LessonProgress) error
	ListLessonProgress(ctx context.Context, studentID string, lessonIDs []uint) ([]*models.LessonProgress, error)
	CountCompletedLessons(ctx context.Context, studentID string, moduleID uint) (int64, error)

	// EnsureStudentModules inserts the rows that do not exist yet and leaves the others untouched
	EnsureStudentModules(ctx context.Context, rows []*models.StudentModule) error
	GetStudentModule(ctx context.Context, studentID string, moduleID uint) (*models.StudentModule, error)
	SaveStudentModule(ctx context.Context, row *models.StudentModule) error
	// ListStudentModules preloads Module and Student
	ListStudentModules(ctx context.Context, filters StudentModuleFilters) ([]*models.StudentModule, error)
}
