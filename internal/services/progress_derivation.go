package services

import (
	"context"
	"fmt"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

// DeriveModuleProgress is completed/total lessons in [0,1]. A module without lessons has no progress.
func DeriveModuleProgress(completed, total int64) float64 {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 1
	}
	return float64(completed) / float64(total)
}

// applyModuleProgress writes progress into row and maintains completed_at.
// It reports whether the row became complete with this call.
func applyModuleProgress(row *models.StudentModule, progress float64, now time.Time) bool {
	row.Progress = progress
	if progress < 1 {
		row.CompletedAt = nil
		return false
	}
	if row.CompletedAt != nil {
		return false
	}
	completedAt := now
	row.CompletedAt = &completedAt
	return true
}

// recomputeStudentModule derives the StudentModule row from lesson progress.
// repo must be bound to the transaction that wrote the lesson progress.
func recomputeStudentModule(ctx context.Context, repo repositories.Repository, studentID string, moduleID uint, now time.Time) (*models.StudentModule, bool, error) {
	total, err := repo.Lesson().CountByModule(ctx, moduleID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count lessons: %w", err)
	}
	completed, err := repo.Progress().CountCompletedLessons(ctx, studentID, moduleID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count completed lessons: %w", err)
	}

	row, err := repo.Progress().GetStudentModule(ctx, studentID, moduleID)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			return nil, false, fmt.Errorf("failed to get student module: %w", err)
		}
		row = &models.StudentModule{StudentID: studentID, ModuleID: moduleID}
	}

	newlyCompleted := applyModuleProgress(row, DeriveModuleProgress(completed, total), now)
	if err := repo.Progress().SaveStudentModule(ctx, row); err != nil {
		return nil, false, fmt.Errorf("failed to save student module: %w", err)
	}
	return row, newlyCompleted, nil
}

// recomputeModuleProgress re-derives every StudentModule of moduleID after its lesson set changed
func recomputeModuleProgress(ctx context.Context, repo repositories.Repository, moduleID uint, now time.Time) ([]string, error) {
	rows, err := repo.Progress().ListStudentModules(ctx, repositories.StudentModuleFilters{ModuleIDs: []uint{moduleID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list student modules: %w", err)
	}

	studentIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, _, err := recomputeStudentModule(ctx, repo, row.StudentID, moduleID, now); err != nil {
			return nil, err
		}
		studentIDs = append(studentIDs, row.StudentID)
	}
	return studentIDs, nil
}

// ensureStudentModules pre-creates zero-progress rows for every (student, module) pair
func ensureStudentModules(ctx context.Context, repo repositories.Repository, studentIDs []string, moduleIDs []uint) error {
	if len(studentIDs) == 0 || len(moduleIDs) == 0 {
		return nil
	}
	rows := make([]*models.StudentModule, 0, len(studentIDs)*len(moduleIDs))
	for _, studentID := range uniqueStrings(studentIDs) {
		for _, moduleID := range moduleIDs {
			rows = append(rows, &models.StudentModule{StudentID: studentID, ModuleID: moduleID})
		}
	}
	if err := repo.Progress().EnsureStudentModules(ctx, rows); err != nil {
		return fmt.Errorf("failed to ensure student modules: %w", err)
	}
	return nil
}

// ensureClassModules gives the students every module currently assigned to the class
func ensureClassModules(ctx context.Context, repo repositories.Repository, classID uint, studentIDs ...string) error {
	assignments, err := repo.Assignment().ListByClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to list class assignments: %w", err)
	}
	moduleIDs := make([]uint, 0, len(assignments))
	for _, a := range assignments {
		moduleIDs = append(moduleIDs, a.ModuleID)
	}
	return ensureStudentModules(ctx, repo, studentIDs, moduleIDs)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
