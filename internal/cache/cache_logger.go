package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern invalidates pattern and only logs failures
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern", "error", err, "pattern", pattern)
	}
}

// SafeDelete deletes keys and only logs failures
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys", "error", err, "keys", keys)
	}
}

func ModuleKey(moduleID uint) string {
	return fmt.Sprintf("id:%d", moduleID)
}

func ClassCodeKey(code string) string {
	return "code:" + code
}

func StudentModulesKey(studentID string) string {
	return fmt.Sprintf("student:%s:modules", studentID)
}

// InvalidateModule drops the cached module tree and every student dashboard,
// since lesson counts feed into each listed module.
func InvalidateModule(ctx context.Context, cm *CacheManager, moduleID uint) {
	SafeDelete(ctx, cm.Module, ModuleKey(moduleID))
	SafeInvalidatePattern(ctx, cm.Progress, "student:*")
}

// InvalidateStudentProgress drops the dashboards of the given students
func InvalidateStudentProgress(ctx context.Context, cm *CacheManager, studentIDs ...string) {
	if len(studentIDs) == 0 {
		return
	}
	keys := make([]string, len(studentIDs))
	for i, id := range studentIDs {
		keys[i] = StudentModulesKey(id)
	}
	SafeDelete(ctx, cm.Progress, keys...)
}

func InvalidateClass(ctx context.Context, cm *CacheManager, code string) {
	SafeDelete(ctx, cm.Class, ClassCodeKey(code))
}
