package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/events"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type assignmentService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewAssignmentService(repo repositories.Repository, cm *cache.CacheManager, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) AssignmentService {
	return &assignmentService{
		repo:      repo,
		cache:     cm,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

func (s *assignmentService) Publish(ctx context.Context, moduleID uint, teacherID string, req *AssignmentsRequest) (*AssignmentResponse, error) {
	s.logger.Info("Publishing module", "module_id", moduleID, "teacher_id", teacherID, "targets", len(req.Targets))
	return s.apply(ctx, moduleID, teacherID, req, true)
}

func (s *assignmentService) UpdateAssignments(ctx context.Context, moduleID uint, teacherID string, req *AssignmentsRequest) (*AssignmentResponse, error) {
	s.logger.Info("Updating module assignments", "module_id", moduleID, "teacher_id", teacherID, "targets", len(req.Targets))
	return s.apply(ctx, moduleID, teacherID, req, false)
}

func (s *assignmentService) ListAssignments(ctx context.Context, moduleID uint, teacherID string) ([]*models.ModuleAssignment, error) {
	if _, err := s.ownedModule(ctx, moduleID, teacherID, "list_assignments"); err != nil {
		return nil, err
	}
	assignments, err := s.repo.Assignment().ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}

func (s *assignmentService) apply(ctx context.Context, moduleID uint, teacherID string, req *AssignmentsRequest, publish bool) (*AssignmentResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	module, err := s.ownedModule(ctx, moduleID, teacherID, "assign")
	if err != nil {
		return nil, err
	}

	desired, classIDs, studentIDs, err := s.desiredAssignments(ctx, moduleID, teacherID, req.Targets)
	if err != nil {
		return nil, err
	}

	if publish {
		lessons, err := s.repo.Lesson().CountByModule(ctx, moduleID)
		if err != nil {
			return nil, fmt.Errorf("failed to count lessons: %w", err)
		}
		if lessons == 0 {
			return nil, NewBusinessRuleError(RuleModuleNoLessons, "Add at least one lesson before publishing", map[string]interface{}{
				"module_id": moduleID,
			})
		}
	}

	var diff AssignmentDiff
	var affected []string
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if publish {
			module.Status = models.ModulePublished
			if module.PublishedAt == nil {
				now := s.now().UTC()
				module.PublishedAt = &now
			}
			if err := tx.Module().Update(ctx, module); err != nil {
				return fmt.Errorf("failed to publish module: %w", err)
			}
		}

		current, err := tx.Assignment().ListByModule(ctx, moduleID)
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		diff = DiffAssignments(current, desired)

		for _, a := range diff.Create {
			if err := tx.Assignment().Create(ctx, a); err != nil {
				return fmt.Errorf("failed to create assignment: %w", err)
			}
		}
		for _, a := range diff.Update {
			if err := tx.Assignment().UpdateDueDate(ctx, a.ID, a.DueDate); err != nil {
				return fmt.Errorf("failed to update assignment: %w", err)
			}
		}
		if err := tx.Assignment().DeleteByIDs(ctx, diff.Delete); err != nil {
			return fmt.Errorf("failed to delete assignments: %w", err)
		}

		members, err := tx.Membership().ApprovedStudentIDs(ctx, classIDs)
		if err != nil {
			return fmt.Errorf("failed to list class members: %w", err)
		}
		affected = uniqueStrings(append(append([]string{}, studentIDs...), members...))
		return ensureStudentModules(ctx, tx, affected, []uint{moduleID})
	})
	if err != nil {
		return nil, err
	}

	// Due dates of removed targets disappear from every student dashboard
	if len(diff.Delete) > 0 || publish {
		cache.InvalidateModule(ctx, s.cache, moduleID)
	} else {
		cache.InvalidateStudentProgress(ctx, s.cache, affected...)
	}

	events.PublishSafe(ctx, s.publisher, s.logger, events.NewEvent(events.ModuleAssigned, events.ModuleAssignedData{
		ModuleID:   moduleID,
		TeacherID:  teacherID,
		ClassIDs:   classIDs,
		StudentIDs: studentIDs,
		Added:      len(diff.Create),
		Updated:    len(diff.Update),
		Removed:    len(diff.Delete),
	}))

	assignments, err := s.repo.Assignment().ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	s.logger.Info("Module assignments applied",
		"module_id", moduleID,
		"added", len(diff.Create),
		"updated", len(diff.Update),
		"removed", len(diff.Delete),
		"unchanged", diff.Unchanged,
		"students", len(affected))

	return &AssignmentResponse{
		Module:      module,
		Assignments: assignments,
		Added:       len(diff.Create),
		Updated:     len(diff.Update),
		Removed:     len(diff.Delete),
	}, nil
}

// desiredAssignments checks every target and builds the rows it stands for
func (s *assignmentService) desiredAssignments(ctx context.Context, moduleID uint, teacherID string, targets []validator.AssignmentTarget) ([]*models.ModuleAssignment, []uint, []string, error) {
	var verrs ValidationErrors
	seen := make(map[string]int, len(targets))
	desired := make([]*models.ModuleAssignment, 0, len(targets))
	var classIDs []uint
	var studentIDs []string

	for i, t := range targets {
		field := fmt.Sprintf("targets[%d]", i)
		if (t.ClassID == nil) == (t.StudentID == nil) {
			verrs = append(verrs, fieldError(field, "must name exactly one of class_id or student_id", nil))
			continue
		}

		a := &models.ModuleAssignment{ModuleID: moduleID, ClassID: t.ClassID, StudentID: t.StudentID, DueDate: t.DueDate}
		if a.DueDate != nil {
			due := a.DueDate.UTC()
			a.DueDate = &due
		}
		key := a.TargetKey()
		if first, dup := seen[key]; dup {
			verrs = append(verrs, fieldError(field, fmt.Sprintf("duplicates targets[%d]", first), key))
			continue
		}
		seen[key] = i
		desired = append(desired, a)

		if t.ClassID != nil {
			classIDs = append(classIDs, *t.ClassID)
		} else {
			studentIDs = append(studentIDs, *t.StudentID)
		}
	}
	if len(verrs) > 0 {
		return nil, nil, nil, verrs
	}

	if len(classIDs) > 0 {
		classes, err := s.repo.Class().GetByIDs(ctx, classIDs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load classes: %w", err)
		}
		found := make(map[uint]*models.Class, len(classes))
		for _, c := range classes {
			found[c.ID] = c
		}
		for _, id := range classIDs {
			c, ok := found[id]
			if !ok {
				verrs = append(verrs, fieldError("targets.class_id", "class does not exist", id))
				continue
			}
			if c.TeacherID != teacherID {
				return nil, nil, nil, NewPermissionError(teacherID, id, "class", "assign", "class belongs to another teacher")
			}
		}
	}

	if len(studentIDs) > 0 {
		users, err := s.repo.User().GetByIDs(ctx, studentIDs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load students: %w", err)
		}
		found := make(map[string]*models.User, len(users))
		for _, u := range users {
			found[u.ID] = u
		}
		for _, id := range studentIDs {
			u, ok := found[id]
			switch {
			case !ok:
				verrs = append(verrs, fieldError("targets.student_id", "student does not exist", id))
			case u.Role != models.RoleStudent:
				verrs = append(verrs, fieldError("targets.student_id", "is not a student", id))
			}
		}
	}

	if len(verrs) > 0 {
		return nil, nil, nil, verrs
	}
	return desired, classIDs, studentIDs, nil
}

func (s *assignmentService) ownedModule(ctx context.Context, moduleID uint, teacherID, action string) (*models.Module, error) {
	return loadOwnedModule(ctx, s.repo, moduleID, teacherID, action)
}

// loadOwnedModule returns the module when teacherID owns it
func loadOwnedModule(ctx context.Context, repo repositories.Repository, moduleID uint, teacherID, action string) (*models.Module, error) {
	module, err := repo.Module().GetByID(ctx, moduleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	if module.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, moduleID, "module", action, "not owner")
	}
	return module, nil
}
