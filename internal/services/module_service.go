package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type moduleService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewModuleService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger, validator *validator.Validator) ModuleService {
	return &moduleService{
		repo:      repo,
		cache:     cm,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

// ===== MODULES =====

func (s *moduleService) Create(ctx context.Context, teacherID string, req *ModuleCreateRequest) (*models.Module, error) {
	s.logger.Info("Creating module", "teacher_id", teacherID, "title", req.Title)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	module := &models.Module{
		Title:       req.Title,
		Subject:     req.Subject,
		Description: req.Description,
		TeacherID:   teacherID,
		Status:      models.ModuleDraft,
	}
	if err := s.repo.Module().Create(ctx, module); err != nil {
		return nil, fmt.Errorf("failed to create module: %w", err)
	}

	s.logger.Info("Module created", "module_id", module.ID)
	return module, nil
}

func (s *moduleService) List(ctx context.Context, teacherID string, filters repositories.ModuleFilters) (*ModuleListResponse, error) {
	filters.TeacherID = &teacherID
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	modules, total, err := s.repo.Module().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return &ModuleListResponse{Modules: modules, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

func (s *moduleService) Get(ctx context.Context, moduleID uint, teacherID string) (*models.Module, error) {
	module, err := s.repo.Module().GetByIDWithLessons(ctx, moduleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	if module.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, moduleID, "module", "read", "not owner")
	}
	return module, nil
}

func (s *moduleService) Update(ctx context.Context, moduleID uint, teacherID string, req *ModuleUpdateRequest) (*models.Module, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	module, err := loadOwnedModule(ctx, s.repo, moduleID, teacherID, "update")
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		module.Title = *req.Title
	}
	if req.Subject != nil {
		module.Subject = *req.Subject
	}
	if req.Description != nil {
		module.Description = *req.Description
	}
	if req.Status != nil && *req.Status != module.Status {
		if *req.Status == models.ModulePublished {
			if err := s.requireLessons(ctx, moduleID); err != nil {
				return nil, err
			}
			if module.PublishedAt == nil {
				now := s.now().UTC()
				module.PublishedAt = &now
			}
		}
		module.Status = *req.Status
	}

	if err := s.repo.Module().Update(ctx, module); err != nil {
		return nil, fmt.Errorf("failed to update module: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, moduleID)
	return module, nil
}

func (s *moduleService) Delete(ctx context.Context, moduleID uint, teacherID string) error {
	if _, err := loadOwnedModule(ctx, s.repo, moduleID, teacherID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Module().Delete(ctx, moduleID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrModuleNotFound
		}
		return fmt.Errorf("failed to delete module: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, moduleID)
	s.logger.Info("Module deleted", "module_id", moduleID, "teacher_id", teacherID)
	return nil
}

func (s *moduleService) requireLessons(ctx context.Context, moduleID uint) error {
	count, err := s.repo.Lesson().CountByModule(ctx, moduleID)
	if err != nil {
		return fmt.Errorf("failed to count lessons: %w", err)
	}
	if count == 0 {
		return NewBusinessRuleError(RuleModuleNoLessons, "Add at least one lesson before publishing", map[string]interface{}{
			"module_id": moduleID,
		})
	}
	return nil
}

// ===== LESSONS =====

func (s *moduleService) AddLesson(ctx context.Context, moduleID uint, teacherID string, req *LessonCreateRequest) (*models.Lesson, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := loadOwnedModule(ctx, s.repo, moduleID, teacherID, "add_lesson"); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{ModuleID: moduleID, Title: req.Title, Content: req.Content}
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if req.OrderIndex != nil {
			lesson.OrderIndex = *req.OrderIndex
		} else {
			next, err := tx.Lesson().NextOrderIndex(ctx, moduleID)
			if err != nil {
				return fmt.Errorf("failed to get next order index: %w", err)
			}
			lesson.OrderIndex = next
		}
		if err := tx.Lesson().Create(ctx, lesson); err != nil {
			return fmt.Errorf("failed to create lesson: %w", err)
		}
		// A new lesson lowers every student's completion ratio
		_, err := recomputeModuleProgress(ctx, tx, moduleID, s.now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	cache.InvalidateModule(ctx, s.cache, moduleID)

	s.logger.Info("Lesson added", "module_id", moduleID, "lesson_id", lesson.ID, "order_index", lesson.OrderIndex)
	return lesson, nil
}

func (s *moduleService) UpdateLesson(ctx context.Context, lessonID uint, teacherID string, req *LessonUpdateRequest) (*models.Lesson, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	lesson, err := s.ownedLesson(ctx, lessonID, teacherID, "update")
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		lesson.Title = *req.Title
	}
	if req.Content != nil {
		lesson.Content = *req.Content
	}
	if req.OrderIndex != nil {
		lesson.OrderIndex = *req.OrderIndex
	}
	if err := s.repo.Lesson().Update(ctx, lesson); err != nil {
		return nil, fmt.Errorf("failed to update lesson: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, lesson.ModuleID)
	return lesson, nil
}

func (s *moduleService) DeleteLesson(ctx context.Context, lessonID uint, teacherID string) error {
	lesson, err := s.ownedLesson(ctx, lessonID, teacherID, "delete")
	if err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Lesson().Delete(ctx, lessonID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrLessonNotFound
			}
			return fmt.Errorf("failed to delete lesson: %w", err)
		}
		_, err := recomputeModuleProgress(ctx, tx, lesson.ModuleID, s.now().UTC())
		return err
	})
	if err != nil {
		return err
	}
	cache.InvalidateModule(ctx, s.cache, lesson.ModuleID)

	s.logger.Info("Lesson deleted", "module_id", lesson.ModuleID, "lesson_id", lessonID)
	return nil
}

// ReorderLessons assigns order_index by position in req.LessonIDs, which must list every lesson once
func (s *moduleService) ReorderLessons(ctx context.Context, moduleID uint, teacherID string, req *ReorderLessonsRequest) ([]*models.Lesson, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := loadOwnedModule(ctx, s.repo, moduleID, teacherID, "reorder_lessons"); err != nil {
		return nil, err
	}

	lessons, err := s.repo.Lesson().ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	inModule := make(map[uint]struct{}, len(lessons))
	for _, l := range lessons {
		inModule[l.ID] = struct{}{}
	}

	var verrs ValidationErrors
	seen := make(map[uint]struct{}, len(req.LessonIDs))
	orders := make([]repositories.LessonOrder, 0, len(req.LessonIDs))
	for i, id := range req.LessonIDs {
		field := fmt.Sprintf("lesson_ids[%d]", i)
		if _, ok := inModule[id]; !ok {
			verrs = append(verrs, fieldError(field, "is not a lesson of this module", id))
			continue
		}
		if _, dup := seen[id]; dup {
			verrs = append(verrs, fieldError(field, "is listed more than once", id))
			continue
		}
		seen[id] = struct{}{}
		orders = append(orders, repositories.LessonOrder{LessonID: id, OrderIndex: i})
	}
	if len(verrs) == 0 && len(orders) != len(lessons) {
		verrs = append(verrs, fieldError("lesson_ids", fmt.Sprintf("must list all %d lessons", len(lessons)), len(orders)))
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	if err := s.repo.Lesson().UpdateOrder(ctx, moduleID, orders); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to reorder lessons: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, moduleID)

	reordered, err := s.repo.Lesson().ListByModule(ctx, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lessons: %w", err)
	}
	return reordered, nil
}

func (s *moduleService) ownedLesson(ctx context.Context, lessonID uint, teacherID, action string) (*models.Lesson, error) {
	lesson, err := s.repo.Lesson().GetByID(ctx, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	module, err := s.repo.Module().GetByID(ctx, lesson.ModuleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	if module.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, lessonID, "lesson", action, "not owner")
	}
	return lesson, nil
}

// ===== QUIZ QUESTIONS =====

func (s *moduleService) AddQuestion(ctx context.Context, lessonID uint, teacherID string, req *QuestionCreateRequest) (*models.QuizQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	content, err := req.Content()
	if err != nil {
		return nil, ValidationErrors{fieldError("content", err.Error(), nil)}
	}
	lesson, err := s.ownedLesson(ctx, lessonID, teacherID, "add_question")
	if err != nil {
		return nil, err
	}

	question := &models.QuizQuestion{LessonID: lessonID, Question: req.Question}
	if err := question.SetContent(content); err != nil {
		return nil, err
	}
	if req.OrderIndex != nil {
		question.OrderIndex = *req.OrderIndex
	} else {
		next, err := s.repo.Question().NextOrderIndex(ctx, lessonID)
		if err != nil {
			return nil, fmt.Errorf("failed to get next order index: %w", err)
		}
		question.OrderIndex = next
	}

	if err := s.repo.Question().Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, lesson.ModuleID)

	s.logger.Info("Question added", "lesson_id", lessonID, "question_id", question.ID, "type", question.Type)
	return question, nil
}

func (s *moduleService) UpdateQuestion(ctx context.Context, questionID uint, teacherID string, req *QuestionUpdateRequest) (*models.QuizQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	question, lesson, err := s.ownedQuestion(ctx, questionID, teacherID, "update")
	if err != nil {
		return nil, err
	}

	if req.Question != nil {
		question.Question = *req.Question
	}
	if req.OrderIndex != nil {
		question.OrderIndex = *req.OrderIndex
	}
	if req.ChangesContent() {
		content, err := mergeQuestionContent(question, req)
		if err != nil {
			return nil, ValidationErrors{fieldError("content", err.Error(), nil)}
		}
		if err := question.SetContent(content); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Question().Update(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, lesson.ModuleID)
	return question, nil
}

// mergeQuestionContent overlays the update on the stored payload. Switching type drops the old payload.
func mergeQuestionContent(question *models.QuizQuestion, req *QuestionUpdateRequest) (models.QuestionContent, error) {
	qType := question.Type
	if req.Type != nil {
		qType = *req.Type
	}

	var current models.QuestionContent
	if qType == question.Type {
		var err error
		if current, err = question.DecodeContent(); err != nil {
			return nil, err
		}
	}

	var content models.QuestionContent
	switch qType {
	case models.MultipleChoice:
		mc, _ := current.(models.MultipleChoiceContent)
		if req.Options != nil {
			mc.Options = req.Options
		}
		if req.CorrectIndex != nil {
			mc.CorrectIndex = *req.CorrectIndex
		} else if current == nil {
			return nil, fmt.Errorf("correct_index is required for multiple choice questions")
		}
		content = mc
	case models.FreeResponse:
		fr, _ := current.(models.FreeResponseContent)
		if req.CorrectAnswer != nil {
			fr.CorrectAnswer = *req.CorrectAnswer
		}
		content = fr
	default:
		return nil, fmt.Errorf("unsupported question type: %s", qType)
	}

	if err := content.Validate(); err != nil {
		return nil, err
	}
	return content, nil
}

func (s *moduleService) DeleteQuestion(ctx context.Context, questionID uint, teacherID string) error {
	_, lesson, err := s.ownedQuestion(ctx, questionID, teacherID, "delete")
	if err != nil {
		return err
	}
	if err := s.repo.Question().Delete(ctx, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}
	cache.InvalidateModule(ctx, s.cache, lesson.ModuleID)
	return nil
}

func (s *moduleService) ownedQuestion(ctx context.Context, questionID uint, teacherID, action string) (*models.QuizQuestion, *models.Lesson, error) {
	question, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil, ErrQuestionNotFound
		}
		return nil, nil, fmt.Errorf("failed to get question: %w", err)
	}
	lesson, err := s.ownedLesson(ctx, question.LessonID, teacherID, action+"_question")
	if err != nil {
		return nil, nil, err
	}
	return question, lesson, nil
}
