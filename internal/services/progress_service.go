package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/events"
	"github.com/alexrendlerCS/aicademy-sub000/internal/metrics"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type progressService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
}

func NewProgressService(repo repositories.Repository, cm *cache.CacheManager, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ProgressService {
	return &progressService{
		repo:      repo,
		cache:     cm,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		now:       time.Now,
	}
}

// ===== QUIZ SUBMISSION =====

func (s *progressService) SubmitQuiz(ctx context.Context, studentID string, lessonID uint, req *SubmitQuizRequest) (*models.QuizResult, error) {
	s.logger.Info("Submitting quiz", "student_id", studentID, "lesson_id", lessonID, "answers", len(req.Answers))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	lesson, err := s.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, studentID, lesson, "submit_quiz"); err != nil {
		return nil, err
	}
	if !lesson.HasQuiz() {
		return nil, NewBusinessRuleError(RuleLessonNoQuiz, "This lesson has no quiz, mark it complete instead", map[string]interface{}{
			"lesson_id": lessonID,
		})
	}

	graded, err := s.gradeSubmission(lesson, req.Answers)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	attempts := make([]*models.QuizAttempt, 0, len(graded))
	result := &models.QuizResult{
		LessonID:        lessonID,
		TotalQuestions:  len(graded),
		LessonCompleted: true,
		Results:         make([]models.QuestionResult, 0, len(graded)),
	}
	for _, g := range graded {
		attempts = append(attempts, &models.QuizAttempt{
			StudentID:     studentID,
			QuestionID:    g.question.ID,
			LessonID:      lessonID,
			SelectedIndex: g.answer.SelectedIndex,
			AnswerText:    g.answer.AnswerText,
			IsCorrect:     g.correct,
			AttemptedAt:   now,
		})

		qr := models.QuestionResult{QuestionID: g.question.ID, IsCorrect: g.correct}
		revealAnswer(&qr, g.content)
		result.Results = append(result.Results, qr)

		if g.correct {
			result.CorrectCount++
		} else if g.question.Type == models.MultipleChoice {
			// Free response answers never gate completion
			result.LessonCompleted = false
		}
	}

	var row *models.StudentModule
	var moduleCompleted bool
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Progress().UpsertAttempts(ctx, attempts); err != nil {
			return fmt.Errorf("failed to save attempts: %w", err)
		}
		if err := tx.Progress().UpsertLessonProgress(ctx, lessonProgress(studentID, lessonID, result.LessonCompleted, now)); err != nil {
			return fmt.Errorf("failed to save lesson progress: %w", err)
		}
		var err error
		row, moduleCompleted, err = recomputeStudentModule(ctx, tx, studentID, lesson.ModuleID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	result.ModuleProgress = row.Progress
	result.ModuleCompleted = row.CompletedAt != nil

	metrics.RecordQuizSubmission(result.LessonCompleted)
	cache.InvalidateStudentProgress(ctx, s.cache, studentID)

	events.PublishSafe(ctx, s.publisher, s.logger, events.NewEvent(events.QuizSubmitted, events.QuizSubmittedData{
		StudentID:      studentID,
		LessonID:       lessonID,
		ModuleID:       lesson.ModuleID,
		CorrectCount:   result.CorrectCount,
		TotalQuestions: result.TotalQuestions,
	}))
	s.publishCompletion(ctx, studentID, lesson, result.LessonCompleted, moduleCompleted, row)

	s.logger.Info("Quiz graded",
		"student_id", studentID,
		"lesson_id", lessonID,
		"correct", result.CorrectCount,
		"total", result.TotalQuestions,
		"lesson_completed", result.LessonCompleted,
		"module_progress", result.ModuleProgress)

	return result, nil
}

func (s *progressService) CompleteLesson(ctx context.Context, studentID string, lessonID uint) (*LessonCompletion, error) {
	lesson, err := s.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssigned(ctx, studentID, lesson, "complete_lesson"); err != nil {
		return nil, err
	}
	if lesson.HasQuiz() {
		return nil, NewBusinessRuleError(RuleLessonHasQuiz, "This lesson ends with a quiz, submit the quiz to complete it", map[string]interface{}{
			"lesson_id": lessonID,
		})
	}

	now := s.now().UTC()
	var row *models.StudentModule
	var moduleCompleted bool
	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Progress().UpsertLessonProgress(ctx, lessonProgress(studentID, lessonID, true, now)); err != nil {
			return fmt.Errorf("failed to save lesson progress: %w", err)
		}
		var err error
		row, moduleCompleted, err = recomputeStudentModule(ctx, tx, studentID, lesson.ModuleID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateStudentProgress(ctx, s.cache, studentID)
	s.publishCompletion(ctx, studentID, lesson, true, moduleCompleted, row)

	return &LessonCompletion{
		LessonID:        lessonID,
		LessonCompleted: true,
		ModuleProgress:  row.Progress,
		ModuleCompleted: row.CompletedAt != nil,
	}, nil
}

type gradedAnswer struct {
	question *models.QuizQuestion
	content  models.QuestionContent
	answer   validator.QuizAnswer
	correct  bool
}

// gradeSubmission requires exactly one non-empty answer per question of the lesson
func (s *progressService) gradeSubmission(lesson *models.Lesson, answers []validator.QuizAnswer) ([]gradedAnswer, error) {
	byQuestion := make(map[uint]validator.QuizAnswer, len(answers))
	var verrs ValidationErrors

	known := make(map[uint]struct{}, len(lesson.Questions))
	for _, q := range lesson.Questions {
		known[q.ID] = struct{}{}
	}
	for i, a := range answers {
		field := fmt.Sprintf("answers[%d].question_id", i)
		if _, ok := known[a.QuestionID]; !ok {
			verrs = append(verrs, fieldError(field, "does not belong to this lesson", a.QuestionID))
			continue
		}
		if _, dup := byQuestion[a.QuestionID]; dup {
			verrs = append(verrs, fieldError(field, "is answered more than once", a.QuestionID))
			continue
		}
		byQuestion[a.QuestionID] = a
	}

	graded := make([]gradedAnswer, 0, len(lesson.Questions))
	for i := range lesson.Questions {
		q := &lesson.Questions[i]
		content, err := q.DecodeContent()
		if err != nil {
			return nil, fmt.Errorf("question %d has invalid content: %w", q.ID, err)
		}

		answer, ok := byQuestion[q.ID]
		if !ok {
			verrs = append(verrs, fieldError(fmt.Sprintf("answers[question %d]", q.ID), "is required", nil))
			continue
		}
		if err := answerProvided(content, answer); err != nil {
			verrs = append(verrs, fieldError(fmt.Sprintf("answers[question %d]", q.ID), err.Error(), nil))
			continue
		}

		graded = append(graded, gradedAnswer{
			question: q,
			content:  content,
			answer:   answer,
			correct:  GradeAnswer(content, answer),
		})
	}

	if len(verrs) > 0 {
		return nil, verrs
	}
	return graded, nil
}

func lessonProgress(studentID string, lessonID uint, completed bool, now time.Time) *models.LessonProgress {
	p := &models.LessonProgress{StudentID: studentID, LessonID: lessonID, Completed: completed}
	if completed {
		p.CompletedAt = &now
	}
	return p
}

func (s *progressService) publishCompletion(ctx context.Context, studentID string, lesson *models.Lesson, lessonCompleted, moduleCompleted bool, row *models.StudentModule) {
	if lessonCompleted {
		events.PublishSafe(ctx, s.publisher, s.logger, events.NewEvent(events.LessonCompleted, events.LessonCompletedData{
			StudentID: studentID,
			LessonID:  lesson.ID,
			ModuleID:  lesson.ModuleID,
		}))
	}
	if moduleCompleted && row.CompletedAt != nil {
		events.PublishSafe(ctx, s.publisher, s.logger, events.NewEvent(events.ModuleCompleted, events.ModuleCompletedData{
			StudentID:   studentID,
			ModuleID:    lesson.ModuleID,
			CompletedAt: *row.CompletedAt,
		}))
	}
}

// ===== STUDENT VIEWS =====

func (s *progressService) ListStudentModules(ctx context.Context, studentID string) ([]models.StudentModuleView, error) {
	var views []models.StudentModuleView
	err := s.cache.Progress.CacheOrExecute(ctx, cache.StudentModulesKey(studentID), &views, cache.ProgressCacheConfig.TTL, func() (interface{}, error) {
		return s.buildStudentModules(ctx, studentID)
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *progressService) buildStudentModules(ctx context.Context, studentID string) ([]models.StudentModuleView, error) {
	rows, err := s.repo.Progress().ListStudentModules(ctx, repositories.StudentModuleFilters{StudentIDs: []string{studentID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list student modules: %w", err)
	}
	if len(rows) == 0 {
		return []models.StudentModuleView{}, nil
	}

	dueDates, err := s.dueDates(ctx, studentID)
	if err != nil {
		return nil, err
	}

	moduleIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		moduleIDs = append(moduleIDs, row.ModuleID)
	}
	lessonCounts, err := s.repo.Lesson().CountByModules(ctx, moduleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count lessons: %w", err)
	}

	views := make([]models.StudentModuleView, 0, len(rows))
	for _, row := range rows {
		// Assigning a draft creates rows ahead of publishing
		if row.Module == nil || row.Module.Status != models.ModulePublished {
			continue
		}
		completed, err := s.repo.Progress().CountCompletedLessons(ctx, studentID, row.ModuleID)
		if err != nil {
			return nil, fmt.Errorf("failed to count completed lessons: %w", err)
		}
		views = append(views, studentModuleView(row, int(lessonCounts[row.ModuleID]), int(completed), dueDates[row.ModuleID]))
	}

	sortStudentModules(views)
	return views, nil
}

// sortStudentModules puts the earliest due dates first, undated modules last
func sortStudentModules(views []models.StudentModuleView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].DueDate, views[j].DueDate
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return views[i].Title < views[j].Title
	})
}

func studentModuleView(row *models.StudentModule, lessonCount, completed int, due *time.Time) models.StudentModuleView {
	return models.StudentModuleView{
		ModuleID:         row.ModuleID,
		Title:            row.Module.Title,
		Subject:          row.Module.Subject,
		Description:      row.Module.Description,
		Progress:         row.Progress,
		CompletedAt:      row.CompletedAt,
		DueDate:          due,
		LessonCount:      lessonCount,
		CompletedLessons: completed,
	}
}

// dueDates maps each module visible to the student to its earliest due date
func (s *progressService) dueDates(ctx context.Context, studentID string) (map[uint]*time.Time, error) {
	classIDs, err := s.repo.Membership().ApprovedClassIDs(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	assigned, err := s.repo.Assignment().ListForStudent(ctx, studentID, classIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	out := make(map[uint]*time.Time, len(assigned))
	for _, a := range assigned {
		out[a.ModuleID] = a.DueDate
	}
	return out, nil
}

func (s *progressService) GetStudentModule(ctx context.Context, studentID string, moduleID uint) (*models.StudentModuleDetail, error) {
	row, err := s.repo.Progress().GetStudentModule(ctx, studentID, moduleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotAssigned
		}
		return nil, fmt.Errorf("failed to get student module: %w", err)
	}

	module, err := s.repo.Module().GetByIDWithLessons(ctx, moduleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	if err := requirePublished(module); err != nil {
		return nil, err
	}
	row.Module = module

	lessonIDs := make([]uint, 0, len(module.Lessons))
	for _, l := range module.Lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}
	progress, err := s.repo.Progress().ListLessonProgress(ctx, studentID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	byLesson := make(map[uint]*models.LessonProgress, len(progress))
	for _, p := range progress {
		byLesson[p.LessonID] = p
	}

	dueDates, err := s.dueDates(ctx, studentID)
	if err != nil {
		return nil, err
	}

	lessons := make([]models.LessonSummary, 0, len(module.Lessons))
	completed := 0
	for i := range module.Lessons {
		l := &module.Lessons[i]
		summary := models.LessonSummary{
			ID:         l.ID,
			Title:      l.Title,
			OrderIndex: l.OrderIndex,
			HasQuiz:    l.HasQuiz(),
		}
		if p, ok := byLesson[l.ID]; ok && p.Completed {
			summary.Completed = true
			summary.CompletedAt = p.CompletedAt
			completed++
		}
		lessons = append(lessons, summary)
	}

	return &models.StudentModuleDetail{
		StudentModuleView: studentModuleView(row, len(module.Lessons), completed, dueDates[moduleID]),
		Lessons:           lessons,
	}, nil
}

func (s *progressService) GetStudentLesson(ctx context.Context, studentID string, lessonID uint) (*models.StudentLessonView, error) {
	lesson, err := s.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Progress().GetStudentModule(ctx, studentID, lesson.ModuleID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotAssigned
		}
		return nil, fmt.Errorf("failed to get student module: %w", err)
	}
	if err := s.requirePublishedLesson(ctx, lesson); err != nil {
		return nil, err
	}

	view := &models.StudentLessonView{
		ID:         lesson.ID,
		ModuleID:   lesson.ModuleID,
		Title:      lesson.Title,
		Content:    lesson.Content,
		OrderIndex: lesson.OrderIndex,
		Questions:  make([]models.QuizQuestionView, 0, len(lesson.Questions)),
	}
	for i := range lesson.Questions {
		qv, err := lesson.Questions[i].StudentView()
		if err != nil {
			return nil, fmt.Errorf("question %d has invalid content: %w", lesson.Questions[i].ID, err)
		}
		view.Questions = append(view.Questions, qv)
	}

	progress, err := s.repo.Progress().ListLessonProgress(ctx, studentID, []uint{lessonID})
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	if len(progress) > 0 && progress[0].Completed {
		view.Completed = true
		view.CompletedAt = progress[0].CompletedAt
	}

	attempts, err := s.repo.Progress().ListAttempts(ctx, repositories.AttemptFilters{StudentID: studentID, LessonIDs: []uint{lessonID}})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	view.Attempts = hideAnswers(attempts)

	return view, nil
}

func (s *progressService) ListAttempts(ctx context.Context, studentID string, lessonID *uint) ([]*models.QuizAttempt, error) {
	filters := repositories.AttemptFilters{StudentID: studentID}
	if lessonID != nil {
		filters.LessonIDs = []uint{*lessonID}
	}
	attempts, err := s.repo.Progress().ListAttempts(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return hideAnswers(attempts), nil
}

// hideAnswers drops the preloaded question, which carries the answer key
func hideAnswers(attempts []*models.QuizAttempt) []*models.QuizAttempt {
	for _, a := range attempts {
		a.Question = nil
	}
	if attempts == nil {
		return []*models.QuizAttempt{}
	}
	return attempts
}

// ===== HELPERS =====

func (s *progressService) loadLesson(ctx context.Context, lessonID uint) (*models.Lesson, error) {
	lesson, err := s.repo.Lesson().GetByIDWithQuestions(ctx, lessonID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return lesson, nil
}

func (s *progressService) requireAssigned(ctx context.Context, studentID string, lesson *models.Lesson, action string) error {
	if _, err := s.repo.Progress().GetStudentModule(ctx, studentID, lesson.ModuleID); err != nil {
		if repositories.IsNotFoundError(err) {
			return NewPermissionError(studentID, lesson.ModuleID, "module", action, "module is not assigned to the student")
		}
		return fmt.Errorf("failed to get student module: %w", err)
	}
	return s.requirePublishedLesson(ctx, lesson)
}

func (s *progressService) requirePublishedLesson(ctx context.Context, lesson *models.Lesson) error {
	module := lesson.Module
	if module == nil {
		var err error
		if module, err = s.repo.Module().GetByID(ctx, lesson.ModuleID); err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrModuleNotFound
			}
			return fmt.Errorf("failed to get module: %w", err)
		}
	}
	return requirePublished(module)
}

// requirePublished hides draft modules from students
func requirePublished(module *models.Module) error {
	if module.Status != models.ModulePublished {
		return ErrModuleNotFound
	}
	return nil
}
