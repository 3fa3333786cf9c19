package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"

	"github.com/alexrendlerCS/aicademy-sub000/internal/chat"
	"github.com/alexrendlerCS/aicademy-sub000/internal/metrics"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

// FallbackReply is returned when the completion server cannot be reached
const FallbackReply = "The AI tutor is taking a break right now. Please try again in a few minutes, or ask your teacher for help."

const (
	maxLessonRunes = 4000
	recentAttempts = 5
)

var (
	htmlTags   = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespace = regexp.MustCompile(`\s+`)
)

type chatService struct {
	repo      repositories.Repository
	completer chat.Completer
	logger    *slog.Logger
	validator *validator.Validator
}

func NewChatService(repo repositories.Repository, completer chat.Completer, logger *slog.Logger, validator *validator.Validator) ChatService {
	return &chatService{
		repo:      repo,
		completer: completer,
		logger:    logger,
		validator: validator,
	}
}

// tutorContext is what the system prompt tells the model about the student
type tutorContext struct {
	student  *models.User
	module   *models.Module
	lesson   *models.Lesson
	progress *float64
	attempts []*models.QuizAttempt
}

func (s *chatService) Chat(ctx context.Context, studentID string, req *ChatRequest) (*ChatResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	tc, err := s.loadContext(ctx, studentID, req)
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(req.Messages)+1)
	messages = append(messages, chat.Message{Role: "system", Content: systemPrompt(tc)})
	for _, m := range req.Messages {
		messages = append(messages, chat.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := s.completer.Complete(ctx, messages)
	switch {
	case err == nil:
		metrics.RecordChatRequest(metrics.ChatOK)
		return &ChatResponse{Reply: reply}, nil
	case errors.Is(err, chat.ErrUnavailable):
		metrics.RecordChatRequest(metrics.ChatUnavailable)
		s.logger.Warn("Chat completion server unavailable", "student_id", studentID, "error", err)
		return &ChatResponse{Reply: FallbackReply, Fallback: true}, ErrChatUnavailable
	default:
		metrics.RecordChatRequest(metrics.ChatError)
		s.logger.Error("Chat completion failed", "student_id", studentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrChatFailed, err)
	}
}

func (s *chatService) loadContext(ctx context.Context, studentID string, req *ChatRequest) (*tutorContext, error) {
	student, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	tc := &tutorContext{student: student}

	moduleID := req.ModuleID
	if req.LessonID != nil {
		lesson, err := s.repo.Lesson().GetByID(ctx, *req.LessonID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrLessonNotFound
			}
			return nil, fmt.Errorf("failed to get lesson: %w", err)
		}
		if moduleID != nil && *moduleID != lesson.ModuleID {
			return nil, ValidationErrors{fieldError("lesson_id", "does not belong to module_id", *req.LessonID)}
		}
		tc.lesson = lesson
		moduleID = &lesson.ModuleID
	}
	if moduleID == nil {
		return tc, nil
	}

	row, err := s.repo.Progress().GetStudentModule(ctx, studentID, *moduleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotAssigned
		}
		return nil, fmt.Errorf("failed to get module progress: %w", err)
	}
	progress := row.Progress
	tc.progress = &progress

	if tc.module, err = s.repo.Module().GetByID(ctx, *moduleID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrModuleNotFound
		}
		return nil, fmt.Errorf("failed to get module: %w", err)
	}
	if err := requirePublished(tc.module); err != nil {
		return nil, err
	}

	tc.attempts, err = s.repo.Progress().ListAttempts(ctx, repositories.AttemptFilters{
		StudentID: studentID,
		ModuleID:  moduleID,
		Limit:     recentAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return tc, nil
}

func systemPrompt(tc *tutorContext) string {
	var b strings.Builder
	b.WriteString("You are a friendly, patient tutor for a K-12 student. ")
	b.WriteString("Guide the student towards answers with hints and questions instead of giving quiz answers away. ")
	b.WriteString("Keep explanations short and suited to the student's grade.\n")

	fmt.Fprintf(&b, "\nStudent: %s", tc.student.FullName)
	if tc.student.GradeLevel != nil {
		fmt.Fprintf(&b, " (grade %s)", gradeName(*tc.student.GradeLevel))
	}
	b.WriteString("\n")

	if tc.module != nil {
		fmt.Fprintf(&b, "Module: %s", tc.module.Title)
		if tc.module.Subject != "" {
			fmt.Fprintf(&b, " [%s]", tc.module.Subject)
		}
		b.WriteString("\n")
		if tc.module.Description != "" {
			fmt.Fprintf(&b, "Module description: %s\n", tc.module.Description)
		}
	}
	if tc.progress != nil {
		fmt.Fprintf(&b, "Module progress: %.0f%%\n", *tc.progress*100)
	}

	if tc.lesson != nil {
		fmt.Fprintf(&b, "\nCurrent lesson: %s\n", tc.lesson.Title)
		if text := LessonText(tc.lesson.Content, maxLessonRunes); text != "" {
			fmt.Fprintf(&b, "Lesson content:\n%s\n", text)
		}
	}

	if len(tc.attempts) > 0 {
		b.WriteString("\nRecent quiz results:\n")
		for _, a := range tc.attempts {
			fmt.Fprintf(&b, "- %s | answer: %s | %s\n", attemptQuestion(a), attemptAnswer(a), correctness(a.IsCorrect))
		}
	}
	return b.String()
}

// LessonText strips markup from lesson HTML and truncates it to limit runes
func LessonText(content string, limit int) string {
	text := htmlTags.ReplaceAllString(content, " ")
	text = html.UnescapeString(text)
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))

	runes := []rune(text)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return text
}

func attemptQuestion(a *models.QuizAttempt) string {
	if a.Question != nil {
		return a.Question.Question
	}
	return fmt.Sprintf("question %d", a.QuestionID)
}

func attemptAnswer(a *models.QuizAttempt) string {
	if a.AnswerText != nil {
		return *a.AnswerText
	}
	if a.SelectedIndex == nil {
		return "(none)"
	}
	if a.Question != nil {
		if content, err := a.Question.DecodeContent(); err == nil {
			if mc, ok := content.(models.MultipleChoiceContent); ok && *a.SelectedIndex >= 0 && *a.SelectedIndex < len(mc.Options) {
				return mc.Options[*a.SelectedIndex]
			}
		}
	}
	return fmt.Sprintf("option %d", *a.SelectedIndex+1)
}

func correctness(ok bool) string {
	if ok {
		return "correct"
	}
	return "incorrect"
}

func gradeName(level int) string {
	if level == 0 {
		return "K"
	}
	return fmt.Sprintf("%d", level)
}
