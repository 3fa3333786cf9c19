package validator

import (
	"fmt"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// ===== AUTH =====

type LoginRequest struct {
	IntendedRole *models.UserRole `json:"intended_role" validate:"omitempty,user_role"`
}

type CompleteProfileRequest struct {
	FullName   string          `json:"full_name" validate:"required,min=1,max=100"`
	Role       models.UserRole `json:"role" validate:"required,user_role"`
	GradeLevel *int            `json:"grade_level" validate:"omitempty,grade_level"`
}

type DemoLoginRequest struct {
	Role models.UserRole `json:"role" validate:"required,user_role"`
}

// ===== CLASSES =====

type ClassCreateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type ClassUpdateRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type JoinClassRequest struct {
	Code string `json:"code" validate:"required,class_code"`
}

type AddStudentRequest struct {
	StudentID string `json:"student_id" validate:"required,max=255"`
}

// ===== MODULE AUTHORING =====

type ModuleCreateRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Subject     string `json:"subject" validate:"omitempty,max=100"`
	Description string `json:"description" validate:"omitempty,max=5000"`
}

type ModuleUpdateRequest struct {
	Title       *string              `json:"title" validate:"omitempty,min=1,max=200"`
	Subject     *string              `json:"subject" validate:"omitempty,max=100"`
	Description *string              `json:"description" validate:"omitempty,max=5000"`
	Status      *models.ModuleStatus `json:"status" validate:"omitempty,module_status"`
}

type LessonCreateRequest struct {
	Title      string `json:"title" validate:"required,min=1,max=200"`
	Content    string `json:"content" validate:"omitempty,max=200000"`
	OrderIndex *int   `json:"order_index" validate:"omitempty,min=0"`
}

type LessonUpdateRequest struct {
	Title      *string `json:"title" validate:"omitempty,min=1,max=200"`
	Content    *string `json:"content" validate:"omitempty,max=200000"`
	OrderIndex *int    `json:"order_index" validate:"omitempty,min=0"`
}

type ReorderLessonsRequest struct {
	LessonIDs []uint `json:"lesson_ids" validate:"required,min=1,dive,required"`
}

type QuestionCreateRequest struct {
	Question      string              `json:"question" validate:"required,min=1,max=2000"`
	Type          models.QuestionType `json:"type" validate:"required,question_type"`
	Options       []string            `json:"options" validate:"omitempty,max=10,dive,required,max=500"`
	CorrectIndex  *int                `json:"correct_index" validate:"omitempty,min=0"`
	CorrectAnswer *string             `json:"correct_answer" validate:"omitempty,max=500"`
	OrderIndex    *int                `json:"order_index" validate:"omitempty,min=0"`
}

// Content builds the typed question payload from the flat request fields
func (r *QuestionCreateRequest) Content() (models.QuestionContent, error) {
	return buildQuestionContent(r.Type, r.Options, r.CorrectIndex, r.CorrectAnswer)
}

type QuestionUpdateRequest struct {
	Question      *string              `json:"question" validate:"omitempty,min=1,max=2000"`
	Type          *models.QuestionType `json:"type" validate:"omitempty,question_type"`
	Options       []string             `json:"options" validate:"omitempty,max=10,dive,required,max=500"`
	CorrectIndex  *int                 `json:"correct_index" validate:"omitempty,min=0"`
	CorrectAnswer *string              `json:"correct_answer" validate:"omitempty,max=500"`
	OrderIndex    *int                 `json:"order_index" validate:"omitempty,min=0"`
}

// ChangesContent reports whether the update touches the question payload
func (r *QuestionUpdateRequest) ChangesContent() bool {
	return r.Type != nil || r.Options != nil || r.CorrectIndex != nil || r.CorrectAnswer != nil
}

func buildQuestionContent(qType models.QuestionType, options []string, correctIndex *int, correctAnswer *string) (models.QuestionContent, error) {
	var content models.QuestionContent
	switch qType {
	case models.MultipleChoice:
		if correctIndex == nil {
			return nil, fmt.Errorf("correct_index is required for multiple choice questions")
		}
		content = models.MultipleChoiceContent{Options: options, CorrectIndex: *correctIndex}
	case models.FreeResponse:
		if correctAnswer == nil {
			return nil, fmt.Errorf("correct_answer is required for free response questions")
		}
		content = models.FreeResponseContent{CorrectAnswer: *correctAnswer}
	default:
		return nil, fmt.Errorf("unsupported question type: %s", qType)
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	return content, nil
}

// ===== ASSIGNMENTS =====

// AssignmentTarget names exactly one of ClassID or StudentID
type AssignmentTarget struct {
	ClassID   *uint      `json:"class_id" validate:"required_without=StudentID,excluded_with=StudentID"`
	StudentID *string    `json:"student_id" validate:"required_without=ClassID,excluded_with=ClassID,omitempty,max=255"`
	DueDate   *time.Time `json:"due_date"`
}

type AssignmentsRequest struct {
	Targets []AssignmentTarget `json:"targets" validate:"max=500,dive"`
}

// ===== PROGRESS =====

type QuizAnswer struct {
	QuestionID    uint    `json:"question_id" validate:"required"`
	SelectedIndex *int    `json:"selected_index" validate:"omitempty,min=0"`
	AnswerText    *string `json:"answer_text" validate:"omitempty,max=2000"`
}

type SubmitQuizRequest struct {
	Answers []QuizAnswer `json:"answers" validate:"dive"`
}

// ===== CHAT =====

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=8000"`
}

type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,max=50,dive"`
	ModuleID *uint         `json:"module_id"`
	LessonID *uint         `json:"lesson_id"`
}
