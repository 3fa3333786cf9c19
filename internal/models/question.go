package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	FreeResponse   QuestionType = "free_response"
)

type QuizQuestion struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	LessonID   uint         `json:"lesson_id" gorm:"not null;index"`
	Question   string       `json:"question" gorm:"type:text;not null"`
	Type       QuestionType `json:"type" gorm:"not null;size:30"`
	OrderIndex int          `json:"order_index" gorm:"not null;default:0"`

	// Variant payload, see QuestionContent
	Content datatypes.JSON `json:"content" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ===== QUESTION CONTENT VARIANTS =====

// QuestionContent is the per-type payload of a quiz question.
// Implemented by MultipleChoiceContent and FreeResponseContent only.
type QuestionContent interface {
	QuestionType() QuestionType
	Validate() error
	isQuestionContent()
}

type MultipleChoiceContent struct {
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
}

func (MultipleChoiceContent) QuestionType() QuestionType { return MultipleChoice }
func (MultipleChoiceContent) isQuestionContent()         {}

func (c MultipleChoiceContent) Validate() error {
	if len(c.Options) < 2 {
		return errors.New("multiple choice questions need at least 2 options")
	}
	for i, opt := range c.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("option %d is empty", i)
		}
	}
	if c.CorrectIndex < 0 || c.CorrectIndex >= len(c.Options) {
		return fmt.Errorf("correct_index %d is out of range", c.CorrectIndex)
	}
	return nil
}

type FreeResponseContent struct {
	CorrectAnswer string `json:"correct_answer"`
}

func (FreeResponseContent) QuestionType() QuestionType { return FreeResponse }
func (FreeResponseContent) isQuestionContent()         {}

func (c FreeResponseContent) Validate() error {
	if strings.TrimSpace(c.CorrectAnswer) == "" {
		return errors.New("free response questions need a correct answer")
	}
	return nil
}

// DecodeContent unmarshals the stored payload into the variant selected by Type
func (q *QuizQuestion) DecodeContent() (QuestionContent, error) {
	switch q.Type {
	case MultipleChoice:
		var c MultipleChoiceContent
		if err := json.Unmarshal(q.Content, &c); err != nil {
			return nil, fmt.Errorf("decode multiple choice content: %w", err)
		}
		return c, nil
	case FreeResponse:
		var c FreeResponseContent
		if err := json.Unmarshal(q.Content, &c); err != nil {
			return nil, fmt.Errorf("decode free response content: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported question type: %s", q.Type)
	}
}

// SetContent stores content and sets Type to match it
func (q *QuizQuestion) SetContent(content QuestionContent) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode question content: %w", err)
	}
	q.Type = content.QuestionType()
	q.Content = datatypes.JSON(data)
	return nil
}
