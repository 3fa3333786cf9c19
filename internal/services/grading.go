package services

import (
	"fmt"
	"strings"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

// answerProvided reports whether answer carries a usable response for content
func answerProvided(content models.QuestionContent, answer validator.QuizAnswer) error {
	switch c := content.(type) {
	case models.MultipleChoiceContent:
		if answer.SelectedIndex == nil {
			return fmt.Errorf("selected_index is required")
		}
		if *answer.SelectedIndex < 0 || *answer.SelectedIndex >= len(c.Options) {
			return fmt.Errorf("selected_index %d is out of range", *answer.SelectedIndex)
		}
	case models.FreeResponseContent:
		if answer.AnswerText == nil || strings.TrimSpace(*answer.AnswerText) == "" {
			return fmt.Errorf("answer_text is required")
		}
	default:
		return fmt.Errorf("unsupported question content %T", content)
	}
	return nil
}

// GradeAnswer grades one answer. No partial credit.
func GradeAnswer(content models.QuestionContent, answer validator.QuizAnswer) bool {
	switch c := content.(type) {
	case models.MultipleChoiceContent:
		return answer.SelectedIndex != nil && *answer.SelectedIndex == c.CorrectIndex
	case models.FreeResponseContent:
		return answer.AnswerText != nil && FreeResponseMatches(*answer.AnswerText, c.CorrectAnswer)
	}
	return false
}

// FreeResponseMatches compares case-insensitively after trimming surrounding whitespace
func FreeResponseMatches(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}

// revealAnswer fills the correct answer into a graded result
func revealAnswer(result *models.QuestionResult, content models.QuestionContent) {
	switch c := content.(type) {
	case models.MultipleChoiceContent:
		idx := c.CorrectIndex
		result.CorrectIndex = &idx
	case models.FreeResponseContent:
		ans := c.CorrectAnswer
		result.CorrectAnswer = &ans
	}
}
