package services

import (
	"errors"
	"fmt"

	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

// ===== SENTINEL ERRORS =====

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrModuleNotFound     = errors.New("module not found")
	ErrLessonNotFound     = errors.New("lesson not found")
	ErrQuestionNotFound   = errors.New("question not found")

	// ErrModuleNotAssigned means the student has no StudentModule row for the module
	ErrModuleNotAssigned = errors.New("module is not assigned to this student")

	ErrRoleMismatch    = errors.New("role mismatch")
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrChatUnavailable = errors.New("chat tutor unavailable")
	ErrChatFailed      = errors.New("chat tutor request failed")
)

// ===== VALIDATION ERRORS =====

type ValidationError = validator.ValidationError
type ValidationErrors = validator.ValidationErrors

func fieldError(field, message string, value interface{}) ValidationError {
	return ValidationError{Field: field, Message: message, Value: value, Rule: "business"}
}

// ===== BUSINESS RULE ERRORS =====

// Business rule identifiers
const (
	RuleMembershipPending    = "membership_pending"
	RuleMembershipExists     = "membership_exists"
	RuleMembershipNotPending = "membership_not_pending"
	RuleModuleNoLessons      = "module_has_no_lessons"
	RuleLessonHasQuiz        = "lesson_has_quiz"
	RuleLessonNoQuiz         = "lesson_has_no_quiz"
	RuleRoleImmutable        = "role_immutable"
	RuleClassCodeExhausted   = "class_code_exhausted"
	RuleEmailInUse           = "email_in_use"
)

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	// Conflict marks violations caused by existing state, reported as 409
	Conflict bool `json:"-"`
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

func NewConflictError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context, Conflict: true}
}

// ===== PERMISSION ERRORS =====

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// RoleMismatchError carries the role the account is actually registered with
type RoleMismatchError struct {
	Registered string
	Intended   string
}

func (e *RoleMismatchError) Error() string {
	return fmt.Sprintf("this account is registered as a %s, not a %s", e.Registered, e.Intended)
}

func (e *RoleMismatchError) Unwrap() error { return ErrRoleMismatch }
