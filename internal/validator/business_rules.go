package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// Class codes use an alphabet without look-alike characters
const ClassCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const ClassCodeLength = 6

const (
	MinGradeLevel = 0
	MaxGradeLevel = 12
)

// NormalizeClassCode trims and upper-cases a code typed by a student
func NormalizeClassCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsClassCode reports whether code is a well-formed class code
func IsClassCode(code string) bool {
	code = NormalizeClassCode(code)
	if len(code) != ClassCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(ClassCodeAlphabet, r) {
			return false
		}
	}
	return true
}

func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(fl.Field().String()).Valid()
	})

	v.validate.RegisterValidation("grade_level", func(fl validator.FieldLevel) bool {
		level := fl.Field().Int()
		return level >= MinGradeLevel && level <= MaxGradeLevel
	})

	v.validate.RegisterValidation("class_code", func(fl validator.FieldLevel) bool {
		return IsClassCode(fl.Field().String())
	})

	v.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		switch models.QuestionType(fl.Field().String()) {
		case models.MultipleChoice, models.FreeResponse:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("module_status", func(fl validator.FieldLevel) bool {
		switch models.ModuleStatus(fl.Field().String()) {
		case models.ModuleDraft, models.ModulePublished:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("membership_status", func(fl validator.FieldLevel) bool {
		switch models.MembershipStatus(fl.Field().String()) {
		case models.MembershipPending, models.MembershipApproved, models.MembershipRejected:
			return true
		}
		return false
	})
}
