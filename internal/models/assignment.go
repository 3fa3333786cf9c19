package models

import (
	"fmt"
	"time"
)

// ModuleAssignment targets a module at exactly one class or one student
type ModuleAssignment struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	ModuleID  uint       `json:"module_id" gorm:"not null;index;uniqueIndex:idx_module_class;uniqueIndex:idx_module_student"`
	ClassID   *uint      `json:"class_id,omitempty" gorm:"index;uniqueIndex:idx_module_class"`
	StudentID *string    `json:"student_id,omitempty" gorm:"size:255;index;uniqueIndex:idx_module_student"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Module *Module `json:"module,omitempty" gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
}

// TargetKey identifies the assignment target independent of the row id
func (a *ModuleAssignment) TargetKey() string {
	switch {
	case a.ClassID != nil:
		return fmt.Sprintf("class:%d", *a.ClassID)
	case a.StudentID != nil:
		return "student:" + *a.StudentID
	default:
		return ""
	}
}
