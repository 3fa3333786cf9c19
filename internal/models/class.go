package models

import "time"

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
	MembershipRejected MembershipStatus = "rejected"
)

type Class struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"not null;size:200"`
	Code      string `json:"code" gorm:"uniqueIndex;not null;size:6"`
	TeacherID string `json:"teacher_id" gorm:"not null;index;size:255"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Teacher *User `json:"teacher,omitempty" gorm:"foreignKey:TeacherID;constraint:OnDelete:CASCADE"`
}

// ClassMembership links a student to a class. One row per (class, student).
type ClassMembership struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	ClassID   uint             `json:"class_id" gorm:"not null;uniqueIndex:idx_class_student"`
	StudentID string           `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_class_student;index"`
	Status    MembershipStatus `json:"status" gorm:"not null;size:20;default:pending;index"`
	DecidedAt *time.Time       `json:"decided_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Class   *Class `json:"class,omitempty" gorm:"foreignKey:ClassID;constraint:OnDelete:CASCADE"`
	Student *User  `json:"student,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}
