package models

import "time"

type LessonProgress struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	StudentID   string     `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_student_lesson"`
	LessonID    uint       `json:"lesson_id" gorm:"not null;uniqueIndex:idx_student_lesson;index"`
	Completed   bool       `json:"completed" gorm:"not null;default:false"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

// StudentModule is the derived per-student module status. Progress is completed/total lessons.
type StudentModule struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	StudentID   string     `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_student_module"`
	ModuleID    uint       `json:"module_id" gorm:"not null;uniqueIndex:idx_student_module;index"`
	Progress    float64    `json:"progress" gorm:"not null;default:0"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Module  *Module `json:"module,omitempty" gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	Student *User   `json:"student,omitempty" gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

// QuizAttempt is the latest answer of a student to one question
type QuizAttempt struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	StudentID     string    `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_student_question;index"`
	QuestionID    uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_student_question"`
	LessonID      uint      `json:"lesson_id" gorm:"not null;index"`
	SelectedIndex *int      `json:"selected_index,omitempty"`
	AnswerText    *string   `json:"answer_text,omitempty" gorm:"type:text"`
	IsCorrect     bool      `json:"is_correct"`
	AttemptedAt   time.Time `json:"attempted_at" gorm:"not null;index"`

	// Relations
	Question *QuizQuestion `json:"question,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

// AllModels lists every persisted entity for migrations
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Class{},
		&ClassMembership{},
		&Module{},
		&Lesson{},
		&QuizQuestion{},
		&ModuleAssignment{},
		&LessonProgress{},
		&StudentModule{},
		&QuizAttempt{},
	}
}
