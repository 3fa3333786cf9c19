package models

import "time"

type ModuleStatus string

const (
	ModuleDraft     ModuleStatus = "draft"
	ModulePublished ModuleStatus = "published"
)

type Module struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Title       string       `json:"title" gorm:"not null;size:200"`
	Subject     string       `json:"subject" gorm:"size:100;index"`
	Description string       `json:"description" gorm:"type:text"`
	TeacherID   string       `json:"teacher_id" gorm:"not null;index;size:255"`
	Status      ModuleStatus `json:"status" gorm:"not null;size:20;default:draft;index"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Lessons []Lesson `json:"lessons,omitempty" gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
}

type Lesson struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ModuleID   uint   `json:"module_id" gorm:"not null;index"`
	Title      string `json:"title" gorm:"not null;size:200"`
	Content    string `json:"content" gorm:"type:text"`
	OrderIndex int    `json:"order_index" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Module    *Module        `json:"module,omitempty" gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE"`
	Questions []QuizQuestion `json:"questions,omitempty" gorm:"foreignKey:LessonID;constraint:OnDelete:CASCADE"`
}

// HasQuiz reports whether the lesson ends with a quiz
func (l *Lesson) HasQuiz() bool {
	return len(l.Questions) > 0
}
