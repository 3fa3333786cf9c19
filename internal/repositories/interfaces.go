package repositories

import (
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type UserFilters struct {
	Query  string           `json:"query"` // matches full name or email
	Role   *models.UserRole `json:"role"`
	IsDemo *bool            `json:"is_demo"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type ModuleFilters struct {
	TeacherID *string              `json:"teacher_id"`
	Status    *models.ModuleStatus `json:"status"`
	Subject   *string              `json:"subject"`
	Query     string               `json:"query"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`    // "created_at", "title", "updated_at"
	SortOrder string               `json:"sort_order"` // "asc", "desc"
}

type MembershipFilters struct {
	Status *models.MembershipStatus `json:"status"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

type StudentModuleFilters struct {
	StudentIDs []string `json:"student_ids"`
	ModuleIDs  []uint   `json:"module_ids"`
}

type AttemptFilters struct {
	StudentID string     `json:"student_id"`
	ModuleID  *uint      `json:"module_id"`
	LessonIDs []uint     `json:"lesson_ids"`
	Since     *time.Time `json:"since"`
	Limit     int        `json:"limit"`
}

// ===== SHARED HELPER STRUCTS =====

type LessonOrder struct {
	LessonID   uint `json:"lesson_id"`
	OrderIndex int  `json:"order_index"`
}

// StudentAssignment is one module visible to a student, with the earliest due date across targets
type StudentAssignment struct {
	ModuleID uint       `json:"module_id"`
	DueDate  *time.Time `json:"due_date"`
}
