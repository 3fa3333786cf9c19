package services

import (
	"context"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type LoginRequest = validator.LoginRequest
type CompleteProfileRequest = validator.CompleteProfileRequest
type ClassCreateRequest = validator.ClassCreateRequest
type ClassUpdateRequest = validator.ClassUpdateRequest
type ModuleCreateRequest = validator.ModuleCreateRequest
type ModuleUpdateRequest = validator.ModuleUpdateRequest
type LessonCreateRequest = validator.LessonCreateRequest
type LessonUpdateRequest = validator.LessonUpdateRequest
type ReorderLessonsRequest = validator.ReorderLessonsRequest
type QuestionCreateRequest = validator.QuestionCreateRequest
type QuestionUpdateRequest = validator.QuestionUpdateRequest
type AssignmentsRequest = validator.AssignmentsRequest
type SubmitQuizRequest = validator.SubmitQuizRequest
type ChatRequest = validator.ChatRequest

type LoginStatus string

const (
	LoginOK              LoginStatus = "ok"
	LoginProfileRequired LoginStatus = "profile_required"
)

// ProfileDraft holds the profile fields already known for an identity
type ProfileDraft struct {
	Email      string           `json:"email"`
	FullName   string           `json:"full_name,omitempty"`
	Role       *models.UserRole `json:"role,omitempty"`
	GradeLevel *int             `json:"grade_level,omitempty"`
}

type LoginResponse struct {
	Status  LoginStatus   `json:"status"`
	User    *models.User  `json:"user,omitempty"`
	Profile *ProfileDraft `json:"profile,omitempty"`
}

type MeResponse struct {
	Identity        *models.Identity `json:"identity"`
	User            *models.User     `json:"user,omitempty"`
	ProfileComplete bool             `json:"profile_complete"`
}

type DemoSession struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type CleanupResponse struct {
	Deleted int `json:"deleted"`
}

type ModuleListResponse struct {
	Modules []*models.Module `json:"modules"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type StudentListResponse struct {
	Students []*models.User `json:"students"`
	Total    int64          `json:"total"`
}

type AssignmentResponse struct {
	Module      *models.Module             `json:"module"`
	Assignments []*models.ModuleAssignment `json:"assignments"`
	Added       int                        `json:"added"`
	Updated     int                        `json:"updated"`
	Removed     int                        `json:"removed"`
}

// LessonCompletion is the outcome of completing a lesson without a quiz
type LessonCompletion struct {
	LessonID        uint    `json:"lesson_id"`
	LessonCompleted bool    `json:"lesson_completed"`
	ModuleProgress  float64 `json:"module_progress"`
	ModuleCompleted bool    `json:"module_completed"`
}

type ChatResponse struct {
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

// ClassExport is a rendered progress workbook
type ClassExport struct {
	Filename string
	Content  []byte
}

// ===== SERVICE INTERFACES =====

// AuthService resolves authenticated identities to application users
type AuthService interface {
	ResolveLogin(ctx context.Context, identity *models.Identity, req *LoginRequest) (*LoginResponse, error)
	CompleteProfile(ctx context.Context, identity *models.Identity, req *CompleteProfileRequest) (*models.User, error)
	Me(ctx context.Context, identity *models.Identity) (*MeResponse, error)
}

// DemoService manages the shared demo accounts
type DemoService interface {
	Login(ctx context.Context, role models.UserRole) (*DemoSession, error)
	Cleanup(ctx context.Context, adminKey string) (*CleanupResponse, error)
}

type ClassService interface {
	// Teacher operations
	Create(ctx context.Context, teacherID string, req *ClassCreateRequest) (*models.Class, error)
	List(ctx context.Context, teacherID string) ([]*models.ClassSummary, error)
	Get(ctx context.Context, classID uint, teacherID string) (*models.ClassSummary, error)
	Update(ctx context.Context, classID uint, teacherID string, req *ClassUpdateRequest) (*models.Class, error)
	Delete(ctx context.Context, classID uint, teacherID string) error
	ListMembers(ctx context.Context, classID uint, teacherID string, status *models.MembershipStatus) ([]*models.ClassMembership, error)
	AddStudent(ctx context.Context, classID uint, teacherID, studentID string) (*models.ClassMembership, error)
	ApproveMembership(ctx context.Context, membershipID uint, teacherID string) (*models.ClassMembership, error)
	RejectMembership(ctx context.Context, membershipID uint, teacherID string) (*models.ClassMembership, error)
	RemoveMember(ctx context.Context, classID uint, teacherID, studentID string) error
	SearchStudents(ctx context.Context, filters repositories.UserFilters) (*StudentListResponse, error)

	// Student operations
	JoinByCode(ctx context.Context, studentID, code string) (*models.ClassMembership, error)
	RequestToJoin(ctx context.Context, studentID string, classID uint) (*models.ClassMembership, error)
	ListStudentClasses(ctx context.Context, studentID string) ([]*models.ClassMembership, error)
	SearchTeachers(ctx context.Context, query string, limit int) ([]*models.TeacherDirectoryEntry, error)
	TeacherClasses(ctx context.Context, teacherID string) ([]*models.Class, error)
}

// ModuleService handles module, lesson and quiz question authoring
type ModuleService interface {
	Create(ctx context.Context, teacherID string, req *ModuleCreateRequest) (*models.Module, error)
	List(ctx context.Context, teacherID string, filters repositories.ModuleFilters) (*ModuleListResponse, error)
	Get(ctx context.Context, moduleID uint, teacherID string) (*models.Module, error)
	Update(ctx context.Context, moduleID uint, teacherID string, req *ModuleUpdateRequest) (*models.Module, error)
	Delete(ctx context.Context, moduleID uint, teacherID string) error

	AddLesson(ctx context.Context, moduleID uint, teacherID string, req *LessonCreateRequest) (*models.Lesson, error)
	UpdateLesson(ctx context.Context, lessonID uint, teacherID string, req *LessonUpdateRequest) (*models.Lesson, error)
	DeleteLesson(ctx context.Context, lessonID uint, teacherID string) error
	ReorderLessons(ctx context.Context, moduleID uint, teacherID string, req *ReorderLessonsRequest) ([]*models.Lesson, error)

	AddQuestion(ctx context.Context, lessonID uint, teacherID string, req *QuestionCreateRequest) (*models.QuizQuestion, error)
	UpdateQuestion(ctx context.Context, questionID uint, teacherID string, req *QuestionUpdateRequest) (*models.QuizQuestion, error)
	DeleteQuestion(ctx context.Context, questionID uint, teacherID string) error
}

// AssignmentService fans module assignments out to classes and students
type AssignmentService interface {
	Publish(ctx context.Context, moduleID uint, teacherID string, req *AssignmentsRequest) (*AssignmentResponse, error)
	UpdateAssignments(ctx context.Context, moduleID uint, teacherID string, req *AssignmentsRequest) (*AssignmentResponse, error)
	ListAssignments(ctx context.Context, moduleID uint, teacherID string) ([]*models.ModuleAssignment, error)
}

// ProgressService records student work and derives module progress
type ProgressService interface {
	SubmitQuiz(ctx context.Context, studentID string, lessonID uint, req *SubmitQuizRequest) (*models.QuizResult, error)
	CompleteLesson(ctx context.Context, studentID string, lessonID uint) (*LessonCompletion, error)
	ListStudentModules(ctx context.Context, studentID string) ([]models.StudentModuleView, error)
	GetStudentModule(ctx context.Context, studentID string, moduleID uint) (*models.StudentModuleDetail, error)
	GetStudentLesson(ctx context.Context, studentID string, lessonID uint) (*models.StudentLessonView, error)
	ListAttempts(ctx context.Context, studentID string, lessonID *uint) ([]*models.QuizAttempt, error)
}

// ReportService builds teacher progress reports
type ReportService interface {
	ClassProgress(ctx context.Context, teacherID string, classID uint) ([]models.ProgressRow, error)
	ModuleProgress(ctx context.Context, teacherID string, moduleID uint) ([]models.ProgressRow, error)
	ExportClassProgress(ctx context.Context, teacherID string, classID uint) (*ClassExport, error)
}

// ChatService forwards tutor conversations to the completion server
type ChatService interface {
	Chat(ctx context.Context, studentID string, req *ChatRequest) (*ChatResponse, error)
}

// ServiceManager manages all services and their dependencies
type ServiceManager interface {
	Auth() AuthService
	Demo() DemoService
	Class() ClassService
	Module() ModuleService
	Assignment() AssignmentService
	Progress() ProgressService
	Report() ReportService
	Chat() ChatService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
