package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/session"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ===== REPOSITORY STUBS =====

type stubIdentities struct {
	repositories.IdentityRepository
	tokens map[string]*models.Identity
}

func (s *stubIdentities) ParseToken(token string) (*models.Identity, error) {
	if identity, ok := s.tokens[token]; ok {
		return identity, nil
	}
	return nil, repositories.ErrNotFound
}

type stubUsers struct {
	repositories.UserRepository
	users map[string]*models.User
	err   error
}

func (s *stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return nil, repositories.ErrNotFound
}

type stubRepository struct {
	repositories.Repository
	identities *stubIdentities
	users      *stubUsers
}

func (s *stubRepository) Identity() repositories.IdentityRepository { return s.identities }
func (s *stubRepository) User() repositories.UserRepository         { return s.users }

// ===== SERVICE STUBS =====
// Each stub embeds its interface, calling a method that is not overridden panics.

type stubAuthService struct {
	services.AuthService
	login func(identity *models.Identity, req *services.LoginRequest) (*services.LoginResponse, error)
}

func (s *stubAuthService) ResolveLogin(ctx context.Context, identity *models.Identity, req *services.LoginRequest) (*services.LoginResponse, error) {
	return s.login(identity, req)
}

type stubDemoService struct {
	services.DemoService
	gotKey string
}

func (s *stubDemoService) Cleanup(ctx context.Context, adminKey string) (*services.CleanupResponse, error) {
	s.gotKey = adminKey
	if adminKey != "s3cret" {
		return nil, services.ErrInvalidAdminKey
	}
	return &services.CleanupResponse{Deleted: 3}, nil
}

type stubClassService struct {
	services.ClassService
	gotCode string
}

func (s *stubClassService) List(ctx context.Context, teacherID string) ([]*models.ClassSummary, error) {
	return []*models.ClassSummary{}, nil
}

func (s *stubClassService) JoinByCode(ctx context.Context, studentID, code string) (*models.ClassMembership, error) {
	s.gotCode = code
	return nil, services.NewConflictError(services.RuleMembershipPending,
		"You already have a pending request to join this class", nil)
}

type stubProgressService struct {
	services.ProgressService
	gotLesson uint
	gotReq    *services.SubmitQuizRequest
	gotFilter *uint
}

func (s *stubProgressService) SubmitQuiz(ctx context.Context, studentID string, lessonID uint, req *services.SubmitQuizRequest) (*models.QuizResult, error) {
	s.gotLesson = lessonID
	s.gotReq = req
	return &models.QuizResult{LessonID: lessonID, LessonCompleted: true, ModuleProgress: 1, ModuleCompleted: true}, nil
}

func (s *stubProgressService) ListAttempts(ctx context.Context, studentID string, lessonID *uint) ([]*models.QuizAttempt, error) {
	s.gotFilter = lessonID
	return []*models.QuizAttempt{}, nil
}

type stubReportService struct {
	services.ReportService
}

func (s *stubReportService) ExportClassProgress(ctx context.Context, teacherID string, classID uint) (*services.ClassExport, error) {
	if classID != 7 {
		return nil, services.ErrClassNotFound
	}
	return &services.ClassExport{Filename: "class-hjklmn-progress-20240304.xlsx", Content: []byte("PK-workbook")}, nil
}

type stubChatService struct {
	services.ChatService
	resp *services.ChatResponse
	err  error
}

func (s *stubChatService) Chat(ctx context.Context, studentID string, req *services.ChatRequest) (*services.ChatResponse, error) {
	return s.resp, s.err
}

type stubServiceManager struct {
	auth      *stubAuthService
	demo      *stubDemoService
	class     *stubClassService
	progress  *stubProgressService
	report    *stubReportService
	chat      *stubChatService
	healthErr error
}

func newStubServiceManager() *stubServiceManager {
	return &stubServiceManager{
		auth:     &stubAuthService{},
		demo:     &stubDemoService{},
		class:    &stubClassService{},
		progress: &stubProgressService{},
		report:   &stubReportService{},
		chat:     &stubChatService{},
	}
}

func (s *stubServiceManager) Auth() services.AuthService             { return s.auth }
func (s *stubServiceManager) Demo() services.DemoService             { return s.demo }
func (s *stubServiceManager) Class() services.ClassService           { return s.class }
func (s *stubServiceManager) Module() services.ModuleService         { return nil }
func (s *stubServiceManager) Assignment() services.AssignmentService { return nil }
func (s *stubServiceManager) Progress() services.ProgressService     { return s.progress }
func (s *stubServiceManager) Report() services.ReportService         { return s.report }
func (s *stubServiceManager) Chat() services.ChatService             { return s.chat }

func (s *stubServiceManager) Initialize(ctx context.Context) error  { return nil }
func (s *stubServiceManager) HealthCheck(ctx context.Context) error { return s.healthErr }
func (s *stubServiceManager) Shutdown(ctx context.Context) error    { return nil }

// ===== TEST SERVER =====

type testServer struct {
	router   *gin.Engine
	services *stubServiceManager
	sessions *session.Issuer
	repo     *stubRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := &stubRepository{
		identities: &stubIdentities{tokens: map[string]*models.Identity{}},
		users: &stubUsers{users: map[string]*models.User{
			"teacher-1": {ID: "teacher-1", Email: "frizzle@school.test", FullName: "Ms Frizzle", Role: models.RoleTeacher},
			"student-1": {ID: "student-1", Email: "arnold@school.test", FullName: "Arnold", Role: models.RoleStudent},
		}},
	}
	sm := newStubServiceManager()
	sessions := session.NewIssuer("test-secret", "aicademy-test", time.Hour)

	router := gin.New()
	SetupMiddleware(router, testLogger(), nil)
	NewHandlerManager(sm, repo, sessions, testLogger()).SetupRoutes(router)

	return &testServer{router: router, services: sm, sessions: sessions, repo: repo}
}

// tokenFor issues a session token for id
func (ts *testServer) tokenFor(t *testing.T, id string) string {
	t.Helper()
	token, _, err := ts.sessions.Issue(&models.Identity{ID: id, Email: id + "@school.test"})
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), "body: %s", w.Body.String())
}
