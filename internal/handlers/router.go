package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alexrendlerCS/aicademy-sub000/internal/metrics"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/services"
	"github.com/alexrendlerCS/aicademy-sub000/internal/session"
	"github.com/alexrendlerCS/aicademy-sub000/internal/utils"
)

type HandlerManager struct {
	serviceManager    services.ServiceManager
	authHandler       *AuthHandler
	classHandler      *ClassHandler
	userHandler       *UserHandler
	moduleHandler     *ModuleHandler
	assignmentHandler *AssignmentHandler
	reportHandler     *ReportHandler
	studentHandler    *StudentHandler
	chatHandler       *ChatHandler
	authMiddleware    *CasdoorAuthMiddleware
	logger            utils.Logger
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	repo repositories.Repository,
	sessions *session.Issuer,
	logger utils.Logger,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(repo.Identity(), repo.User(), sessions, logger)

	return &HandlerManager{
		serviceManager:    serviceManager,
		authHandler:       NewAuthHandler(serviceManager.Auth(), serviceManager.Demo(), logger),
		classHandler:      NewClassHandler(serviceManager.Class(), logger),
		userHandler:       NewUserHandler(serviceManager.Class(), logger),
		moduleHandler:     NewModuleHandler(serviceManager.Module(), logger),
		assignmentHandler: NewAssignmentHandler(serviceManager.Assignment(), logger),
		reportHandler:     NewReportHandler(serviceManager.Report(), logger),
		studentHandler:    NewStudentHandler(serviceManager.Class(), serviceManager.Progress(), logger),
		chatHandler:       NewChatHandler(serviceManager.Chat(), logger),
		authMiddleware:    authMiddleware,
		logger:            logger,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/api/v1")

	// Public routes
	v1.POST("/auth/demo", hm.authHandler.DemoLogin)
	v1.POST("/auth/demo/cleanup", hm.authHandler.DemoCleanup)

	authed := v1.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Any authenticated identity, profile or not
		auth := authed.Group("/auth")
		{
			auth.POST("/login", hm.authHandler.Login)
			auth.POST("/profile", hm.authHandler.CompleteProfile)
			auth.GET("/me", hm.authHandler.Me)
		}

		requireTeacher := hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher)
		requireStudent := hm.authMiddleware.RequireRoleMiddleware(models.RoleStudent)

		classes := authed.Group("/classes", requireTeacher)
		{
			classes.POST("", hm.classHandler.CreateClass)
			classes.GET("", hm.classHandler.ListClasses)
			classes.GET("/:id", hm.classHandler.GetClass)
			classes.PUT("/:id", hm.classHandler.UpdateClass)
			classes.DELETE("/:id", hm.classHandler.DeleteClass)

			classes.GET("/:id/members", hm.classHandler.ListMembers)
			classes.POST("/:id/members", hm.classHandler.AddMember)
			classes.DELETE("/:id/members/:student_id", hm.classHandler.RemoveMember)

			classes.GET("/:id/progress", hm.reportHandler.ClassProgress)
			classes.GET("/:id/progress/export", hm.reportHandler.ExportClassProgress)
		}

		memberships := authed.Group("/memberships", requireTeacher)
		{
			memberships.POST("/:id/approve", hm.classHandler.ApproveMembership)
			memberships.POST("/:id/reject", hm.classHandler.RejectMembership)
		}

		authed.GET("/users/students", requireTeacher, hm.userHandler.SearchStudents)

		modules := authed.Group("/modules", requireTeacher)
		{
			modules.POST("", hm.moduleHandler.CreateModule)
			modules.GET("", hm.moduleHandler.ListModules)
			modules.GET("/:id", hm.moduleHandler.GetModule)
			modules.PUT("/:id", hm.moduleHandler.UpdateModule)
			modules.DELETE("/:id", hm.moduleHandler.DeleteModule)

			modules.POST("/:id/lessons", hm.moduleHandler.AddLesson)
			modules.PUT("/:id/lessons/order", hm.moduleHandler.ReorderLessons)

			modules.POST("/:id/publish", hm.assignmentHandler.PublishModule)
			modules.GET("/:id/assignments", hm.assignmentHandler.ListAssignments)
			modules.PUT("/:id/assignments", hm.assignmentHandler.UpdateAssignments)

			modules.GET("/:id/progress", hm.reportHandler.ModuleProgress)
		}

		lessons := authed.Group("/lessons", requireTeacher)
		{
			lessons.PUT("/:id", hm.moduleHandler.UpdateLesson)
			lessons.DELETE("/:id", hm.moduleHandler.DeleteLesson)
			lessons.POST("/:id/questions", hm.moduleHandler.AddQuestion)
		}

		questions := authed.Group("/questions", requireTeacher)
		{
			questions.PUT("/:id", hm.moduleHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.moduleHandler.DeleteQuestion)
		}

		teachers := authed.Group("/teachers", requireStudent)
		{
			teachers.GET("", hm.userHandler.SearchTeachers)
			teachers.GET("/:id/classes", hm.userHandler.TeacherClasses)
		}

		students := authed.Group("/students/me", requireStudent)
		{
			students.GET("/classes", hm.studentHandler.ListMyClasses)
			students.POST("/classes/join", hm.studentHandler.JoinClass)
			students.POST("/classes/:id/request", hm.studentHandler.RequestToJoin)

			students.GET("/modules", hm.studentHandler.ListMyModules)
			students.GET("/modules/:id", hm.studentHandler.GetMyModule)

			students.GET("/lessons/:id", hm.studentHandler.GetMyLesson)
			students.POST("/lessons/:id/quiz", hm.studentHandler.SubmitQuiz)
			students.POST("/lessons/:id/complete", hm.studentHandler.CompleteLesson)

			students.GET("/attempts", hm.studentHandler.ListMyAttempts)
		}

		authed.POST("/chat", requireStudent, hm.chatHandler.Chat)
	}
}

// HealthCheck reports whether the database and services are reachable
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "lms-service",
	}

	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		utils.FromContext(c.Request.Context(), hm.logger).Warn("Health check failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}

	c.JSON(status, body)
}
