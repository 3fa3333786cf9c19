package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/chat"
	"github.com/alexrendlerCS/aicademy-sub000/internal/events"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/session"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Demo DemoConfig

	// DefaultTimeout bounds health checks
	DefaultTimeout time.Duration
}

// ServiceDependencies are the shared collaborators handed to every service
type ServiceDependencies struct {
	Repo      repositories.Repository
	Cache     *cache.CacheManager
	Publisher events.EventPublisher
	Sessions  *session.Issuer
	Completer chat.Completer
	Logger    *slog.Logger
	Validator *validator.Validator
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   ServiceDependencies
	config ServiceManagerConfig

	// Service instances
	authService       AuthService
	demoService       DemoService
	classService      ClassService
	moduleService     ModuleService
	assignmentService AssignmentService
	progressService   ProgressService
	reportService     ReportService
	chatService       ChatService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil)
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	return &serviceManager{deps: deps, config: config}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.deps.Logger.Info("Initializing service manager")

	if err := sm.validateDependencies(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	sm.initializeServices()

	sm.initialized = true
	sm.deps.Logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) validateDependencies() error {
	var missing []error
	if sm.deps.Repo == nil {
		missing = append(missing, errors.New("repository is required"))
	}
	if sm.deps.Logger == nil {
		missing = append(missing, errors.New("logger is required"))
	}
	if sm.deps.Validator == nil {
		missing = append(missing, errors.New("validator is required"))
	}
	if sm.deps.Sessions == nil {
		missing = append(missing, errors.New("session issuer is required"))
	}
	if sm.deps.Completer == nil {
		missing = append(missing, errors.New("chat completer is required"))
	}
	return errors.Join(missing...)
}

func (sm *serviceManager) initializeServices() {
	d := sm.deps

	sm.authService = NewAuthService(d.Repo, d.Logger, d.Validator)
	sm.demoService = NewDemoService(d.Repo, d.Sessions, d.Logger, sm.config.Demo)
	sm.classService = NewClassService(d.Repo, d.Cache, d.Publisher, d.Logger, d.Validator)
	sm.moduleService = NewModuleService(d.Repo, d.Cache, d.Logger, d.Validator)
	sm.assignmentService = NewAssignmentService(d.Repo, d.Cache, d.Publisher, d.Logger, d.Validator)
	sm.progressService = NewProgressService(d.Repo, d.Cache, d.Publisher, d.Logger, d.Validator)
	sm.reportService = NewReportService(d.Repo, d.Logger)
	sm.chatService = NewChatService(d.Repo, d.Completer, d.Logger, d.Validator)

	d.Logger.Info("Services initialized",
		"services", []string{"auth", "demo", "class", "module", "assignment", "progress", "report", "chat"})
}

// Service getters
func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.authService
}

func (sm *serviceManager) Demo() DemoService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.demoService
}

func (sm *serviceManager) Class() ClassService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.classService
}

func (sm *serviceManager) Module() ModuleService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.moduleService
}

func (sm *serviceManager) Assignment() AssignmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.assignmentService
}

func (sm *serviceManager) Progress() ProgressService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.progressService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.reportService
}

func (sm *serviceManager) Chat() ChatService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.mustBeInitialized()
	return sm.chatService
}

func (sm *serviceManager) mustBeInitialized() {
	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	ctx, cancel := context.WithTimeout(ctx, sm.config.DefaultTimeout)
	defer cancel()

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	// Redis is optional, a failing cache only degrades performance
	if err := sm.deps.Cache.HealthCheck(ctx); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
		sm.deps.Logger.Warn("Cache health check failed", "error", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.Info("Shutting down service manager")

	var errs []error
	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.deps.Logger.Error("Failed to close event publisher", "error", err)
			errs = append(errs, err)
		}
	}

	sm.shutdown = true
	sm.deps.Logger.Info("Service manager shut down completed")

	return errors.Join(errs...)
}
