package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories/casdoor"
)

// PostgreSQLRepository implements repositories.Repository on gorm
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	user       repositories.UserRepository
	identity   repositories.IdentityRepository
	class      repositories.ClassRepository
	membership repositories.MembershipRepository
	module     repositories.ModuleRepository
	lesson     repositories.LessonRepository
	question   repositories.QuestionRepository
	assignment repositories.AssignmentRepository
	progress   repositories.ProgressRepository
}

// RepositoryConfig holds what the repositories need to connect
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig

	// CacheManager is shared with the services when set
	CacheManager *cache.CacheManager
	// Identity overrides the Casdoor adapter when set
	Identity repositories.IdentityRepository
}

func NewPostgreSQLRepository(config RepositoryConfig) repositories.Repository {
	cacheManager := config.CacheManager
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(config.RedisClient)
	}

	identity := config.Identity
	if identity == nil {
		identity = casdoor.NewIdentityCasdoor(config.CasdoorConfig, cacheManager)
	}

	return newRepository(config.DB, config.RedisClient, cacheManager, identity)
}

// newRepository binds every sub-repository to db, which may be a transaction
func newRepository(db *gorm.DB, redisClient *redis.Client, cm *cache.CacheManager, identity repositories.IdentityRepository) *PostgreSQLRepository {
	return &PostgreSQLRepository{
		db:           db,
		redisClient:  redisClient,
		cacheManager: cm,
		user:         NewUserPostgreSQL(db),
		identity:     identity,
		class:        NewClassPostgreSQL(db, cm),
		membership:   NewMembershipPostgreSQL(db),
		module:       NewModulePostgreSQL(db, cm),
		lesson:       NewLessonPostgreSQL(db),
		question:     NewQuestionPostgreSQL(db),
		assignment:   NewAssignmentPostgreSQL(db),
		progress:     NewProgressPostgreSQL(db),
	}
}

func (r *PostgreSQLRepository) User() repositories.UserRepository             { return r.user }
func (r *PostgreSQLRepository) Identity() repositories.IdentityRepository     { return r.identity }
func (r *PostgreSQLRepository) Class() repositories.ClassRepository           { return r.class }
func (r *PostgreSQLRepository) Membership() repositories.MembershipRepository { return r.membership }
func (r *PostgreSQLRepository) Module() repositories.ModuleRepository         { return r.module }
func (r *PostgreSQLRepository) Lesson() repositories.LessonRepository         { return r.lesson }
func (r *PostgreSQLRepository) Question() repositories.QuestionRepository     { return r.question }
func (r *PostgreSQLRepository) Assignment() repositories.AssignmentRepository { return r.assignment }
func (r *PostgreSQLRepository) Progress() repositories.ProgressRepository     { return r.progress }

// WithTransaction executes fn within a database transaction
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newRepository(tx, r.redisClient, r.cacheManager, r.identity))
	})
}

// Ping checks database and cache connectivity
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if r.redisClient != nil {
		if err := r.cacheManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache ping failed: %w", err)
		}
	}
	return nil
}

// Close closes the database pool and the redis client
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			return fmt.Errorf("failed to close Redis: %w", err)
		}
	}
	return nil
}

// RepositoryManager implements repositories.RepositoryManager
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{config: config}
}

// Initialize verifies connectivity and builds the repository
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	if rm.config.RedisClient != nil {
		if err := rm.config.RedisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config)
	return nil
}

func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return rm.repo.Ping(ctx)
}

func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}
	return rm.repo.Close()
}
