package repositories

import "context"

// Repository aggregates every LMS repository
type Repository interface {
	// People
	User() UserRepository
	Identity() IdentityRepository

	// Classes
	Class() ClassRepository
	Membership() MembershipRepository

	// Content
	Module() ModuleRepository
	Lesson() LessonRepository
	Question() QuestionRepository
	Assignment() AssignmentRepository

	// Student state
	Progress() ProgressRepository

	// WithTransaction runs fn against a repository bound to one database transaction.
	// Identity is external and not part of the transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the repository lifecycle
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
