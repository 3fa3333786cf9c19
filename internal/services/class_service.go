package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/events"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

const maxClassCodeAttempts = 5

const (
	msgPendingRequest = "You already have a pending request to join this class"
	msgAlreadyMember  = "You are already a member of this class"
)

type classService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *validator.Validator
	now       func() time.Time
	newCode   func() (string, error)
}

func NewClassService(repo repositories.Repository, cm *cache.CacheManager, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) ClassService {
	return &classService{
		repo:      repo,
		cache:     cm,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		now:       time.Now,
		newCode:   GenerateClassCode,
	}
}

// GenerateClassCode draws a random code from the unambiguous class code alphabet
func GenerateClassCode() (string, error) {
	alphabet := validator.ClassCodeAlphabet
	max := big.NewInt(int64(len(alphabet)))
	code := make([]byte, validator.ClassCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate class code: %w", err)
		}
		code[i] = alphabet[n.Int64()]
	}
	return string(code), nil
}

// ===== TEACHER OPERATIONS =====

func (s *classService) Create(ctx context.Context, teacherID string, req *ClassCreateRequest) (*models.Class, error) {
	s.logger.Info("Creating class", "teacher_id", teacherID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxClassCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}

		exists, err := s.repo.Class().ExistsByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to check class code: %w", err)
		}
		if exists {
			s.logger.Warn("Class code collision", "attempt", attempt)
			continue
		}

		class := &models.Class{Name: req.Name, Code: code, TeacherID: teacherID}
		if err := s.repo.Class().Create(ctx, class); err != nil {
			// Lost a race for the same code
			if repositories.IsDuplicateError(err) {
				s.logger.Warn("Class code collision on insert", "attempt", attempt)
				continue
			}
			return nil, fmt.Errorf("failed to create class: %w", err)
		}

		s.logger.Info("Class created", "class_id", class.ID, "code", class.Code)
		return class, nil
	}

	return nil, NewBusinessRuleError(RuleClassCodeExhausted, "Could not generate a unique class code, please try again", map[string]interface{}{
		"attempts": maxClassCodeAttempts,
	})
}

func (s *classService) List(ctx context.Context, teacherID string) ([]*models.ClassSummary, error) {
	classes, err := s.repo.Class().ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return s.summaries(ctx, classes)
}

func (s *classService) Get(ctx context.Context, classID uint, teacherID string) (*models.ClassSummary, error) {
	class, err := s.ownedClass(ctx, classID, teacherID, "read")
	if err != nil {
		return nil, err
	}
	summaries, err := s.summaries(ctx, []*models.Class{class})
	if err != nil {
		return nil, err
	}
	return summaries[0], nil
}

func (s *classService) summaries(ctx context.Context, classes []*models.Class) ([]*models.ClassSummary, error) {
	ids := make([]uint, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	counts, err := s.repo.Membership().CountByClass(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	out := make([]*models.ClassSummary, 0, len(classes))
	for _, c := range classes {
		n := counts[c.ID]
		out = append(out, &models.ClassSummary{Class: c, MemberCount: n.Approved, PendingCount: n.Pending})
	}
	return out, nil
}

func (s *classService) Update(ctx context.Context, classID uint, teacherID string, req *ClassUpdateRequest) (*models.Class, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	class, err := s.ownedClass(ctx, classID, teacherID, "update")
	if err != nil {
		return nil, err
	}

	class.Name = req.Name
	if err := s.repo.Class().Update(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to update class: %w", err)
	}
	return class, nil
}

func (s *classService) Delete(ctx context.Context, classID uint, teacherID string) error {
	if _, err := s.ownedClass(ctx, classID, teacherID, "delete"); err != nil {
		return err
	}
	members, err := s.repo.Membership().ApprovedStudentIDs(ctx, []uint{classID})
	if err != nil {
		return fmt.Errorf("failed to list class members: %w", err)
	}

	if err := s.repo.Class().Delete(ctx, classID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrClassNotFound
		}
		return fmt.Errorf("failed to delete class: %w", err)
	}

	cache.InvalidateStudentProgress(ctx, s.cache, members...)
	s.logger.Info("Class deleted", "class_id", classID, "teacher_id", teacherID)
	return nil
}

func (s *classService) ListMembers(ctx context.Context, classID uint, teacherID string, status *models.MembershipStatus) ([]*models.ClassMembership, error) {
	if _, err := s.ownedClass(ctx, classID, teacherID, "list_members"); err != nil {
		return nil, err
	}
	members, err := s.repo.Membership().ListByClass(ctx, classID, repositories.MembershipFilters{Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddStudent enrolls a student directly, approved from the start
func (s *classService) AddStudent(ctx context.Context, classID uint, teacherID, studentID string) (*models.ClassMembership, error) {
	if _, err := s.ownedClass(ctx, classID, teacherID, "add_member"); err != nil {
		return nil, err
	}
	if _, err := s.student(ctx, studentID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var membership *models.ClassMembership
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		m := &models.ClassMembership{ClassID: classID, StudentID: studentID, Status: models.MembershipApproved, DecidedAt: &now}
		created, err := tx.Membership().CreateIfAbsent(ctx, m)
		if err != nil {
			return fmt.Errorf("failed to create membership: %w", err)
		}
		if !created {
			m, err = tx.Membership().Get(ctx, classID, studentID)
			if err != nil {
				return fmt.Errorf("failed to get membership: %w", err)
			}
			if m.Status == models.MembershipApproved {
				return NewConflictError(RuleMembershipExists, "Student is already a member of this class", map[string]interface{}{
					"class_id":   classID,
					"student_id": studentID,
				})
			}
			m.Status = models.MembershipApproved
			m.DecidedAt = &now
			if err := tx.Membership().Update(ctx, m); err != nil {
				return fmt.Errorf("failed to approve membership: %w", err)
			}
		}
		membership = m
		return ensureClassModules(ctx, tx, classID, studentID)
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateStudentProgress(ctx, s.cache, studentID)
	s.publishDecision(ctx, membership)
	return membership, nil
}

func (s *classService) ApproveMembership(ctx context.Context, membershipID uint, teacherID string) (*models.ClassMembership, error) {
	return s.decide(ctx, membershipID, teacherID, models.MembershipApproved)
}

func (s *classService) RejectMembership(ctx context.Context, membershipID uint, teacherID string) (*models.ClassMembership, error) {
	return s.decide(ctx, membershipID, teacherID, models.MembershipRejected)
}

// decide moves a pending membership to status. Only the class owner may decide.
func (s *classService) decide(ctx context.Context, membershipID uint, teacherID string, status models.MembershipStatus) (*models.ClassMembership, error) {
	s.logger.Info("Deciding membership", "membership_id", membershipID, "teacher_id", teacherID, "status", status)

	membership, err := s.repo.Membership().GetByID(ctx, membershipID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if membership.Class == nil || membership.Class.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, membershipID, "membership", string(status), "not the class owner")
	}
	if membership.Status != models.MembershipPending {
		return nil, NewBusinessRuleError(RuleMembershipNotPending, "Only pending requests can be approved or rejected", map[string]interface{}{
			"membership_id": membershipID,
			"status":        membership.Status,
		})
	}

	now := s.now().UTC()
	membership.Status = status
	membership.DecidedAt = &now

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if err := tx.Membership().Update(ctx, membership); err != nil {
			return fmt.Errorf("failed to update membership: %w", err)
		}
		if status != models.MembershipApproved {
			return nil
		}
		return ensureClassModules(ctx, tx, membership.ClassID, membership.StudentID)
	})
	if err != nil {
		return nil, err
	}

	if status == models.MembershipApproved {
		cache.InvalidateStudentProgress(ctx, s.cache, membership.StudentID)
	}
	s.publishDecision(ctx, membership)
	return membership, nil
}

func (s *classService) RemoveMember(ctx context.Context, classID uint, teacherID, studentID string) error {
	if _, err := s.ownedClass(ctx, classID, teacherID, "remove_member"); err != nil {
		return err
	}
	if err := s.repo.Membership().Delete(ctx, classID, studentID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}
	cache.InvalidateStudentProgress(ctx, s.cache, studentID)
	return nil
}

func (s *classService) SearchStudents(ctx context.Context, filters repositories.UserFilters) (*StudentListResponse, error) {
	role := models.RoleStudent
	filters.Role = &role
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 25
	}

	students, total, err := s.repo.User().Search(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}
	return &StudentListResponse{Students: students, Total: total}, nil
}

// ===== STUDENT OPERATIONS =====

func (s *classService) JoinByCode(ctx context.Context, studentID, code string) (*models.ClassMembership, error) {
	code = validator.NormalizeClassCode(code)
	if !validator.IsClassCode(code) {
		return nil, ValidationErrors{fieldError("code", "must be a 6 character class code", code)}
	}

	class, err := s.repo.Class().GetByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to find class: %w", err)
	}
	return s.requestMembership(ctx, studentID, class)
}

func (s *classService) RequestToJoin(ctx context.Context, studentID string, classID uint) (*models.ClassMembership, error) {
	class, err := s.repo.Class().GetByID(ctx, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	return s.requestMembership(ctx, studentID, class)
}

// requestMembership inserts a pending request atomically. A rejected request may be renewed.
func (s *classService) requestMembership(ctx context.Context, studentID string, class *models.Class) (*models.ClassMembership, error) {
	s.logger.Info("Requesting class membership", "student_id", studentID, "class_id", class.ID)

	m := &models.ClassMembership{ClassID: class.ID, StudentID: studentID, Status: models.MembershipPending}
	created, err := s.repo.Membership().CreateIfAbsent(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if !created {
		m, err = s.repo.Membership().Get(ctx, class.ID, studentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get membership: %w", err)
		}
		conflictCtx := map[string]interface{}{"class_id": class.ID, "status": m.Status}
		switch m.Status {
		case models.MembershipPending:
			return nil, NewConflictError(RuleMembershipPending, msgPendingRequest, conflictCtx)
		case models.MembershipApproved:
			return nil, NewConflictError(RuleMembershipExists, msgAlreadyMember, conflictCtx)
		}

		m.Status = models.MembershipPending
		m.DecidedAt = nil
		if err := s.repo.Membership().Update(ctx, m); err != nil {
			return nil, fmt.Errorf("failed to renew membership request: %w", err)
		}
	}

	m.Class = class
	events.PublishSafe(ctx, s.publisher, s.logger, events.NewEvent(events.MembershipRequested, events.MembershipData{
		MembershipID: m.ID,
		ClassID:      m.ClassID,
		StudentID:    m.StudentID,
		Status:       string(m.Status),
	}))
	return m, nil
}

func (s *classService) ListStudentClasses(ctx context.Context, studentID string) ([]*models.ClassMembership, error) {
	memberships, err := s.repo.Membership().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return memberships, nil
}

func (s *classService) SearchTeachers(ctx context.Context, query string, limit int) ([]*models.TeacherDirectoryEntry, error) {
	role := models.RoleTeacher
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	teachers, _, err := s.repo.User().Search(ctx, repositories.UserFilters{Query: query, Role: &role, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to search teachers: %w", err)
	}
	if len(teachers) == 0 {
		return []*models.TeacherDirectoryEntry{}, nil
	}

	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.ID)
	}
	classes, err := s.repo.Class().ListByTeachers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	byTeacher := make(map[string][]*models.Class, len(teachers))
	for _, c := range classes {
		byTeacher[c.TeacherID] = append(byTeacher[c.TeacherID], c)
	}

	out := make([]*models.TeacherDirectoryEntry, 0, len(teachers))
	for _, t := range teachers {
		entry := &models.TeacherDirectoryEntry{ID: t.ID, FullName: t.FullName, Email: t.Email, Classes: byTeacher[t.ID]}
		if entry.Classes == nil {
			entry.Classes = []*models.Class{}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *classService) TeacherClasses(ctx context.Context, teacherID string) ([]*models.Class, error) {
	teacher, err := s.repo.User().GetByID(ctx, teacherID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	if teacher.Role != models.RoleTeacher {
		return nil, ErrUserNotFound
	}
	classes, err := s.repo.Class().ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return classes, nil
}

// ===== HELPERS =====

func (s *classService) ownedClass(ctx context.Context, classID uint, teacherID, action string) (*models.Class, error) {
	return loadOwnedClass(ctx, s.repo, classID, teacherID, action)
}

func loadOwnedClass(ctx context.Context, repo repositories.Repository, classID uint, teacherID, action string) (*models.Class, error) {
	class, err := repo.Class().GetByID(ctx, classID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("failed to get class: %w", err)
	}
	if class.TeacherID != teacherID {
		return nil, NewPermissionError(teacherID, classID, "class", action, "not owner")
	}
	return class, nil
}

func (s *classService) student(ctx context.Context, studentID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if user.Role != models.RoleStudent {
		return nil, ValidationErrors{fieldError("student_id", "is not a student", studentID)}
	}
	return user, nil
}

func (s *classService) publishDecision(ctx context.Context, m *models.ClassMembership) {
	events.PublishSafe(ctx, s.publisher, s.logger, events.NewEvent(events.MembershipDecided, events.MembershipData{
		MembershipID: m.ID,
		ClassID:      m.ClassID,
		StudentID:    m.StudentID,
		Status:       string(m.Status),
	}))
}
