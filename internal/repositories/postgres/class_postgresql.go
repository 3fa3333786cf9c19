package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alexrendlerCS/aicademy-sub000/internal/cache"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/repositories"
)

type ClassPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewClassPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.ClassRepository {
	return &ClassPostgreSQL{db: db, cacheManager: cm}
}

func (c *ClassPostgreSQL) Create(ctx context.Context, class *models.Class) error {
	return handleDBError(c.db.WithContext(ctx).Create(class).Error, "create class")
}

func (c *ClassPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	if err := c.db.WithContext(ctx).First(&class, id).Error; err != nil {
		return nil, handleDBError(err, "get class")
	}
	return &class, nil
}

// GetByCode is the join-by-code lookup, served from cache when possible
func (c *ClassPostgreSQL) GetByCode(ctx context.Context, code string) (*models.Class, error) {
	var class models.Class
	err := c.cacheManager.Class.CacheOrExecute(ctx, cache.ClassCodeKey(code), &class, cache.ClassCacheConfig.TTL, func() (interface{}, error) {
		var row models.Class
		if err := c.db.WithContext(ctx).Preload("Teacher").Where("code = ?", code).First(&row).Error; err != nil {
			return nil, handleDBError(err, "get class by code")
		}
		return &row, nil
	})
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (c *ClassPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Class, error) {
	classes := []*models.Class{}
	if len(ids) == 0 {
		return classes, nil
	}
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&classes).Error; err != nil {
		return nil, handleDBError(err, "get classes by IDs")
	}
	return classes, nil
}

func (c *ClassPostgreSQL) Update(ctx context.Context, class *models.Class) error {
	if err := c.db.WithContext(ctx).Omit(clause.Associations).Save(class).Error; err != nil {
		return handleDBError(err, "update class")
	}
	cache.InvalidateClass(ctx, c.cacheManager, class.Code)
	return nil
}

// Delete removes the class, its memberships (cascade) and its class-level assignments
func (c *ClassPostgreSQL) Delete(ctx context.Context, id uint) error {
	var class models.Class
	if err := c.db.WithContext(ctx).Select("id, code").First(&class, id).Error; err != nil {
		return handleDBError(err, "get class before delete")
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", id).Delete(&models.ModuleAssignment{}).Error; err != nil {
			return handleDBError(err, "delete class assignments")
		}
		if err := tx.Delete(&models.Class{}, id).Error; err != nil {
			return handleDBError(err, "delete class")
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidateClass(ctx, c.cacheManager, class.Code)
	return nil
}

func (c *ClassPostgreSQL) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).Model(&models.Class{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, handleDBError(err, "check class code")
	}
	return count > 0, nil
}

func (c *ClassPostgreSQL) ListByTeacher(ctx context.Context, teacherID string) ([]*models.Class, error) {
	return c.ListByTeachers(ctx, []string{teacherID})
}

func (c *ClassPostgreSQL) ListByTeachers(ctx context.Context, teacherIDs []string) ([]*models.Class, error) {
	classes := []*models.Class{}
	if len(teacherIDs) == 0 {
		return classes, nil
	}
	err := c.db.WithContext(ctx).
		Where("teacher_id IN ?", teacherIDs).
		Order("name ASC").
		Find(&classes).Error
	if err != nil {
		return nil, handleDBError(err, "list classes by teacher")
	}
	return classes, nil
}

// ===== MEMBERSHIPS =====

type MembershipPostgreSQL struct {
	db *gorm.DB
}

func NewMembershipPostgreSQL(db *gorm.DB) repositories.MembershipRepository {
	return &MembershipPostgreSQL{db: db}
}

func (m *MembershipPostgreSQL) CreateIfAbsent(ctx context.Context, membership *models.ClassMembership) (bool, error) {
	res := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "class_id"}, {Name: "student_id"}},
			DoNothing: true,
		}).
		Create(membership)
	if res.Error != nil {
		return false, handleDBError(res.Error, "create membership")
	}
	return res.RowsAffected > 0, nil
}

func (m *MembershipPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ClassMembership, error) {
	var membership models.ClassMembership
	if err := m.db.WithContext(ctx).Preload("Class").First(&membership, id).Error; err != nil {
		return nil, handleDBError(err, "get membership")
	}
	return &membership, nil
}

func (m *MembershipPostgreSQL) Get(ctx context.Context, classID uint, studentID string) (*models.ClassMembership, error) {
	var membership models.ClassMembership
	err := m.db.WithContext(ctx).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		First(&membership).Error
	if err != nil {
		return nil, handleDBError(err, "get membership")
	}
	return &membership, nil
}

func (m *MembershipPostgreSQL) Update(ctx context.Context, membership *models.ClassMembership) error {
	err := m.db.WithContext(ctx).
		Model(&models.ClassMembership{}).
		Where("id = ?", membership.ID).
		Updates(map[string]interface{}{
			"status":     membership.Status,
			"decided_at": membership.DecidedAt,
			"updated_at": time.Now().UTC(),
		}).Error
	return handleDBError(err, "update membership")
}

func (m *MembershipPostgreSQL) Delete(ctx context.Context, classID uint, studentID string) error {
	res := m.db.WithContext(ctx).
		Where("class_id = ? AND student_id = ?", classID, studentID).
		Delete(&models.ClassMembership{})
	if res.Error != nil {
		return handleDBError(res.Error, "delete membership")
	}
	if res.RowsAffected == 0 {
		return handleDBError(gorm.ErrRecordNotFound, "delete membership")
	}
	return nil
}

func (m *MembershipPostgreSQL) ListByClass(ctx context.Context, classID uint, filters repositories.MembershipFilters) ([]*models.ClassMembership, error) {
	query := m.db.WithContext(ctx).Preload("Student").Where("class_id = ?", classID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	memberships := []*models.ClassMembership{}
	if err := query.Order("created_at ASC").Find(&memberships).Error; err != nil {
		return nil, handleDBError(err, "list class memberships")
	}
	return memberships, nil
}

func (m *MembershipPostgreSQL) ListByStudent(ctx context.Context, studentID string) ([]*models.ClassMembership, error) {
	memberships := []*models.ClassMembership{}
	err := m.db.WithContext(ctx).
		Preload("Class").
		Preload("Class.Teacher").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&memberships).Error
	if err != nil {
		return nil, handleDBError(err, "list student memberships")
	}
	return memberships, nil
}

func (m *MembershipPostgreSQL) ApprovedStudentIDs(ctx context.Context, classIDs []uint) ([]string, error) {
	ids := []string{}
	if len(classIDs) == 0 {
		return ids, nil
	}
	err := m.db.WithContext(ctx).
		Model(&models.ClassMembership{}).
		Where("class_id IN ? AND status = ?", classIDs, models.MembershipApproved).
		Distinct().
		Pluck("student_id", &ids).Error
	if err != nil {
		return nil, handleDBError(err, "list approved students")
	}
	return ids, nil
}

func (m *MembershipPostgreSQL) ApprovedClassIDs(ctx context.Context, studentID string) ([]uint, error) {
	ids := []uint{}
	err := m.db.WithContext(ctx).
		Model(&models.ClassMembership{}).
		Where("student_id = ? AND status = ?", studentID, models.MembershipApproved).
		Pluck("class_id", &ids).Error
	if err != nil {
		return nil, handleDBError(err, "list approved classes")
	}
	return ids, nil
}

func (m *MembershipPostgreSQL) CountByClass(ctx context.Context, classIDs []uint) (map[uint]repositories.MembershipCounts, error) {
	counts := make(map[uint]repositories.MembershipCounts, len(classIDs))
	if len(classIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ClassID uint
		Status  models.MembershipStatus
		Total   int64
	}
	err := m.db.WithContext(ctx).
		Model(&models.ClassMembership{}).
		Select("class_id, status, COUNT(*) AS total").
		Where("class_id IN ?", classIDs).
		Group("class_id, status").
		Scan(&rows).Error
	if err != nil {
		return nil, handleDBError(err, "count memberships")
	}

	for _, row := range rows {
		c := counts[row.ClassID]
		switch row.Status {
		case models.MembershipApproved:
			c.Approved = row.Total
		case models.MembershipPending:
			c.Pending = row.Total
		}
		counts[row.ClassID] = c
	}
	return counts, nil
}
