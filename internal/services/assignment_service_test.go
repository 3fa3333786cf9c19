package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexrendlerCS/aicademy-sub000/internal/events"
	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
	"github.com/alexrendlerCS/aicademy-sub000/internal/validator"
)

type assignmentFixture struct {
	d      *testDeps
	svc    AssignmentService
	module *models.Module
	classA *models.Class
	classB *models.Class
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	d := newTestDeps(t)
	repo := d.repo
	repo.addUser("teacher-1", "Ms Frizzle", models.RoleTeacher)
	repo.addUser("teacher-2", "Mr Ratburn", models.RoleTeacher)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		repo.addUser(id, "Student "+id, models.RoleStudent)
	}

	module := repo.addModule("teacher-1", "Weather")
	repo.addLesson(module.ID, "Clouds", 0)

	classA := repo.addClass("teacher-1", "Period 1", "AAA234")
	classB := repo.addClass("teacher-1", "Period 2", "BBB234")
	repo.addMembership(classA.ID, "s1", models.MembershipApproved)
	repo.addMembership(classA.ID, "s2", models.MembershipApproved)
	repo.addMembership(classA.ID, "s4", models.MembershipPending)
	repo.addMembership(classB.ID, "s2", models.MembershipApproved)
	repo.addMembership(classB.ID, "s3", models.MembershipApproved)

	svc := NewAssignmentService(repo, d.cache, d.publisher, d.logger, d.validator)
	svc.(*assignmentService).now = func() time.Time { return fixedNow }

	return &assignmentFixture{d: d, svc: svc, module: module, classA: classA, classB: classB}
}

func classTarget(id uint, due *time.Time) validator.AssignmentTarget {
	return validator.AssignmentTarget{ClassID: uintPtr(id), DueDate: due}
}

func studentTarget(id string, due *time.Time) validator.AssignmentTarget {
	return validator.AssignmentTarget{StudentID: strPtr(id), DueDate: due}
}

func TestPublish_CreatesRowsForApprovedMembers(t *testing.T) {
	f := newAssignmentFixture(t)
	due := fixedNow.Add(48 * time.Hour)

	resp, err := f.svc.Publish(context.Background(), f.module.ID, "teacher-1", &AssignmentsRequest{
		Targets: []validator.AssignmentTarget{
			classTarget(f.classA.ID, &due),
			classTarget(f.classB.ID, nil),
			studentTarget("s1", nil),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Added)
	assert.Len(t, resp.Assignments, 3)
	assert.Equal(t, models.ModulePublished, resp.Module.Status)
	require.NotNil(t, resp.Module.PublishedAt)
	assert.True(t, fixedNow.Equal(*resp.Module.PublishedAt))

	stored := f.d.repo.store.modules[f.module.ID]
	assert.Equal(t, models.ModulePublished, stored.Status)

	for _, id := range []string{"s1", "s2", "s3"} {
		row, ok := f.d.repo.studentModule(id, f.module.ID)
		require.True(t, ok, "student %s should have a progress row", id)
		assert.Equal(t, 0.0, row.Progress)
	}
	_, ok := f.d.repo.studentModule("s4", f.module.ID)
	assert.False(t, ok, "pending members are not assigned")
	assert.Len(t, f.d.repo.store.studentModules, 3, "s1 and s2 reached through two targets keep one row each")

	assigned := f.d.publisher.EventsOfType(events.ModuleAssigned)
	require.Len(t, assigned, 1)
	data, ok := assigned[0].Data.(events.ModuleAssignedData)
	require.True(t, ok)
	assert.Equal(t, 3, data.Added)
	assert.ElementsMatch(t, []uint{f.classA.ID, f.classB.ID}, data.ClassIDs)
}

func TestPublish_RepublishKeepsPublishedAt(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	req := &AssignmentsRequest{Targets: []validator.AssignmentTarget{classTarget(f.classA.ID, nil)}}

	_, err := f.svc.Publish(ctx, f.module.ID, "teacher-1", req)
	require.NoError(t, err)

	f.svc.(*assignmentService).now = func() time.Time { return fixedNow.Add(time.Hour) }
	resp, err := f.svc.Publish(ctx, f.module.ID, "teacher-1", req)
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Added)
	require.NotNil(t, resp.Module.PublishedAt)
	assert.True(t, fixedNow.Equal(*resp.Module.PublishedAt))
}

func TestUpdateAssignments_RemovesOnlyDroppedTarget(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Publish(ctx, f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{
		classTarget(f.classA.ID, nil),
		classTarget(f.classB.ID, nil),
	}})
	require.NoError(t, err)
	f.d.repo.store.studentModules[pairKey("s1", f.module.ID)] = models.StudentModule{StudentID: "s1", ModuleID: f.module.ID, Progress: 1}

	resp, err := f.svc.UpdateAssignments(ctx, f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{
		classTarget(f.classB.ID, nil),
	}})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Added)
	assert.Equal(t, 1, resp.Removed)
	require.Len(t, resp.Assignments, 1)
	assert.Equal(t, f.classB.ID, *resp.Assignments[0].ClassID)

	row, ok := f.d.repo.studentModule("s1", f.module.ID)
	require.True(t, ok, "progress survives unassignment")
	assert.Equal(t, 1.0, row.Progress)
}

func TestUpdateAssignments_ChangesDueDate(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	first := fixedNow.Add(24 * time.Hour)
	second := fixedNow.Add(96 * time.Hour)

	created, err := f.svc.Publish(ctx, f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{
		classTarget(f.classA.ID, &first),
	}})
	require.NoError(t, err)
	require.Len(t, created.Assignments, 1)

	resp, err := f.svc.UpdateAssignments(ctx, f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{
		classTarget(f.classA.ID, &second),
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Updated)
	assert.Equal(t, 0, resp.Added)
	assert.Equal(t, 0, resp.Removed)
	require.Len(t, resp.Assignments, 1)
	assert.Equal(t, created.Assignments[0].ID, resp.Assignments[0].ID, "rows are patched in place")
	require.NotNil(t, resp.Assignments[0].DueDate)
	assert.True(t, second.Equal(*resp.Assignments[0].DueDate))
}

func TestUpdateAssignments_DraftHiddenUntilPublished(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()
	req := &AssignmentsRequest{Targets: []validator.AssignmentTarget{studentTarget("s3", nil)}}
	lessonID := f.d.repo.lessonsOf(f.module.ID)[0].ID

	resp, err := f.svc.UpdateAssignments(ctx, f.module.ID, "teacher-1", req)
	require.NoError(t, err)
	assert.Equal(t, models.ModuleDraft, resp.Module.Status)
	_, ok := f.d.repo.studentModule("s3", f.module.ID)
	require.True(t, ok, "rows are pre-created while the module is a draft")

	progress := NewProgressService(f.d.repo, f.d.cache, f.d.publisher, f.d.logger, f.d.validator)

	views, err := progress.ListStudentModules(ctx, "s3")
	require.NoError(t, err)
	assert.Empty(t, views)
	_, err = progress.GetStudentModule(ctx, "s3", f.module.ID)
	assert.ErrorIs(t, err, ErrModuleNotFound)
	_, err = progress.GetStudentLesson(ctx, "s3", lessonID)
	assert.ErrorIs(t, err, ErrModuleNotFound)
	_, err = progress.CompleteLesson(ctx, "s3", lessonID)
	assert.ErrorIs(t, err, ErrModuleNotFound)
	assert.Empty(t, f.d.repo.store.lessonProgress)

	_, err = f.svc.Publish(ctx, f.module.ID, "teacher-1", req)
	require.NoError(t, err)

	views, err = progress.ListStudentModules(ctx, "s3")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Weather", views[0].Title)
	detail, err := progress.GetStudentModule(ctx, "s3", f.module.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Lessons, 1)
}

func TestPublish_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *assignmentFixture) (uint, string, *AssignmentsRequest)
		checkFn func(t *testing.T, err error)
	}{
		{
			name: "module without lessons",
			setup: func(f *assignmentFixture) (uint, string, *AssignmentsRequest) {
				empty := f.d.repo.addModule("teacher-1", "Empty")
				return empty.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{classTarget(f.classA.ID, nil)}}
			},
			checkFn: func(t *testing.T, err error) {
				var rerr *BusinessRuleError
				require.True(t, errors.As(err, &rerr))
				assert.Equal(t, RuleModuleNoLessons, rerr.Rule)
			},
		},
		{
			name: "module of another teacher",
			setup: func(f *assignmentFixture) (uint, string, *AssignmentsRequest) {
				return f.module.ID, "teacher-2", &AssignmentsRequest{}
			},
			checkFn: func(t *testing.T, err error) {
				var perr *PermissionError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "module", perr.Resource)
			},
		},
		{
			name: "class of another teacher",
			setup: func(f *assignmentFixture) (uint, string, *AssignmentsRequest) {
				other := f.d.repo.addClass("teacher-2", "Other", "CCC234")
				return f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{classTarget(other.ID, nil)}}
			},
			checkFn: func(t *testing.T, err error) {
				var perr *PermissionError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "class", perr.Resource)
			},
		},
		{
			name: "unknown module",
			setup: func(f *assignmentFixture) (uint, string, *AssignmentsRequest) {
				return 9999, "teacher-1", &AssignmentsRequest{}
			},
			checkFn: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrModuleNotFound)
			},
		},
		{
			name: "target is a teacher",
			setup: func(f *assignmentFixture) (uint, string, *AssignmentsRequest) {
				return f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{studentTarget("teacher-2", nil)}}
			},
			checkFn: func(t *testing.T, err error) {
				var verrs ValidationErrors
				require.True(t, errors.As(err, &verrs))
				assert.Equal(t, "targets.student_id", verrs[0].Field)
			},
		},
		{
			name: "duplicate target",
			setup: func(f *assignmentFixture) (uint, string, *AssignmentsRequest) {
				return f.module.ID, "teacher-1", &AssignmentsRequest{Targets: []validator.AssignmentTarget{
					classTarget(f.classA.ID, nil),
					classTarget(f.classA.ID, nil),
				}}
			},
			checkFn: func(t *testing.T, err error) {
				var verrs ValidationErrors
				require.True(t, errors.As(err, &verrs))
				assert.Equal(t, "targets[1]", verrs[0].Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssignmentFixture(t)
			moduleID, teacherID, req := tt.setup(f)

			_, err := f.svc.Publish(context.Background(), moduleID, teacherID, req)
			require.Error(t, err)
			tt.checkFn(t, err)

			assert.Empty(t, f.d.repo.store.assignments)
			assert.Empty(t, f.d.publisher.GetPublishedEvents())
		})
	}
}

func TestPublish_RollsBackOnFailure(t *testing.T) {
	f := newAssignmentFixture(t)
	f.d.repo.failOn("Assignment.DeleteByIDs", errors.New("deadlock detected"))

	_, err := f.svc.Publish(context.Background(), f.module.ID, "teacher-1", &AssignmentsRequest{
		Targets: []validator.AssignmentTarget{classTarget(f.classA.ID, nil)},
	})
	require.Error(t, err)

	assert.Empty(t, f.d.repo.store.assignments)
	assert.Empty(t, f.d.repo.store.studentModules)
	assert.Equal(t, models.ModuleDraft, f.d.repo.store.modules[f.module.ID].Status)
	assert.Empty(t, f.d.publisher.GetPublishedEvents())
}

func TestListAssignments(t *testing.T) {
	f := newAssignmentFixture(t)
	ctx := context.Background()

	list, err := f.svc.ListAssignments(ctx, f.module.ID, "teacher-1")
	require.NoError(t, err)
	assert.Empty(t, list)

	f.d.repo.addAssignment(f.module.ID, uintPtr(f.classA.ID), nil, nil)
	list, err = f.svc.ListAssignments(ctx, f.module.ID, "teacher-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.ListAssignments(ctx, f.module.ID, "teacher-2")
	var perr *PermissionError
	assert.True(t, errors.As(err, &perr))
}
