package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

func rolePtr(r models.UserRole) *models.UserRole { return &r }

func identityWith(id string, metadata map[string]string) *models.Identity {
	return &models.Identity{ID: id, Name: id, Email: id + "@School.test", DisplayName: "Display " + id, Metadata: metadata}
}

func TestResolveLogin(t *testing.T) {
	tests := []struct {
		name       string
		seed       func(r *fakeRepository)
		identity   *models.Identity
		intended   *models.UserRole
		wantStatus LoginStatus
		wantErr    bool
		check      func(t *testing.T, d *testDeps, resp *LoginResponse, err error)
	}{
		{
			name:       "existing user",
			seed:       func(r *fakeRepository) { r.addUser("u1", "Arnold", models.RoleStudent) },
			identity:   identityWith("u1", nil),
			intended:   rolePtr(models.RoleStudent),
			wantStatus: LoginOK,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				assert.Equal(t, "Arnold", resp.User.FullName)
			},
		},
		{
			name:     "existing user with another role",
			seed:     func(r *fakeRepository) { r.addUser("u1", "Arnold", models.RoleStudent) },
			identity: identityWith("u1", nil),
			intended: rolePtr(models.RoleTeacher),
			wantErr:  true,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				var mismatch *RoleMismatchError
				require.True(t, errors.As(err, &mismatch))
				assert.Equal(t, "student", mismatch.Registered)
				assert.Equal(t, "teacher", mismatch.Intended)
				assert.ErrorIs(t, err, ErrRoleMismatch)
			},
		},
		{
			name: "complete metadata creates the user",
			identity: identityWith("u2", map[string]string{
				models.MetadataFullName:   "Keesha",
				models.MetadataRole:       "student",
				models.MetadataGradeLevel: "4",
			}),
			wantStatus: LoginOK,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				stored, ok := d.repo.store.users["u2"]
				require.True(t, ok)
				assert.Equal(t, "Keesha", stored.FullName)
				assert.Equal(t, "u2@school.test", stored.Email)
				require.NotNil(t, stored.GradeLevel)
				assert.Equal(t, 4, *stored.GradeLevel)
			},
		},
		{
			name:       "teacher metadata needs no grade",
			identity:   identityWith("u3", map[string]string{models.MetadataRole: "teacher"}),
			wantStatus: LoginOK,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				assert.Equal(t, "Display u3", resp.User.FullName)
				assert.Nil(t, resp.User.GradeLevel)
			},
		},
		{
			name:     "metadata role contradicts intended role",
			identity: identityWith("u4", map[string]string{models.MetadataRole: "teacher"}),
			intended: rolePtr(models.RoleStudent),
			wantErr:  true,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				assert.ErrorIs(t, err, ErrRoleMismatch)
				assert.Empty(t, d.repo.store.users)
			},
		},
		{
			name:       "intended role only pre-fills the profile",
			identity:   identityWith("u5", nil),
			intended:   rolePtr(models.RoleStudent),
			wantStatus: LoginProfileRequired,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				require.NotNil(t, resp.Profile)
				require.NotNil(t, resp.Profile.Role)
				assert.Equal(t, models.RoleStudent, *resp.Profile.Role)
				assert.Equal(t, "Display u5", resp.Profile.FullName)
				assert.Nil(t, resp.User)
				assert.Empty(t, d.repo.store.users)
			},
		},
		{
			name: "out of range grade is dropped",
			identity: identityWith("u6", map[string]string{
				models.MetadataRole:       "student",
				models.MetadataGradeLevel: "13",
			}),
			wantStatus: LoginProfileRequired,
			check: func(t *testing.T, d *testDeps, resp *LoginResponse, err error) {
				assert.Nil(t, resp.Profile.GradeLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDeps(t)
			if tt.seed != nil {
				tt.seed(d.repo)
			}
			svc := NewAuthService(d.repo, d.logger, d.validator)

			resp, err := svc.ResolveLogin(context.Background(), tt.identity, &LoginRequest{IntendedRole: tt.intended})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, resp.Status)
			}
			if tt.check != nil {
				tt.check(t, d, resp, err)
			}
		})
	}
}

func TestCompleteProfile_CreatesUserAndWritesBack(t *testing.T) {
	d := newTestDeps(t)
	identity := identityWith("u1", nil)
	d.repo.store.identities["u1"] = *identity
	svc := NewAuthService(d.repo, d.logger, d.validator)

	user, err := svc.CompleteProfile(context.Background(), identity, &CompleteProfileRequest{
		FullName:   "Arnold",
		Role:       models.RoleStudent,
		GradeLevel: intPtr(3),
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "Arnold", d.repo.store.users["u1"].FullName)

	md := d.repo.store.identities["u1"].Metadata
	assert.Equal(t, "Arnold", md[models.MetadataFullName])
	assert.Equal(t, "student", md[models.MetadataRole])
	assert.Equal(t, "3", md[models.MetadataGradeLevel])
}

func TestCompleteProfile_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("students need a grade", func(t *testing.T) {
		d := newTestDeps(t)
		svc := NewAuthService(d.repo, d.logger, d.validator)
		_, err := svc.CompleteProfile(ctx, identityWith("u1", nil), &CompleteProfileRequest{FullName: "Arnold", Role: models.RoleStudent})
		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Equal(t, "grade_level", verrs[0].Field)
	})

	t.Run("teachers drop the grade", func(t *testing.T) {
		d := newTestDeps(t)
		svc := NewAuthService(d.repo, d.logger, d.validator)
		user, err := svc.CompleteProfile(ctx, identityWith("u1", nil), &CompleteProfileRequest{FullName: "Ms Frizzle", Role: models.RoleTeacher, GradeLevel: intPtr(4)})
		require.NoError(t, err)
		assert.Nil(t, user.GradeLevel)
	})

	t.Run("role is immutable", func(t *testing.T) {
		d := newTestDeps(t)
		d.repo.addUser("u1", "Arnold", models.RoleStudent)
		svc := NewAuthService(d.repo, d.logger, d.validator)
		_, err := svc.CompleteProfile(ctx, identityWith("u1", nil), &CompleteProfileRequest{FullName: "Arnold", Role: models.RoleTeacher})
		var rerr *BusinessRuleError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, RuleRoleImmutable, rerr.Rule)
	})

	t.Run("existing user is updated", func(t *testing.T) {
		d := newTestDeps(t)
		d.repo.addUser("u1", "Arnold", models.RoleStudent)
		svc := NewAuthService(d.repo, d.logger, d.validator)
		user, err := svc.CompleteProfile(ctx, identityWith("u1", nil), &CompleteProfileRequest{FullName: "Arnold P.", Role: models.RoleStudent, GradeLevel: intPtr(6)})
		require.NoError(t, err)
		assert.Equal(t, "Arnold P.", user.FullName)
		assert.Equal(t, 6, *d.repo.store.users["u1"].GradeLevel)
	})

	t.Run("write-back failure is not fatal", func(t *testing.T) {
		d := newTestDeps(t)
		d.repo.failOn("Identity.UpdateMetadata", errors.New("idp down"))
		svc := NewAuthService(d.repo, d.logger, d.validator)
		_, err := svc.CompleteProfile(ctx, identityWith("u1", nil), &CompleteProfileRequest{FullName: "Ms Frizzle", Role: models.RoleTeacher})
		require.NoError(t, err)
		assert.Contains(t, d.repo.store.users, "u1")
	})

	t.Run("email owned by another user", func(t *testing.T) {
		d := newTestDeps(t)
		d.repo.store.users["other"] = models.User{ID: "other", Email: "u1@school.test", Role: models.RoleTeacher}
		svc := NewAuthService(d.repo, d.logger, d.validator)
		_, err := svc.CompleteProfile(ctx, identityWith("u1", nil), &CompleteProfileRequest{FullName: "Ms Frizzle", Role: models.RoleTeacher})
		var rerr *BusinessRuleError
		require.True(t, errors.As(err, &rerr))
		assert.Equal(t, RuleEmailInUse, rerr.Rule)
		assert.True(t, rerr.Conflict)
	})
}

func TestMe(t *testing.T) {
	d := newTestDeps(t)
	d.repo.addUser("u1", "Arnold", models.RoleStudent)
	svc := NewAuthService(d.repo, d.logger, d.validator)
	ctx := context.Background()

	me, err := svc.Me(ctx, identityWith("u1", nil))
	require.NoError(t, err)
	assert.True(t, me.ProfileComplete)
	assert.Equal(t, "Arnold", me.User.FullName)

	me, err = svc.Me(ctx, identityWith("u2", nil))
	require.NoError(t, err)
	assert.False(t, me.ProfileComplete)
	assert.Nil(t, me.User)
	assert.Equal(t, "u2", me.Identity.ID)
}
