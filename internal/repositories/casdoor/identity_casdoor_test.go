package casdoor

import (
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

func TestToIdentity(t *testing.T) {
	tests := []struct {
		name     string
		user     *casdoorsdk.User
		wantID   string
		wantRole string
		wantName string
		wantDemo bool
	}{
		{
			name: "role from properties wins",
			user: &casdoorsdk.User{
				Id: "u-1", Name: "ada", Email: "Ada@School.test", DisplayName: "Ada L",
				Properties: map[string]string{models.MetadataRole: "teacher", models.MetadataFullName: "Ada Lovelace"},
				Roles:      []*casdoorsdk.Role{{Name: "student"}},
			},
			wantID: "u-1", wantRole: "teacher", wantName: "Ada Lovelace",
		},
		{
			name: "role falls back to casdoor roles",
			user: &casdoorsdk.User{
				Id: "u-2", Name: "bob", DisplayName: "Bob",
				Roles: []*casdoorsdk.Role{nil, {Name: "admin"}, {Name: "Instructor"}},
			},
			wantID: "u-2", wantRole: "teacher", wantName: "Bob",
		},
		{
			name:   "no role at all",
			user:   &casdoorsdk.User{Owner: "org", Name: "carol"},
			wantID: "org/carol",
		},
		{
			name: "demo marker",
			user: &casdoorsdk.User{
				Id: "u-3", Name: "demo-student",
				Properties: map[string]string{propertyIsDemo: "true", models.MetadataRole: "student"},
			},
			wantID: "u-3", wantRole: "student", wantDemo: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity := toIdentity(tt.user)
			require.NotNil(t, identity)
			assert.Equal(t, tt.wantID, identity.ID)
			assert.Equal(t, tt.wantRole, identity.Metadata[models.MetadataRole])
			assert.Equal(t, tt.wantName, identity.Metadata[models.MetadataFullName])
			assert.Equal(t, tt.wantDemo, identity.IsDemo)
		})
	}
}

func TestToIdentity_LowercasesEmailAndCopiesProperties(t *testing.T) {
	props := map[string]string{"grade_level": "4"}
	identity := toIdentity(&casdoorsdk.User{Id: "u", Email: "Kid@School.TEST", Properties: props})
	assert.Equal(t, "kid@school.test", identity.Email)

	identity.Metadata["grade_level"] = "5"
	assert.Equal(t, "4", props["grade_level"])
}

func TestToIdentity_Nil(t *testing.T) {
	assert.Nil(t, toIdentity(nil))
}

func TestUserName(t *testing.T) {
	assert.Equal(t, "demo-student", userName("demo-student@demo.aicademy.local"))
	assert.Equal(t, "first-last-tag", userName("First.Last+tag@x.y"))
}
