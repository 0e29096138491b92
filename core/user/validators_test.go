package user

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkabenga/presencia/core"
)

func init() {
	RegisterValidators(core.Validate, core.Translator, "testdata")
}

// fakeRepo satisfies Repository for validation tests; only uniqueness checks
// are ever hit.
type fakeRepo struct{ Repository }

func (fakeRepo) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error {
	return nil
}

func newFakeRepo() Repository { return fakeRepo{} }

func testLogger() core.Logger {
	return core.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
}

func fieldTags(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, "expected validator.ValidationErrors, got %T", err)
	msgs := make([]string, 0, len(verrs))
	for _, vErr := range verrs {
		msgs = append(msgs, vErr.Translate(core.Translator))
	}
	return msgs
}

func TestNewUser_Validate_PasswordPolicy(t *testing.T) {
	svc := NewService(newFakeRepo(), testLogger())

	newUser := func(pwd string) NewUser {
		return NewUser{
			Name:            "Ana Quispe",
			Username:        "anaquispe",
			Email:           "ana@test.bo",
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           []string{RoleStudent},
		}
	}

	tests := []struct {
		name    string
		pwd     string
		wantMsg string
	}{
		{name: "ok", pwd: "LeP@ss10"},
		{name: "too short", pwd: "LeP@s1", wantMsg: pwdMinLenText},
		{name: "whitespace", pwd: "LeP@ss10 x", wantMsg: pwdNoSpaceText},
		{name: "all numeric", pwd: "12345678901", wantMsg: pwdNotAllNumText},
		{name: "no complexity", pwd: "lepassword", wantMsg: pwdComplexityText},
		{name: "similar to username", pwd: "Anaquispe1!", wantMsg: pwdAttrSimText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := newUser(tt.pwd)
			err := nu.Validate(core.Validate, svc)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, strings.Join(fieldTags(t, err), "; "), tt.wantMsg)
		})
	}
}

func TestNewUser_Validate_UsernameOrEmailRequired(t *testing.T) {
	svc := NewService(newFakeRepo(), testLogger())

	nu := NewUser{Name: "Ana", Password: "LeP@ss10", PasswordConfirm: "LeP@ss10"}
	err := nu.Validate(core.Validate, svc)
	assert.Contains(t, strings.Join(fieldTags(t, err), "; "), usernameOrEmailText)
}

func TestNewUser_Validate_Roles(t *testing.T) {
	svc := NewService(newFakeRepo(), testLogger())

	nu := NewUser{
		Name:            "Ana",
		Username:        "anaquispe",
		Email:           "ana@test.bo",
		Password:        "LeP@ss10",
		PasswordConfirm: "LeP@ss10",
		Roles:           []string{"superuser:"},
	}
	err := nu.Validate(core.Validate, svc)
	assert.Contains(t, strings.Join(fieldTags(t, err), "; "), allRolesText)
}

func TestNewUser_Validate_Normalizes(t *testing.T) {
	svc := NewService(newFakeRepo(), testLogger())

	nu := NewUser{
		Name:            "  Ana Quispe ",
		Username:        " AnaQuispe ",
		Email:           " Ana@Test.BO ",
		Password:        "LeP@ss10",
		PasswordConfirm: "LeP@ss10",
	}
	require.NoError(t, nu.Validate(core.Validate, svc))
	assert.Equal(t, "Ana Quispe", nu.Name)
	assert.Equal(t, "anaquispe", nu.Username)
	assert.Equal(t, "ana@test.bo", nu.Email)
}
