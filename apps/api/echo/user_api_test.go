package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mkabenga/presencia/apps/api/echo"
	"github.com/mkabenga/presencia/core/user"
)

func TestUserAPI_Login(t *testing.T) {
	ta := newTestApp(t)

	t.Run("ok", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/login", "",
			echoapi.LoginRequest{Username: "sara", Password: "LeP@ss10"})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp echoapi.LoginResponse
		decodeBody(t, rec.Body, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("by email", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/login", "",
			echoapi.LoginRequest{Username: "SARA@test.bo", Password: "LeP@ss10"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/login", "",
			echoapi.LoginRequest{Username: "sara", Password: "nope"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httpErr
		decodeBody(t, rec.Body, &resp)
		assert.Equal(t, "authentication failed", resp.Error)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/login", "",
			echoapi.LoginRequest{Username: "ghost", Password: "LeP@ss10"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("deactivated account", func(t *testing.T) {
		inactive := false
		_, err := ta.usrSvc.Update(ctx, ta.teacherUsr.ID, user.UpdateUser{
			Name:     ta.teacherUsr.Name,
			Username: ta.teacherUsr.Username,
			Email:    ta.teacherUsr.Email,
			IsActive: &inactive,
		})
		require.NoError(t, err)

		rec := ta.do(t, http.MethodPost, "/v1/users/login", "",
			echoapi.LoginRequest{Username: "tomas", Password: "LeP@ss10"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestUserAPI_TokenRefresh(t *testing.T) {
	ta := newTestApp(t)

	rec := ta.do(t, http.MethodPost, "/v1/users/token-refresh", ta.token(t, ta.studentUsr), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp echoapi.TokenResponse
	decodeBody(t, rec.Body, &resp)
	assert.NotEmpty(t, resp.Token)
}

func TestUserAPI_Query(t *testing.T) {
	ta := newTestApp(t)

	t.Run("auth required", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		var resp httpErr
		decodeBody(t, rec.Body, &resp)
		assert.Equal(t, "missing or malformed jwt", resp.Error)
	})

	t.Run("admin required", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users", ta.token(t, ta.studentUsr), nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		var resp httpErr
		decodeBody(t, rec.Body, &resp)
		assert.Equal(t, "permission denied", resp.Error)
	})

	t.Run("get all", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users", ta.token(t, ta.adminUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var users []user.User
		decodeBody(t, rec.Body, &users)
		assert.Len(t, users, 3)
	})

	t.Run("filter by role", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users?role=student:", ta.token(t, ta.adminUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var users []user.User
		decodeBody(t, rec.Body, &users)
		require.Len(t, users, 1)
		assert.Equal(t, ta.studentUsr.ID, users[0].ID)
	})
}

func TestUserAPI_Register(t *testing.T) {
	ta := newTestApp(t)
	payload := func(uname, email string) user.NewUser {
		return user.NewUser{
			Name:            "Nina New",
			Username:        uname,
			Email:           email,
			Password:        "LeP@ss10",
			PasswordConfirm: "LeP@ss10",
			Roles:           user.StudentRoles,
		}
	}

	t.Run("admin only", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/register", ta.token(t, ta.teacherUsr), payload("ninanew", "nina@test.bo"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/register", ta.token(t, ta.adminUsr), payload("ninanew", "nina@test.bo"))
		require.Equal(t, http.StatusCreated, rec.Code)

		var usr user.User
		decodeBody(t, rec.Body, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.True(t, usr.IsActive)
		assert.Equal(t, "ninanew", usr.Username)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := ta.do(t, http.MethodPost, "/v1/users/register", ta.token(t, ta.adminUsr), payload("sara", "other@test.bo"))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var fields map[string]string
		decodeBody(t, rec.Body, &fields)
		assert.Contains(t, fields, "username")
	})
}

func TestUserAPI_Detail(t *testing.T) {
	ta := newTestApp(t)

	t.Run("self", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users/"+ta.studentUsr.ID, ta.token(t, ta.studentUsr), nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var usr user.User
		decodeBody(t, rec.Body, &usr)
		assert.Equal(t, ta.studentUsr.ID, usr.ID)
	})

	t.Run("other forbidden for non-admins", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users/"+ta.adminUsr.ID, ta.token(t, ta.studentUsr), nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users/"+ta.studentUsr.ID, ta.token(t, ta.adminUsr), nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		rec := ta.do(t, http.MethodGet, "/v1/users/00000000-0000-4000-8000-000000000000", ta.token(t, ta.adminUsr), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		victim := ta.createUser(t, "Gone Soon", "gonesoon", "gone@test.bo", user.StudentRoles)
		rec := ta.do(t, http.MethodDelete, "/v1/users/"+victim.ID, ta.token(t, ta.adminUsr), nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		_, err := ta.usrSvc.GetByID(ctx, victim.ID)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func TestUserAPI_SetPushToken(t *testing.T) {
	ta := newTestApp(t)

	token := "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"
	rec := ta.do(t, http.MethodPut, "/v1/users/me/push-token", ta.token(t, ta.studentUsr),
		echoapi.PushTokenRequest{PushToken: token})
	require.Equal(t, http.StatusOK, rec.Code)

	usr, err := ta.usrSvc.GetByID(ctx, ta.studentUsr.ID)
	require.NoError(t, err)
	assert.Equal(t, token, usr.PushToken)
}
