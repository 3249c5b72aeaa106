package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/trackademic/core/user"
)

func Test_userApi_signup(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Bob", "bob@example.com")

	body := func(name, email, pwd, confirm string) []byte {
		return marshallObj(t, map[string]string{
			"name": name, "email": email, "password": pwd, "password_confirm": confirm,
		})
	}

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{"password": "Sup3r-Secret!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"name":             "this field is required",
				"email":            "this field is required",
				"password_confirm": "this field is required",
			}),
		},
		{
			name:     "short password",
			body:     body("Alice", "alice@example.com", "Ab1!", "Ab1!"),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name:     "duplicate email",
			body:     body("Bobby", " BOB@example.com ", testPassword, testPassword),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.method = http.MethodPost
			tc.path = "/v1/users/signup"
			checkCodeAndData(t, tc, app.run(t, tc))
		})
	}

	t.Run("success", func(t *testing.T) {
		rec := app.run(t, httpTest{
			method: http.MethodPost,
			path:   "/v1/users/signup",
			body:   body(" Alice ", "Alice@Example.com", testPassword, testPassword),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp SignupResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "Alice", resp.User.Name)
		assert.Equal(t, "alice@example.com", resp.User.Email)
		assert.True(t, resp.User.IsActive)
		assert.False(t, resp.User.IsAdmin)
	})
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	inactive := app.createUser(t, "Carol", "carol@example.com")
	inactive.IsActive = false
	_, err := app.userSvc.Update(context.Background(), inactive, user.UpdateUser{Name: inactive.Name})
	require.NoError(t, err)

	login := func(email, pwd string) []byte {
		return marshallObj(t, LoginRequest{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "unknown email",
			body:     login("nobody@example.com", testPassword),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     login(alice.Email, "wrong"),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated",
			body:     login(inactive.Email, testPassword),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.method = http.MethodPost
			tc.path = "/v1/users/login"
			checkCodeAndData(t, tc, app.run(t, tc))
		})
	}

	t.Run("success", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/users/login", body: login(" ALICE@example.com", testPassword)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		// the token authenticates the caller
		rec = app.run(t, httpTest{path: "/v1/users/me", token: resp.Token})
		assert.Equal(t, http.StatusOK, rec.Code)

		usr, err := app.userSvc.GetByID(context.Background(), alice.ID)
		require.NoError(t, err)
		assert.True(t, usr.LastLogin.Valid)
	})
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	token := app.getToken(t, alice)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "invalid token", path: "/v1/users/me", token: "not.a.token", wantCode: http.StatusUnauthorized},
		{name: "get", path: "/v1/users/me", token: token, wantCode: http.StatusOK, wantData: marshallObj(t, alice)},
		{
			name:     "update password policy",
			method:   http.MethodPut,
			path:     "/v1/users/me",
			token:    token,
			body:     []byte(`{"password": "alice@example.com1A!", "password_confirm": "alice@example.com1A!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkCodeAndData(t, tc, app.run(t, tc))
		})
	}

	t.Run("update name", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodPut, path: "/v1/users/me", token: token, body: []byte(`{"name": "Alice Liddell"}`)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		usr, err := app.userSvc.GetByID(context.Background(), alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice Liddell", usr.Name)
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")

	t.Run("auth required", func(t *testing.T) {
		tc := httpTest{method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}
		checkCodeAndData(t, tc, app.run(t, tc))
	})

	t.Run("refresh expired", func(t *testing.T) {
		claims := app.auth.userClaims(alice, 1 /* oriat: 1970 */)
		token, err := app.auth.generateToken(claims)
		require.NoError(t, err)
		tc := httpTest{
			method: http.MethodPost, path: "/v1/users/token-refresh", token: token,
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "refresh has expired"}),
		}
		checkCodeAndData(t, tc, app.run(t, tc))
	})

	t.Run("success", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodPost, path: "/v1/users/token-refresh", token: app.getToken(t, alice)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
	})
}

func Test_userApi_list(t *testing.T) {
	app := setup(t)
	alice := app.createUser(t, "Alice", "alice@example.com")
	root, err := app.userSvc.Create(context.Background(), user.NewUser{Name: "Root", Email: "root@example.com", Password: testPassword, IsAdmin: true})
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "admins only", path: "/v1/users", token: app.getToken(t, alice), wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"})},
		{name: "list", path: "/v1/users", token: app.getToken(t, root), wantCode: http.StatusOK, wantData: marshallList(t, alice, root)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkCodeAndData(t, tc, app.run(t, tc))
		})
	}
}
