package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/ender-accounts-be/internal/api"
	"github.com/isdelr/ender-accounts-be/internal/api/handlers"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/database"
	"github.com/isdelr/ender-accounts-be/internal/metrics"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/isdelr/ender-accounts-be/internal/services"
	"github.com/isdelr/ender-accounts-be/internal/store"
)

const cookieName = "jwt"

type testServer struct {
	*httptest.Server
	accounts *services.AccountService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, store.SQLite, filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, store.SQLite))

	m := metrics.New()
	accounts := store.NewSQLStore(db, store.SQLite)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	tokens := auth.NewTokenService([]byte("router-test-secret-0123456789abcd"), time.Hour)

	accountService := services.NewAccountService(accounts, hasher, tokens, m)
	sessionService := services.NewSessionService(accounts, hasher, tokens, m)
	gate := auth.NewGate(tokens, accounts, cookieName, m)
	handler := handlers.NewAccountHandler(accountService, sessionService, handlers.CookieConfig{Name: cookieName})

	srv := httptest.NewServer(api.NewRouter(handler, gate, api.Options{Metrics: m.Handler()}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, accounts: accountService}
}

type result struct {
	status  int
	body    []byte
	cookies []*http.Cookie
}

func (s *testServer) do(t *testing.T, method, path string, payload any, cookie *http.Cookie) result {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return result{status: resp.StatusCode, body: raw, cookies: resp.Cookies()}
}

func (r result) sessionCookie() *http.Cookie {
	for _, c := range r.cookies {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func (r result) account(t *testing.T) models.PublicAccount {
	t.Helper()
	var account models.PublicAccount
	require.NoError(t, json.Unmarshal(r.body, &account), string(r.body))
	return account
}

func assertNoSecrets(t *testing.T, body []byte) {
	t.Helper()
	lower := strings.ToLower(string(body))
	assert.NotContains(t, lower, "password")
	assert.NotContains(t, string(body), "$2a$")
}

func credentials(username, email, password string) map[string]string {
	return map[string]string{"username": username, "email": email, "password": password}
}

func TestRegisterLoginProfile(t *testing.T) {
	s := newTestServer(t)

	reg := s.do(t, http.MethodPost, "/api/users", credentials("alice", "alice@x.com", "secret1"), nil)
	require.Equal(t, http.StatusCreated, reg.status, string(reg.body))
	registered := reg.account(t)
	assert.Equal(t, "alice", registered.Username)
	assert.Equal(t, "alice@x.com", registered.Email)
	assert.False(t, registered.IsAdmin)
	assert.NotEmpty(t, registered.ID)
	assert.NotNil(t, reg.sessionCookie())
	assertNoSecrets(t, reg.body)

	login := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "alice@x.com", "password": "secret1"}, nil)
	require.Equal(t, http.StatusCreated, login.status, string(login.body))
	cookie := login.sessionCookie()
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assertNoSecrets(t, login.body)

	profile := s.do(t, http.MethodGet, "/api/users/profile", nil, cookie)
	require.Equal(t, http.StatusOK, profile.status, string(profile.body))
	assert.Equal(t, "alice", profile.account(t).Username)
	assertNoSecrets(t, profile.body)

	wrong := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "alice@x.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, wrong.status)
	assert.Nil(t, wrong.sessionCookie())
}

func TestRegisterValidation(t *testing.T) {
	s := newTestServer(t)

	missing := s.do(t, http.MethodPost, "/api/users", credentials("alice", "", "secret1"), nil)
	assert.Equal(t, http.StatusBadRequest, missing.status)
	assert.Contains(t, string(missing.body), "please fill all the fields")

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/users", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestConcurrentRegistrationSameEmail(t *testing.T) {
	s := newTestServer(t)

	const attempts = 2
	statuses := make([]int, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload, _ := json.Marshal(credentials("alice", "alice@x.com", "secret1"))
			resp, err := s.Client().Post(s.URL+"/api/users", "application/json", bytes.NewReader(payload))
			if err != nil {
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statuses[i] = resp.StatusCode
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusBadRequest}, statuses)

	dup := s.do(t, http.MethodPost, "/api/users", credentials("bob", "ALICE@x.com", "other"), nil)
	assert.Equal(t, http.StatusBadRequest, dup.status)
	assert.Contains(t, string(dup.body), "User already exists")
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/api/users", credentials("alice", "alice@x.com", "secret1"), nil)
	require.Equal(t, http.StatusCreated, reg.status)

	wrongPassword := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "alice@x.com", "password": "nope"}, nil)
	unknownEmail := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "ghost@x.com", "password": "secret1"}, nil)

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.status)
	assert.Equal(t, wrongPassword.status, unknownEmail.status)
	assert.Equal(t, string(wrongPassword.body), string(unknownEmail.body))
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t)

	out := s.do(t, http.MethodPost, "/api/users/logout", nil, nil)
	require.Equal(t, http.StatusOK, out.status)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, string(out.body))

	cookie := out.sessionCookie()
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestProfileRequiresToken(t *testing.T) {
	s := newTestServer(t)

	none := s.do(t, http.MethodGet, "/api/users/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, none.status)
	assert.Contains(t, string(none.body), "no token")

	forged := s.do(t, http.MethodGet, "/api/users/profile", nil, &http.Cookie{Name: cookieName, Value: "forged.token.value"})
	assert.Equal(t, http.StatusUnauthorized, forged.status)
	assert.Contains(t, string(forged.body), "token failed")
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	reg := s.do(t, http.MethodPost, "/api/users", credentials("alice", "alice@x.com", "secret1"), nil)
	require.Equal(t, http.StatusCreated, reg.status)
	cookie := reg.sessionCookie()
	require.NotNil(t, cookie)

	upd := s.do(t, http.MethodPut, "/api/users/profile", map[string]any{"username": "ally", "password": "secret2", "isAdmin": true}, cookie)
	require.Equal(t, http.StatusCreated, upd.status, string(upd.body))
	updated := upd.account(t)
	assert.Equal(t, "ally", updated.Username)
	assert.Equal(t, "alice@x.com", updated.Email)
	assert.False(t, updated.IsAdmin, "self update must not grant admin")
	assertNoSecrets(t, upd.body)

	old := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "alice@x.com", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusUnauthorized, old.status)
	fresh := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "alice@x.com", "password": "secret2"}, nil)
	assert.Equal(t, http.StatusCreated, fresh.status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	admin, err := s.accounts.CreateAdmin(ctx, "root", "root@x.com", "toor")
	require.NoError(t, err)

	reg := s.do(t, http.MethodPost, "/api/users", credentials("alice", "alice@x.com", "secret1"), nil)
	require.Equal(t, http.StatusCreated, reg.status)
	alice := reg.account(t)
	userCookie := reg.sessionCookie()

	login := s.do(t, http.MethodPost, "/api/users/login", map[string]string{"email": "root@x.com", "password": "toor"}, nil)
	require.Equal(t, http.StatusCreated, login.status)
	adminCookie := login.sessionCookie()

	t.Run("non admin is forbidden", func(t *testing.T) {
		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/users"},
			{http.MethodGet, "/api/users/" + alice.ID},
			{http.MethodPut, "/api/users/" + alice.ID},
			{http.MethodDelete, "/api/users/" + admin.ID},
		} {
			res := s.do(t, tc.method, tc.path, map[string]any{}, userCookie)
			assert.Equal(t, http.StatusForbidden, res.status, "%s %s", tc.method, tc.path)
			assert.Contains(t, string(res.body), "Not authorized as an admin")
		}
	})

	t.Run("unauthenticated list is rejected", func(t *testing.T) {
		res := s.do(t, http.MethodGet, "/api/users", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("list returns public records", func(t *testing.T) {
		res := s.do(t, http.MethodGet, "/api/users", nil, adminCookie)
		require.Equal(t, http.StatusOK, res.status)
		var all []models.PublicAccount
		require.NoError(t, json.Unmarshal(res.body, &all))
		assert.Len(t, all, 2)
		assertNoSecrets(t, res.body)
	})

	t.Run("get by id", func(t *testing.T) {
		res := s.do(t, http.MethodGet, "/api/users/"+alice.ID, nil, adminCookie)
		require.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, alice.ID, res.account(t).ID)

		missing := s.do(t, http.MethodGet, "/api/users/does-not-exist", nil, adminCookie)
		assert.Equal(t, http.StatusNotFound, missing.status)
	})

	t.Run("update promotes and demotes", func(t *testing.T) {
		res := s.do(t, http.MethodPut, "/api/users/"+alice.ID, map[string]any{"isAdmin": true}, adminCookie)
		require.Equal(t, http.StatusOK, res.status, string(res.body))
		assert.True(t, res.account(t).IsAdmin)

		res = s.do(t, http.MethodPut, "/api/users/"+alice.ID, map[string]any{"isAdmin": false}, adminCookie)
		require.Equal(t, http.StatusOK, res.status)
		assert.False(t, res.account(t).IsAdmin)
	})

	t.Run("admin cannot be deleted", func(t *testing.T) {
		res := s.do(t, http.MethodDelete, "/api/users/"+admin.ID, nil, adminCookie)
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Contains(t, string(res.body), "You cannot delete an admin")

		still := s.do(t, http.MethodGet, "/api/users/"+admin.ID, nil, adminCookie)
		assert.Equal(t, http.StatusOK, still.status)
	})

	t.Run("delete regular account", func(t *testing.T) {
		res := s.do(t, http.MethodDelete, "/api/users/"+alice.ID, nil, adminCookie)
		require.Equal(t, http.StatusOK, res.status)
		assert.JSONEq(t, `{"message":"User deleted successfully"}`, string(res.body))

		again := s.do(t, http.MethodDelete, "/api/users/"+alice.ID, nil, adminCookie)
		assert.Equal(t, http.StatusNotFound, again.status)

		// The deleted account's token no longer authenticates.
		profile := s.do(t, http.MethodGet, "/api/users/profile", nil, userCookie)
		assert.Equal(t, http.StatusUnauthorized, profile.status)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	health := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, health.status)
	assert.JSONEq(t, `{"status":"ok"}`, string(health.body))

	_ = s.do(t, http.MethodPost, "/api/users", credentials("alice", "alice@x.com", "secret1"), nil)
	m := s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, m.status)
	assert.Contains(t, string(m.body), `accounts_registrations_total{result="success"} 1`)
}
