package admin

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesmith/models"
)

func TestAdminRoot_NotLoggedIn(t *testing.T) {
	f := newFixture(t, nil)
	cl := &client{router: f.router}

	for _, path := range []string{"/admin", "/admin/dashboard", "/admin/sites/1/pages", "/admin/pages/1/edit"} {
		w := cl.get(path)
		assert.Equal(t, http.StatusFound, w.Code, path)
		assert.Equal(t, "/login", w.Header().Get("Location"), path)
	}

	w := cl.post("/admin/pages/order", url.Values{})
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLoginPost(t *testing.T) {
	f := newFixture(t, nil)
	cl := &client{router: f.router}

	w := cl.get("/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `action="/login"`)

	w = cl.post("/login", url.Values{"email": {"admin@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password")
	assert.Contains(t, w.Body.String(), `value="admin@example.com"`)

	w = cl.post("/login", url.Values{"email": {"nobody@example.com"}, "password": {"secret"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cl = f.login()
	assert.Equal(t, "/admin/dashboard", cl.get("/admin").Header().Get("Location"))
	assert.Equal(t, "/admin/dashboard", cl.get("/login").Header().Get("Location"))
	assert.Equal(t, http.StatusOK, cl.get("/admin/dashboard").Code)
}

func TestLogout(t *testing.T) {
	f := newFixture(t, nil)
	cl := f.login()

	w := cl.get("/admin/logout")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = cl.get("/admin/dashboard")
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestCreateUser(t *testing.T) {
	db := setupTestDB(t)

	user, err := CreateUser(db, "editor@example.com", "secret", "ROLE_EDITOR")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", user.PasswordHash)
	assert.True(t, checkPasswordHash("secret", user.PasswordHash))
	assert.True(t, user.HasRole("ROLE_EDITOR"))
	assert.False(t, user.HasRole(models.RoleAdmin))

	_, err = CreateUser(db, "editor@example.com", "other", "")
	assert.Error(t, err)

	_, err = CreateUser(db, "", "secret", "")
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("testpassword")
	require.NoError(t, err)
	assert.NotEqual(t, "testpassword", hash)

	assert.True(t, checkPasswordHash("testpassword", hash))
	assert.False(t, checkPasswordHash("wrongpassword", hash))
}
