package backoffice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pagesmith/common"
	"pagesmith/models"
	"pagesmith/pages"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Site{}, &models.Menu{}, &models.PageType{},
		&models.Category{}, &models.Tag{}, &models.Page{}, &models.File{}))
	return db
}

func setupTestRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("pagesmith-session", cookie.NewStore([]byte("test-secret"))))

	cfg := &common.Config{ManagementRoles: map[string]string{GroupTags: "ROLE_EDITOR"}}
	NewBackofficeModule(db, pages.NewManager(pages.NewGormStore(db)), cfg).RegisterRoutes(router)
	return router
}

func createTestUser(t *testing.T, db *gorm.DB, email, roles string) *models.User {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, PasswordHash: string(hash), Roles: roles}
	require.NoError(t, db.Create(user).Error)
	return user
}

type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func (cl *client) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	cl.router.ServeHTTP(w, req)
	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		cl.cookies = cookies
	}
	return w
}

func login(t *testing.T, router *gin.Engine, email string) *client {
	cl := &client{t: t, router: router}
	w := cl.do("POST", "/$/login", `{"email":"`+email+`","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	return cl
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	createTestUser(t, db, "admin@example.com", models.RoleAdmin)

	cl := &client{t: t, router: router}
	assert.Equal(t, http.StatusUnauthorized, cl.do("POST", "/$/login", `{"email":"admin@example.com","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, cl.do("POST", "/$/login", `{"email":"nobody@example.com","password":"secret"}`).Code)
	assert.Equal(t, http.StatusBadRequest, cl.do("POST", "/$/login", `{}`).Code)

	cl = login(t, router, "admin@example.com")
	assert.Equal(t, http.StatusOK, cl.do("GET", "/$/sites", "").Code)

	assert.Equal(t, http.StatusOK, cl.do("POST", "/$/logout", "").Code)
	assert.Equal(t, http.StatusUnauthorized, cl.do("GET", "/$/sites", "").Code)
}

func TestRequireRole(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	createTestUser(t, db, "editor@example.com", "ROLE_EDITOR")

	anonymous := &client{t: t, router: router}
	assert.Equal(t, http.StatusUnauthorized, anonymous.do("GET", "/$/tags", "").Code)

	editor := login(t, router, "editor@example.com")
	assert.Equal(t, http.StatusOK, editor.do("GET", "/$/tags", "").Code)
	for _, path := range []string{"/$/sites", "/$/menus", "/$/page-types", "/$/categories"} {
		assert.Equal(t, http.StatusForbidden, editor.do("GET", path, "").Code, path)
	}
}

func TestSites(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	cl := login(t, router, "admin@example.com")

	w := cl.do("POST", "/$/sites", `{"name":"Example","host":" WWW.Example.com. "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	site := decode[models.Site](t, w)
	assert.Equal(t, "www.example.com", site.Host)

	assert.Equal(t, http.StatusConflict, cl.do("POST", "/$/sites", `{"name":"Copy","host":"www.example.com"}`).Code)
	assert.Equal(t, http.StatusBadRequest, cl.do("POST", "/$/sites", `{"name":"No host"}`).Code)

	require.NoError(t, db.Omit(clause.Associations).Create(&models.Page{SiteID: site.ID, PageTypeID: "page", Title: "Home"}).Error)

	list := decode[[]siteWithStats](t, cl.do("GET", "/$/sites", ""))
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].PageCount)
	assert.Equal(t, "Example", list[0].Name)

	w = cl.do("PUT", "/$/sites/1", `{"name":"Renamed","host":"www.example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Renamed", decode[models.Site](t, w).Name)

	assert.Equal(t, http.StatusConflict, cl.do("DELETE", "/$/sites/1", "").Code)
	require.NoError(t, db.Where("site_id = ?", site.ID).Delete(&models.Page{}).Error)
	assert.Equal(t, http.StatusOK, cl.do("DELETE", "/$/sites/1", "").Code)
	assert.Equal(t, http.StatusNotFound, cl.do("GET", "/$/sites/1", "").Code)
	assert.Equal(t, http.StatusNotFound, cl.do("GET", "/$/sites/abc", "").Code)
}

func TestMenus(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	cl := login(t, router, "admin@example.com")

	site := &models.Site{Name: "Example", Host: "example.com"}
	require.NoError(t, db.Create(site).Error)

	assert.Equal(t, http.StatusBadRequest, cl.do("POST", "/$/menus", `{"site_id":99,"name":"main"}`).Code)

	w := cl.do("POST", "/$/menus", `{"site_id":1,"name":"main"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	menu := decode[models.Menu](t, w)

	page := &models.Page{SiteID: site.ID, PageTypeID: "page", Title: "About", MenuID: &menu.ID}
	require.NoError(t, db.Omit(clause.Associations).Create(page).Error)

	assert.Len(t, decode[[]models.Menu](t, cl.do("GET", "/$/menus?site_id=1", "")), 1)
	assert.Empty(t, decode[[]models.Menu](t, cl.do("GET", "/$/menus?site_id=2", "")))

	require.Equal(t, http.StatusOK, cl.do("DELETE", "/$/menus/1", "").Code)

	var reloaded models.Page
	require.NoError(t, db.First(&reloaded, page.ID).Error)
	assert.Nil(t, reloaded.MenuID)
}

func TestPageTypes(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	cl := login(t, router, "admin@example.com")

	require.Equal(t, http.StatusCreated, cl.do("POST", "/$/page-types", `{"id":"page","name":"Page"}`).Code)
	assert.Equal(t, http.StatusConflict, cl.do("POST", "/$/page-types", `{"id":"page","name":"Page"}`).Code)
	assert.Equal(t, http.StatusBadRequest, cl.do("POST", "/$/page-types", `{"name":"No id"}`).Code)
	assert.Equal(t, http.StatusBadRequest, cl.do("POST", "/$/page-types", `{"id":"x","name":"X","children_order_by":"title"}`).Code)
	assert.Equal(t, http.StatusBadRequest, cl.do("POST", "/$/page-types", `{"id":"x","name":"X","children":["ghost"]}`).Code)

	w := cl.do("POST", "/$/page-types", `{"id":"blog","name":"Blog","has_children":true,"children":["page"],"children_order_by":"createdAt","children_order_direction":"desc"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	blog := decode[models.PageType](t, cl.do("GET", "/$/page-types/blog", ""))
	assert.True(t, blog.HasChildren)
	require.Len(t, blog.Children, 1)
	assert.Equal(t, "page", blog.Children[0].ID)
	assert.Equal(t, pages.Navigation{By: pages.OrderByCreatedAt, Direction: pages.Desc}, pages.NavigationFor(&blog))

	w = cl.do("PUT", "/$/page-types/blog", `{"name":"Blog","has_children":true,"children":["page"],"children_order_by":" createdAt ","children_order_direction":" DESC "}`)
	require.Equal(t, http.StatusOK, w.Code)
	blog = decode[models.PageType](t, cl.do("GET", "/$/page-types/blog", ""))
	require.NotNil(t, blog.ChildrenOrderBy)
	assert.Equal(t, "createdAt", *blog.ChildrenOrderBy)
	require.NotNil(t, blog.ChildrenOrderDirection)
	assert.Equal(t, "desc", *blog.ChildrenOrderDirection)
	assert.Equal(t, http.StatusBadRequest, cl.do("PUT", "/$/page-types/blog", `{"name":"Blog","children_order_direction":"sideways"}`).Code)

	require.Equal(t, http.StatusOK, cl.do("PUT", "/$/page-types/blog", `{"name":"Journal","children":[]}`).Code)
	blog = decode[models.PageType](t, cl.do("GET", "/$/page-types/blog", ""))
	assert.Equal(t, "Journal", blog.Name)
	assert.False(t, blog.HasChildren)
	assert.Empty(t, blog.Children)

	require.NoError(t, db.Omit(clause.Associations).Create(&models.Page{SiteID: 1, PageTypeID: "page", Title: "Home"}).Error)
	assert.Equal(t, http.StatusConflict, cl.do("DELETE", "/$/page-types/page", "").Code)
	assert.Equal(t, http.StatusOK, cl.do("DELETE", "/$/page-types/blog", "").Code)
	assert.Equal(t, http.StatusNotFound, cl.do("GET", "/$/page-types/blog", "").Code)
	assert.Len(t, decode[[]models.PageType](t, cl.do("GET", "/$/page-types", "")), 1)
}

func TestCategoriesAndTags(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(t, db)
	createTestUser(t, db, "admin@example.com", models.RoleAdmin+",ROLE_EDITOR")
	cl := login(t, router, "admin@example.com")

	w := cl.do("POST", "/$/categories", `{"name":"News","description":"Latest"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	category := decode[models.Category](t, w)

	page := &models.Page{SiteID: 1, PageTypeID: "page", Title: "Home", CategoryID: &category.ID}
	require.NoError(t, db.Omit(clause.Associations).Create(page).Error)

	require.Equal(t, http.StatusOK, cl.do("PUT", "/$/categories/1", `{"name":"Updates"}`).Code)
	assert.Equal(t, "Updates", decode[[]models.Category](t, cl.do("GET", "/$/categories", ""))[0].Name)

	require.Equal(t, http.StatusOK, cl.do("DELETE", "/$/categories/1", "").Code)
	var reloaded models.Page
	require.NoError(t, db.First(&reloaded, page.ID).Error)
	assert.Nil(t, reloaded.CategoryID)

	assert.Equal(t, http.StatusCreated, cl.do("POST", "/$/tags", `{"name":" Go "}`).Code)
	w = cl.do("POST", "/$/tags", `{"name":"go"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	tag := decode[models.Tag](t, w)
	assert.Equal(t, "go", tag.Name)

	require.NoError(t, db.Model(page).Association("Tags").Append(&tag))
	require.Equal(t, http.StatusOK, cl.do("DELETE", "/$/tags/1", "").Code)
	assert.Zero(t, db.Model(page).Association("Tags").Count())
	assert.Empty(t, decode[[]models.Tag](t, cl.do("GET", "/$/tags", "")))
}
