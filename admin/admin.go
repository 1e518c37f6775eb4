package admin

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pagesmith/analytics"
	"pagesmith/models"
	"pagesmith/pages"
)

const (
	flashSuccess = "success"
	flashDanger  = "danger"
)

// passwordCost is lowered by tests.
var passwordCost = 14

type AdminModule struct {
	db        *gorm.DB
	pages     *pages.Manager
	forms     *FormRegistry
	analytics *analytics.AnalyticsModule
	uploadDir string
	now       func() time.Time
}

func NewAdminModule(db *gorm.DB, manager *pages.Manager, forms *FormRegistry, analyticsModule *analytics.AnalyticsModule, uploadDir string) *AdminModule {
	if forms == nil {
		forms = NewFormRegistry()
	}
	return &AdminModule{
		db:        db,
		pages:     manager,
		forms:     forms,
		analytics: analyticsModule,
		uploadDir: strings.Trim(uploadDir, "/"),
		now:       time.Now,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/login", a.loginPage)
	router.POST("/login", a.loginPost)
	router.GET("/admin", a.adminRoot)
	router.GET("/admin/logout", a.logout)

	adminGroup := router.Group("/admin")
	adminGroup.Use(a.requireAuth)
	{
		adminGroup.GET("/dashboard", a.dashboard)
		adminGroup.GET("/sites/:siteID/pages", a.listPages)
		adminGroup.GET("/sites/:siteID/pages/new/:pageTypeID", a.newPage)
		adminGroup.POST("/sites/:siteID/pages/new/:pageTypeID", a.newPage)
		adminGroup.GET("/sites/:siteID/visits", a.visits)
		adminGroup.GET("/pages/:id/edit", a.editPage)
		adminGroup.POST("/pages/:id/edit", a.editPage)
		adminGroup.POST("/pages/:id/remove", a.removePage)
		adminGroup.POST("/pages/permalink", a.generatePermalink)
		adminGroup.POST("/pages/order", a.changeOrder)
	}
}

func (a *AdminModule) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	userID := session.Get("user_id")

	if userID == nil {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}

	c.Set("user_id", userID)
	c.Next()
}

func currentUserID(c *gin.Context) *uint {
	v, ok := c.Get("user_id")
	if !ok {
		return nil
	}
	id, ok := v.(uint)
	if !ok {
		return nil
	}
	return &id
}

func (a *AdminModule) adminRoot(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}

	c.Redirect(http.StatusFound, "/login")
}

func (a *AdminModule) loginPage(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("user_id") != nil {
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}

	c.HTML(http.StatusOK, "admin_login.html", gin.H{})
}

func (a *AdminModule) loginPost(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	var user models.User
	if err := a.db.Where("email = ?", email).First(&user).Error; err != nil || !checkPasswordHash(password, user.PasswordHash) {
		c.HTML(http.StatusUnauthorized, "admin_login.html", gin.H{
			"error": "Invalid email or password",
			"email": email,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	if err := session.Save(); err != nil {
		log.Printf("error saving session: %v", err)
	}

	c.Redirect(http.StatusFound, "/admin/dashboard")
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/login")
}

type siteSummary struct {
	Site  models.Site
	Pages int64
}

func (a *AdminModule) dashboard(c *gin.Context) {
	var sites []models.Site
	if err := a.db.Order("name").Find(&sites).Error; err != nil {
		a.render(c, http.StatusInternalServerError, "admin_error.html", gin.H{"error": "Could not load sites"})
		return
	}

	summaries := make([]siteSummary, 0, len(sites))
	for i := range sites {
		count, err := a.pages.CountBySite(c.Request.Context(), &sites[i])
		if err != nil {
			log.Printf("error counting pages of site %d: %v", sites[i].ID, err)
		}
		summaries = append(summaries, siteSummary{Site: sites[i], Pages: count})
	}

	a.render(c, http.StatusOK, "admin_dashboard.html", gin.H{"sites": summaries})
}

// loadSite resolves :siteID. On failure the response is already written.
func (a *AdminModule) loadSite(c *gin.Context) (*models.Site, bool) {
	id, err := strconv.ParseUint(c.Param("siteID"), 10, 64)
	var site models.Site
	if err == nil {
		err = a.db.First(&site, id).Error
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, strconv.ErrSyntax) {
			log.Printf("error loading site %s: %v", c.Param("siteID"), err)
		}
		addFlash(c, flashDanger, "The site does not exist")
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return nil, false
	}
	return &site, true
}

func (a *AdminModule) render(c *gin.Context, status int, name string, data gin.H) {
	data["flashes"] = flashes(c)
	c.HTML(status, name, data)
}

func addFlash(c *gin.Context, kind, message string) {
	session := sessions.Default(c)
	session.AddFlash(message, kind)
	if err := session.Save(); err != nil {
		log.Printf("error saving flash: %v", err)
	}
}

func flashes(c *gin.Context) gin.H {
	session := sessions.Default(c)
	out := gin.H{
		flashSuccess: session.Flashes(flashSuccess),
		flashDanger:  session.Flashes(flashDanger),
	}
	session.Save()
	return out
}

func isXHR(c *gin.Context) bool {
	return c.GetHeader("X-Requested-With") == "XMLHttpRequest"
}

// CreateUser stores a user with a bcrypt hashed password. roles is a comma
// separated list.
func CreateUser(db *gorm.DB, email, password, roles string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: hash, Roles: roles}
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
