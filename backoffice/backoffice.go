package backoffice

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pagesmith/models"
	"pagesmith/pages"
)

const (
	GroupSites      = "sites"
	GroupMenus      = "menus"
	GroupPageTypes  = "page_types"
	GroupCategories = "categories"
	GroupTags       = "tags"
)

// RoleResolver returns the role a user needs to manage a group.
type RoleResolver interface {
	ManagementRole(group string) string
}

type BackofficeModule struct {
	db    *gorm.DB
	pages *pages.Manager
	roles RoleResolver
}

func NewBackofficeModule(db *gorm.DB, manager *pages.Manager, roles RoleResolver) *BackofficeModule {
	return &BackofficeModule{db: db, pages: manager, roles: roles}
}

func (b *BackofficeModule) RegisterRoutes(router *gin.Engine) {
	backofficeGroup := router.Group("/$")
	{
		backofficeGroup.POST("/login", b.loginPost)
		backofficeGroup.POST("/logout", b.logout)

		sites := backofficeGroup.Group("/sites", b.requireRole(GroupSites))
		sites.GET("", b.listSites)
		sites.POST("", b.createSite)
		sites.GET("/:id", b.getSite)
		sites.PUT("/:id", b.updateSite)
		sites.DELETE("/:id", b.deleteSite)

		menus := backofficeGroup.Group("/menus", b.requireRole(GroupMenus))
		menus.GET("", b.listMenus)
		menus.POST("", b.createMenu)
		menus.PUT("/:id", b.updateMenu)
		menus.DELETE("/:id", b.deleteMenu)

		pageTypes := backofficeGroup.Group("/page-types", b.requireRole(GroupPageTypes))
		pageTypes.GET("", b.listPageTypes)
		pageTypes.POST("", b.createPageType)
		pageTypes.GET("/:id", b.getPageType)
		pageTypes.PUT("/:id", b.updatePageType)
		pageTypes.DELETE("/:id", b.deletePageType)

		categories := backofficeGroup.Group("/categories", b.requireRole(GroupCategories))
		categories.GET("", b.listCategories)
		categories.POST("", b.createCategory)
		categories.PUT("/:id", b.updateCategory)
		categories.DELETE("/:id", b.deleteCategory)

		tags := backofficeGroup.Group("/tags", b.requireRole(GroupTags))
		tags.GET("", b.listTags)
		tags.POST("", b.createTag)
		tags.DELETE("/:id", b.deleteTag)
	}
}

// requireRole lets the request through when the session user carries the
// role configured for group.
func (b *BackofficeModule) requireRole(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")
		if userID == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}

		var user models.User
		if err := b.db.First(&user, userID).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}

		if !user.HasRole(b.roles.ManagementRole(group)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		c.Set("backoffice_user", user)
		c.Next()
	}
}

type loginInput struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (b *BackofficeModule) loginPost(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := b.db.Where("email = ?", strings.TrimSpace(input.Email)).First(&user).Error; err != nil || !checkPasswordHash(input.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	if err := session.Save(); err != nil {
		log.Printf("error saving session: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": user.ID, "roles": user.Roles})
}

func (b *BackofficeModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return uint(id), true
}

// first loads the row with the given id into dest. On failure the response is
// already written.
func (b *BackofficeModule) first(c *gin.Context, dest any, id any) bool {
	err := b.db.WithContext(c.Request.Context()).First(dest, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return false
	}
	if err != nil {
		log.Printf("error loading %T %v: %v", dest, id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load record"})
		return false
	}
	return true
}

func storeError(c *gin.Context, action string, err error) {
	log.Printf("error trying to %s: %v", action, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "could not " + action})
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
