package backoffice

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pagesmith/models"
)

type menuInput struct {
	SiteID uint   `json:"site_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
}

func (b *BackofficeModule) listMenus(c *gin.Context) {
	query := b.db.Order("site_id, name")
	if siteID := c.Query("site_id"); siteID != "" {
		id, err := strconv.ParseUint(siteID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid site_id"})
			return
		}
		query = query.Where("site_id = ?", id)
	}

	var menus []models.Menu
	if err := query.Find(&menus).Error; err != nil {
		storeError(c, "load menus", err)
		return
	}
	c.JSON(http.StatusOK, menus)
}

func (b *BackofficeModule) bindMenu(c *gin.Context, menu *models.Menu) bool {
	var input menuInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}

	var site models.Site
	if err := b.db.First(&site, input.SiteID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "site does not exist"})
		return false
	}

	menu.SiteID = site.ID
	menu.Name = strings.TrimSpace(input.Name)
	return true
}

func (b *BackofficeModule) createMenu(c *gin.Context) {
	var menu models.Menu
	if !b.bindMenu(c, &menu) {
		return
	}
	if err := b.db.Create(&menu).Error; err != nil {
		storeError(c, "create menu", err)
		return
	}
	c.JSON(http.StatusCreated, menu)
}

func (b *BackofficeModule) updateMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var menu models.Menu
	if !b.first(c, &menu, id) || !b.bindMenu(c, &menu) {
		return
	}
	if err := b.db.Save(&menu).Error; err != nil {
		storeError(c, "update menu", err)
		return
	}
	c.JSON(http.StatusOK, menu)
}

// deleteMenu detaches the pages of the menu, they become loose pages.
func (b *BackofficeModule) deleteMenu(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var menu models.Menu
	if !b.first(c, &menu, id) {
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Page{}).Where("menu_id = ?", menu.ID).UpdateColumn("menu_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&menu).Error
	})
	if err != nil {
		storeError(c, "delete menu", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type categoryInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (b *BackofficeModule) listCategories(c *gin.Context) {
	var categories []models.Category
	if err := b.db.Order("name").Find(&categories).Error; err != nil {
		storeError(c, "load categories", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func bindCategory(c *gin.Context, category *models.Category) bool {
	var input categoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	category.Name = strings.TrimSpace(input.Name)
	category.Description = input.Description
	return true
}

func (b *BackofficeModule) createCategory(c *gin.Context) {
	var category models.Category
	if !bindCategory(c, &category) {
		return
	}
	if err := b.db.Create(&category).Error; err != nil {
		storeError(c, "create category", err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (b *BackofficeModule) updateCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var category models.Category
	if !b.first(c, &category, id) || !bindCategory(c, &category) {
		return
	}
	if err := b.db.Save(&category).Error; err != nil {
		storeError(c, "update category", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (b *BackofficeModule) deleteCategory(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var category models.Category
	if !b.first(c, &category, id) {
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Page{}).Where("category_id = ?", category.ID).UpdateColumn("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&category).Error
	})
	if err != nil {
		storeError(c, "delete category", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type tagInput struct {
	Name string `json:"name" binding:"required"`
}

func (b *BackofficeModule) listTags(c *gin.Context) {
	var tags []models.Tag
	if err := b.db.Order("name").Find(&tags).Error; err != nil {
		storeError(c, "load tags", err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// createTag returns the existing tag when the name is already known.
func (b *BackofficeModule) createTag(c *gin.Context) {
	var input tagInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.ToLower(strings.TrimSpace(input.Name))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	var existing []models.Tag
	if err := b.db.Where("name = ?", name).Limit(1).Find(&existing).Error; err != nil {
		storeError(c, "load tag", err)
		return
	}
	if len(existing) > 0 {
		c.JSON(http.StatusOK, existing[0])
		return
	}

	tag := models.Tag{Name: name}
	if err := b.db.Create(&tag).Error; err != nil {
		storeError(c, "create tag", err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

func (b *BackofficeModule) deleteTag(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var tag models.Tag
	if !b.first(c, &tag, id) {
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM page_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&tag).Error
	})
	if err != nil {
		storeError(c, "delete tag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
