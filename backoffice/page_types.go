package backoffice

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pagesmith/database"
	"pagesmith/models"
	"pagesmith/pages"
)

var errInvalidOrdering = errors.New("children_order_by must be orderId or createdAt and children_order_direction asc or desc")

type pageTypeInput struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name" binding:"required"`
	HasChildren            bool     `json:"has_children"`
	Children               []string `json:"children"`
	ChildrenOrderBy        *string  `json:"children_order_by"`
	ChildrenOrderDirection *string  `json:"children_order_direction"`
	AdminForm              *string  `json:"admin_form"`
	AdminFormHandler       *string  `json:"admin_form_handler"`
	AdminTemplate          *string  `json:"admin_template"`
}

// validate normalises the child ordering in place and rejects unknown values.
func (in *pageTypeInput) validate() error {
	in.ChildrenOrderBy = trimmedOrNil(in.ChildrenOrderBy)
	if in.ChildrenOrderBy != nil {
		switch pages.OrderBy(*in.ChildrenOrderBy) {
		case pages.OrderByOrderID, pages.OrderByCreatedAt:
		default:
			return errInvalidOrdering
		}
	}
	in.ChildrenOrderDirection = trimmedOrNil(in.ChildrenOrderDirection)
	if in.ChildrenOrderDirection != nil {
		direction := strings.ToLower(*in.ChildrenOrderDirection)
		switch pages.Direction(direction) {
		case pages.Asc, pages.Desc:
		default:
			return errInvalidOrdering
		}
		in.ChildrenOrderDirection = &direction
	}
	return nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (in *pageTypeInput) apply(pt *models.PageType) {
	pt.Name = strings.TrimSpace(in.Name)
	pt.HasChildren = in.HasChildren
	pt.ChildrenOrderBy = in.ChildrenOrderBy
	pt.ChildrenOrderDirection = in.ChildrenOrderDirection
	pt.AdminForm = in.AdminForm
	pt.AdminFormHandler = in.AdminFormHandler
	pt.AdminTemplate = in.AdminTemplate
}

func (b *BackofficeModule) listPageTypes(c *gin.Context) {
	var pageTypes []models.PageType
	if err := b.db.Preload("Children").Order("id").Find(&pageTypes).Error; err != nil {
		storeError(c, "load page types", err)
		return
	}
	c.JSON(http.StatusOK, pageTypes)
}

func (b *BackofficeModule) getPageType(c *gin.Context) {
	var pt models.PageType
	if err := b.db.Preload("Children").First(&pt, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		storeError(c, "load page type", err)
		return
	}
	c.JSON(http.StatusOK, pt)
}

func (b *BackofficeModule) bindPageType(c *gin.Context) (*pageTypeInput, bool) {
	var input pageTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if err := input.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return &input, true
}

// savePageType stores pt and its allowed children in one transaction.
func (b *BackofficeModule) savePageType(c *gin.Context, pt *models.PageType, children []string, status int) {
	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(pt).Error; err != nil {
			return err
		}
		return database.ReplacePageTypeChildren(tx, pt, children)
	})
	if errors.Is(err, database.ErrUnknownChildType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		storeError(c, "save page type", err)
		return
	}
	c.JSON(status, pt)
}

func (b *BackofficeModule) createPageType(c *gin.Context) {
	input, ok := b.bindPageType(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	var count int64
	if err := b.db.Model(&models.PageType{}).Where("id = ?", id).Count(&count).Error; err != nil {
		storeError(c, "check page type", err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "page type already exists"})
		return
	}

	pt := models.PageType{ID: id}
	input.apply(&pt)
	b.savePageType(c, &pt, input.Children, http.StatusCreated)
}

func (b *BackofficeModule) updatePageType(c *gin.Context) {
	var pt models.PageType
	if !b.first(c, &pt, c.Param("id")) {
		return
	}
	input, ok := b.bindPageType(c)
	if !ok {
		return
	}
	input.apply(&pt)
	b.savePageType(c, &pt, input.Children, http.StatusOK)
}

// deletePageType refuses types that pages still use.
func (b *BackofficeModule) deletePageType(c *gin.Context) {
	var pt models.PageType
	if !b.first(c, &pt, c.Param("id")) {
		return
	}

	var count int64
	if err := b.db.Model(&models.Page{}).Where("page_type_id = ?", pt.ID).Count(&count).Error; err != nil {
		storeError(c, "check page type", err)
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "page type is still in use", "page_count": count})
		return
	}

	err := b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM page_type_children WHERE page_type_id = ? OR child_id = ?", pt.ID, pt.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&pt).Error
	})
	if err != nil {
		storeError(c, "delete page type", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
