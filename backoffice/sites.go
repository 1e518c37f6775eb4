package backoffice

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pagesmith/models"
)

type siteInput struct {
	Name string `json:"name" binding:"required"`
	Host string `json:"host" binding:"required"`
}

type siteWithStats struct {
	models.Site
	PageCount int64 `json:"page_count"`
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

func (b *BackofficeModule) withStats(c *gin.Context, site models.Site) siteWithStats {
	count, err := b.pages.CountBySite(c.Request.Context(), &site)
	if err != nil {
		log.Printf("error counting pages of site %d: %v", site.ID, err)
	}
	return siteWithStats{Site: site, PageCount: count}
}

func (b *BackofficeModule) listSites(c *gin.Context) {
	var sites []models.Site
	if err := b.db.Order("name").Find(&sites).Error; err != nil {
		storeError(c, "load sites", err)
		return
	}

	out := make([]siteWithStats, 0, len(sites))
	for _, site := range sites {
		out = append(out, b.withStats(c, site))
	}
	c.JSON(http.StatusOK, out)
}

func (b *BackofficeModule) getSite(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var site models.Site
	if !b.first(c, &site, id) {
		return
	}
	c.JSON(http.StatusOK, b.withStats(c, site))
}

// hostTaken reports whether another site already serves host.
func (b *BackofficeModule) hostTaken(host string, exceptID uint) (bool, error) {
	var count int64
	err := b.db.Model(&models.Site{}).Where("host = ? AND id <> ?", host, exceptID).Count(&count).Error
	return count > 0, err
}

func (b *BackofficeModule) bindSite(c *gin.Context, site *models.Site) bool {
	var input siteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}

	host := normalizeHost(input.Host)
	taken, err := b.hostTaken(host, site.ID)
	if err != nil {
		storeError(c, "check host", err)
		return false
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "host is already in use"})
		return false
	}

	site.Name = strings.TrimSpace(input.Name)
	site.Host = host
	return true
}

func (b *BackofficeModule) createSite(c *gin.Context) {
	var site models.Site
	if !b.bindSite(c, &site) {
		return
	}
	if err := b.db.Create(&site).Error; err != nil {
		storeError(c, "create site", err)
		return
	}
	c.JSON(http.StatusCreated, site)
}

func (b *BackofficeModule) updateSite(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var site models.Site
	if !b.first(c, &site, id) || !b.bindSite(c, &site) {
		return
	}
	if err := b.db.Save(&site).Error; err != nil {
		storeError(c, "update site", err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// deleteSite refuses sites that still have pages.
func (b *BackofficeModule) deleteSite(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var site models.Site
	if !b.first(c, &site, id) {
		return
	}

	stats := b.withStats(c, site)
	if stats.PageCount > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "site still has pages", "page_count": stats.PageCount})
		return
	}

	if err := b.db.Where("site_id = ?", site.ID).Delete(&models.Menu{}).Error; err != nil {
		storeError(c, "delete menus", err)
		return
	}
	if err := b.db.Delete(&site).Error; err != nil {
		storeError(c, "delete site", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
