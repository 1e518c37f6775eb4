package common

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pagesmith/models"
)

const siteKey = "site"

// HostOf strips the port and lowercases the request host.
func HostOf(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// SiteMiddleware resolves the site served on the request host and stores it
// in the context. Unknown hosts get a 404.
func SiteMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var site models.Site
		err := db.WithContext(c.Request.Context()).Where("host = ?", HostOf(c.Request)).First(&site).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Set(siteKey, &site)
		c.Next()
	}
}

// CurrentSite returns the site set by SiteMiddleware, or nil.
func CurrentSite(c *gin.Context) *models.Site {
	v, ok := c.Get(siteKey)
	if !ok {
		return nil
	}
	site, _ := v.(*models.Site)
	return site
}
