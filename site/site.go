package site

import (
	"bytes"
	"context"
	"errors"
	"html"
	"html/template"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"pagesmith/analytics"
	"pagesmith/common"
	"pagesmith/email"
	"pagesmith/models"
	"pagesmith/pages"
)

// MainMenu is the menu rendered as the site navigation.
const MainMenu = "main"

var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // raw HTML is cleaned by the policy below
	),
)

var policy = bluemonday.UGCPolicy()

type SiteModule struct {
	db        *gorm.DB
	pages     *pages.Manager
	analytics *analytics.AnalyticsModule
	mailer    *email.HelpdeskMailer
	uploadDir string
}

func NewSiteModule(db *gorm.DB, manager *pages.Manager, analyticsModule *analytics.AnalyticsModule, mailer *email.HelpdeskMailer, uploadDir string) *SiteModule {
	return &SiteModule{
		db:        db,
		pages:     manager,
		analytics: analyticsModule,
		mailer:    mailer,
		uploadDir: strings.Trim(uploadDir, "/"),
	}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	siteGroup := router.Group("/", common.SiteMiddleware(s.db))
	{
		siteGroup.GET("/", s.index)
		siteGroup.GET("/sitemap.xml", s.sitemap)
		siteGroup.POST("/contact", s.contact)
		siteGroup.GET("/:permalink", s.page)
	}
}

func renderMarkdown(content string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		return template.HTML(html.EscapeString(content))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

type link struct {
	Title     string
	Permalink string
	Active    bool
}

func links(list []models.Page, active *models.Page, title func(p *models.Page) string) []link {
	out := make([]link, 0, len(list))
	for i := range list {
		out = append(out, link{
			Title:     title(&list[i]),
			Permalink: list[i].PermalinkOrEmpty(),
			Active:    active != nil && list[i].ID == active.ID,
		})
	}
	return out
}

func menuTitle(p *models.Page) string {
	if p.MenuTitle != nil && *p.MenuTitle != "" {
		return *p.MenuTitle
	}
	return p.Title
}

func (s *SiteModule) index(c *gin.Context) {
	s.render(c, nil)
}

func (s *SiteModule) page(c *gin.Context) {
	permalink := c.Param("permalink")
	s.render(c, &permalink)
}

func (s *SiteModule) render(c *gin.Context, permalink *string) {
	site := common.CurrentSite(c)
	ctx := c.Request.Context()

	page, err := s.pages.ActivePageBySitePermalink(ctx, site, permalink)
	if err != nil {
		log.Printf("error loading page: %v", err)
		c.HTML(http.StatusInternalServerError, "site_error.html", gin.H{"site": site, "error": "Something went wrong"})
		return
	}
	if page == nil {
		c.HTML(http.StatusNotFound, "site_error.html", gin.H{"site": site, "error": "Page not found"})
		return
	}

	mainMenu := MainMenu
	navigation, err := s.pages.ActivePagesBySiteAndMenuName(ctx, site, &mainMenu)
	if err != nil {
		log.Printf("error loading main menu of site %d: %v", site.ID, err)
	}

	children, err := s.pages.ActivePagesWithMenuTitleFromParent(ctx, page)
	if err != nil {
		log.Printf("error loading children of page %d: %v", page.ID, err)
	}

	previous, next := s.neighbours(ctx, page)

	s.analytics.TrackVisit(c, site.ID, &page.ID)

	c.HTML(http.StatusOK, "site_page.html", gin.H{
		"site":        site,
		"page":        page,
		"bodyHTML":    renderMarkdown(page.Body),
		"summaryHTML": renderMarkdown(page.Summary),
		"navigation":  links(navigation, page, menuTitle),
		"children":    links(children, nil, menuTitle),
		"previous":    previous,
		"next":        next,
		"contact":     s.mailer.Enabled(),
		"contactSent": c.Query("contact") == "sent",
		"uploadDir":   s.uploadDir,
	})
}

// neighbours follows the menu for menu pages and the parent's child ordering
// for everything else.
func (s *SiteModule) neighbours(ctx context.Context, page *models.Page) (previous, next *link) {
	var (
		prevLink, nextLink string
		prevOK, nextOK     bool
		err                error
	)

	switch {
	case page.MenuID != nil:
		if prevLink, prevOK, err = s.pages.PreviousPermalinkInMenu(ctx, page); err == nil {
			nextLink, nextOK, err = s.pages.NextPermalinkInMenu(ctx, page)
		}
	case page.ParentID != nil:
		if prevLink, prevOK, err = s.pages.PreviousPermalinkFromParent(ctx, page); err == nil {
			nextLink, nextOK, err = s.pages.NextPermalinkFromParent(ctx, page)
		}
	}
	if err != nil {
		log.Printf("error loading neighbours of page %d: %v", page.ID, err)
		return nil, nil
	}

	if prevOK {
		previous = &link{Permalink: prevLink}
	}
	if nextOK {
		next = &link{Permalink: nextLink}
	}
	return previous, next
}

func baseURL(c *gin.Context, site *models.Site) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + site.Host
}

func (s *SiteModule) sitemap(c *gin.Context) {
	site := common.CurrentSite(c)

	list, err := s.pages.ActivePagesBySite(c.Request.Context(), site)
	if err != nil {
		log.Printf("error building sitemap of site %d: %v", site.ID, err)
		c.String(http.StatusInternalServerError, "")
		return
	}

	domain := baseURL(c, site)

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	for _, page := range list {
		lastmod := page.CreatedAt
		if page.UpdatedAt != nil {
			lastmod = *page.UpdatedAt
		}

		priority := "0.5"
		if page.Permalink == nil {
			priority = "1.0"
		}

		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + html.EscapeString(domain+"/"+page.PermalinkOrEmpty()) + "</loc>\n")
		sitemap.WriteString("    <lastmod>" + lastmod.UTC().Format(time.RFC3339) + "</lastmod>\n")
		sitemap.WriteString("    <priority>" + priority + "</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

func (s *SiteModule) contact(c *gin.Context) {
	site := common.CurrentSite(c)
	if !s.mailer.Enabled() {
		c.HTML(http.StatusNotFound, "site_error.html", gin.H{"site": site, "error": "Page not found"})
		return
	}

	msg := email.ContactMessage{
		Name:    c.PostForm("name"),
		Email:   c.PostForm("email"),
		Subject: c.PostForm("subject"),
		Message: c.PostForm("message"),
		Site:    site.Host,
	}

	back := "/" + strings.Trim(c.PostForm("permalink"), "/")

	if err := s.mailer.SendContactMessage(msg); err != nil {
		status := http.StatusInternalServerError
		text := "Your message could not be sent"
		if errors.Is(err, email.ErrInvalidContact) {
			status = http.StatusBadRequest
			text = err.Error()
		} else {
			log.Printf("error sending contact message: %v", err)
		}
		c.HTML(status, "site_contact.html", gin.H{"site": site, "error": text, "back": back})
		return
	}

	c.Redirect(http.StatusSeeOther, back+"?contact=sent")
}
