package admin

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pagesmith/models"
	"pagesmith/pages"
)

func sitePagesURL(siteID uint, parentID *uint) string {
	url := fmt.Sprintf("/admin/sites/%d/pages", siteID)
	if parentID != nil {
		url += fmt.Sprintf("?parent=%d", *parentID)
	}
	return url
}

func (a *AdminModule) listPages(c *gin.Context) {
	site, ok := a.loadSite(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var menus []models.Menu
	if err := a.db.Where("site_id = ?", site.ID).Order("name").Find(&menus).Error; err != nil {
		a.render(c, http.StatusInternalServerError, "admin_error.html", gin.H{"error": "Could not load menus"})
		return
	}

	var (
		parent *models.Page
		list   []models.Page
		err    error
	)
	if raw := c.Query("parent"); raw != "" {
		if id, perr := pages.ParsePageID(raw); perr == nil {
			parent, err = a.pages.ByID(ctx, id)
		}
		if err == nil && (parent == nil || parent.SiteID != site.ID) {
			addFlash(c, flashDanger, "The parent page does not exist")
			c.Redirect(http.StatusFound, sitePagesURL(site.ID, nil))
			return
		}
		if err == nil {
			list, err = a.pages.AllChildren(ctx, parent)
		}
	} else {
		list, err = a.pages.AllLooseBySite(ctx, site)
	}
	if err != nil {
		log.Printf("error listing pages of site %d: %v", site.ID, err)
		a.render(c, http.StatusInternalServerError, "admin_error.html", gin.H{"error": "Could not load pages"})
		return
	}

	childable, err := a.pages.AllChildableBySite(ctx, site)
	if err != nil {
		log.Printf("error listing childable pages of site %d: %v", site.ID, err)
	}

	var pageTypes []models.PageType
	if parent != nil {
		pageTypes = parent.PageType.Children
	} else if err := a.db.Order("name").Find(&pageTypes).Error; err != nil {
		log.Printf("error loading page types: %v", err)
	}

	a.render(c, http.StatusOK, "admin_pages.html", gin.H{
		"site":           site,
		"pages":          list,
		"menus":          menus,
		"childablePages": childable,
		"parentPage":     parent,
		"pageTypes":      pageTypes,
	})
}

func (a *AdminModule) newPage(c *gin.Context) {
	site, ok := a.loadSite(c)
	if !ok {
		return
	}

	var pageType models.PageType
	if err := a.db.Preload("Children").First(&pageType, "id = ?", c.Param("pageTypeID")).Error; err != nil {
		addFlash(c, flashDanger, "The page type does not exist")
		c.Redirect(http.StatusFound, sitePagesURL(site.ID, nil))
		return
	}

	now := a.now().UTC()
	page := &models.Page{
		SiteID:      site.ID,
		Site:        site,
		PageTypeID:  pageType.ID,
		PageType:    pageType,
		PublishAt:   &now,
		OrderID:     0,
		CreatedByID: currentUserID(c),
	}
	if raw := c.Query("parent"); raw != "" {
		if id, err := pages.ParsePageID(raw); err == nil {
			page.ParentID = &id
		}
	}

	formAction := fmt.Sprintf("/admin/sites/%d/pages/new/%s", site.ID, pageType.ID)
	a.handlePageForm(c, site, page, formAction, true)
}

func (a *AdminModule) editPage(c *gin.Context) {
	id, err := pages.ParsePageID(c.Param("id"))
	var page *models.Page
	if err == nil {
		page, err = a.pages.ByID(c.Request.Context(), id)
	}
	if err != nil || page == nil {
		addFlash(c, flashDanger, fmt.Sprintf("Page %s does not exist", c.Param("id")))
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}

	var site models.Site
	if err := a.db.First(&site, page.SiteID).Error; err != nil {
		addFlash(c, flashDanger, "The site does not exist")
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}
	page.Site = &site

	if err := a.db.Model(page).Association("Tags").Find(&page.Tags); err != nil {
		log.Printf("error loading tags of page %d: %v", page.ID, err)
	}

	a.handlePageForm(c, &site, page, fmt.Sprintf("/admin/pages/%d/edit", page.ID), false)
}

// handlePageForm renders the admin form of the page's type on GET and binds,
// validates and saves it on POST.
func (a *AdminModule) handlePageForm(c *gin.Context, site *models.Site, page *models.Page, formAction string, isNew bool) {
	ctx := c.Request.Context()

	form, err := a.forms.FormFor(&page.PageType)
	if err != nil {
		log.Printf("page type %s: %v", page.PageTypeID, err)
		addFlash(c, flashDanger, "The admin form of this page type does not exist")
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}
	handler, err := a.forms.HandlerFor(&page.PageType)
	if err != nil {
		log.Printf("page type %s: %v", page.PageTypeID, err)
		addFlash(c, flashDanger, "The admin form handler of this page type does not exist")
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}

	action := "edit"
	if isNew {
		action = "new"
	}
	show := func(status int, formErr error) {
		data := gin.H{
			"site":       site,
			"page":       page,
			"view":       newPageView(page),
			"action":     action,
			"formAction": formAction,
			"tags":       c.PostForm("tags"),
		}
		if c.Request.Method == http.MethodGet {
			data["tags"] = tagNames(page.Tags)
		}
		if formErr != nil {
			data["error"] = formErr.Error()
		}
		a.addFormChoices(c, site, page, data)
		a.render(c, status, adminTemplate(&page.PageType), data)
	}

	if c.Request.Method != http.MethodPost {
		show(http.StatusOK, nil)
		return
	}

	if err := form.Bind(c, page); err != nil {
		show(http.StatusBadRequest, err)
		return
	}
	if err := a.validateRelations(c, page); err != nil {
		show(http.StatusBadRequest, err)
		return
	}
	if handler != nil {
		if err := handler.HandleForm(c, page); err != nil {
			show(http.StatusBadRequest, err)
			return
		}
	}

	if !isNew {
		now := a.now().UTC()
		page.UpdatedAt = &now
		page.UpdatedByID = currentUserID(c)
	}
	for i := range page.Files {
		page.Files[i].URI = a.stripUploadDir(page.Files[i].URI)
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := pages.NewManager(pages.NewGormStore(tx)).Save(ctx, page); err != nil {
			return err
		}
		if err := replaceFiles(tx, page); err != nil {
			return fmt.Errorf("save files: %w", err)
		}
		if err := processPageTags(tx, page, c.PostForm("tags")); err != nil {
			return fmt.Errorf("save tags: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Printf("error saving page %d: %v", page.ID, err)
		if isNew {
			page.ID = 0
		}
		show(http.StatusInternalServerError, fmt.Errorf("could not save page"))
		return
	}

	if isNew {
		addFlash(c, flashSuccess, fmt.Sprintf("Page %q added", page.Title))
	} else {
		addFlash(c, flashSuccess, fmt.Sprintf("Page %q edited", page.Title))
	}
	c.Redirect(http.StatusFound, sitePagesURL(site.ID, page.ParentID))
}

// validateRelations checks parent and menu against the page's site.
func (a *AdminModule) validateRelations(c *gin.Context, page *models.Page) error {
	ctx := c.Request.Context()

	if page.ParentID != nil {
		parent, err := a.pages.ByID(ctx, *page.ParentID)
		if err != nil {
			return err
		}
		if parent == nil {
			return fmt.Errorf("parent page %d: %w", *page.ParentID, pages.ErrPageNotFound)
		}
		if err := a.pages.ValidateParent(ctx, page, parent); err != nil {
			return err
		}
	}

	if page.MenuID != nil {
		var count int64
		if err := a.db.Model(&models.Menu{}).Where("id = ? AND site_id = ?", *page.MenuID, page.SiteID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("menu %d does not belong to this site", *page.MenuID)
		}
	}
	return nil
}

type option struct {
	ID       string
	Label    string
	Selected bool
}

func (a *AdminModule) addFormChoices(c *gin.Context, site *models.Site, page *models.Page, data gin.H) {
	var menus []models.Menu
	if err := a.db.Where("site_id = ?", site.ID).Order("name").Find(&menus).Error; err != nil {
		log.Printf("error loading menus: %v", err)
	}
	menuOptions := make([]option, 0, len(menus))
	for _, m := range menus {
		menuOptions = append(menuOptions, option{ID: idString(m.ID), Label: m.Name, Selected: page.MenuID != nil && *page.MenuID == m.ID})
	}

	parents, err := a.pages.AllChildableExcept(c.Request.Context(), page)
	if err != nil {
		log.Printf("error loading parent candidates: %v", err)
	}
	parentOptions := make([]option, 0, len(parents))
	for _, p := range parents {
		parentOptions = append(parentOptions, option{ID: idString(p.ID), Label: p.Title, Selected: page.ParentID != nil && *page.ParentID == p.ID})
	}

	var categories []models.Category
	if err := a.db.Order("name").Find(&categories).Error; err != nil {
		log.Printf("error loading categories: %v", err)
	}
	categoryOptions := make([]option, 0, len(categories))
	for _, cat := range categories {
		categoryOptions = append(categoryOptions, option{ID: idString(cat.ID), Label: cat.Name, Selected: page.CategoryID != nil && *page.CategoryID == cat.ID})
	}

	data["menus"] = menuOptions
	data["parents"] = parentOptions
	data["categories"] = categoryOptions
}

// pageView holds the page fields as the form inputs expect them.
type pageView struct {
	ID          uint
	Title       string
	Permalink   string
	MenuTitle   string
	Summary     string
	Body        string
	PublishAt   string
	PublishTill string
	Files       []models.File
}

func newPageView(page *models.Page) pageView {
	v := pageView{
		ID:        page.ID,
		Title:     page.Title,
		Permalink: page.PermalinkOrEmpty(),
		Summary:   page.Summary,
		Body:      page.Body,
		Files:     page.Files,
	}
	if page.MenuTitle != nil {
		v.MenuTitle = *page.MenuTitle
	}
	if page.PublishAt != nil {
		v.PublishAt = page.PublishAt.UTC().Format(dateTimeLayout)
	}
	if page.PublishTill != nil {
		v.PublishTill = page.PublishTill.UTC().Format(dateTimeLayout)
	}
	return v
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// stripUploadDir makes file URIs relative to the upload directory.
func (a *AdminModule) stripUploadDir(uri string) string {
	if a.uploadDir == "" {
		return uri
	}
	return strings.TrimPrefix(uri, "/"+a.uploadDir)
}

func replaceFiles(tx *gorm.DB, page *models.Page) error {
	if err := tx.Where("page_id = ?", page.ID).Delete(&models.File{}).Error; err != nil {
		return err
	}
	for i := range page.Files {
		page.Files[i].ID = 0
		page.Files[i].PageID = page.ID
	}
	if len(page.Files) == 0 {
		return nil
	}
	return tx.Create(&page.Files).Error
}

func (a *AdminModule) removePage(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := pages.ParsePageID(c.Param("id"))
	var page *models.Page
	if err == nil {
		page, err = a.pages.ByID(ctx, id)
	}
	if err != nil || page == nil {
		addFlash(c, flashDanger, fmt.Sprintf("Page %s could not be removed, it does not exist", c.Param("id")))
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}

	children, err := a.pages.AllChildren(ctx, page)
	if err != nil {
		log.Printf("error loading children of page %d: %v", page.ID, err)
	}

	if err := a.pages.Remove(ctx, page); err != nil {
		log.Printf("error removing page %d: %v", page.ID, err)
		addFlash(c, flashDanger, fmt.Sprintf("Page %d could not be removed", page.ID))
		c.Redirect(http.StatusFound, sitePagesURL(page.SiteID, nil))
		return
	}

	message := fmt.Sprintf("Page %d removed", page.ID)
	if len(children) > 0 {
		message = fmt.Sprintf("Page %d removed, %d child pages no longer have a parent", page.ID, len(children))
	}
	addFlash(c, flashSuccess, message)
	c.Redirect(http.StatusFound, sitePagesURL(page.SiteID, nil))
}

// generatePermalink answers the editor's XHR with a free permalink for text.
func (a *AdminModule) generatePermalink(c *gin.Context) {
	if !isXHR(c) {
		c.String(http.StatusForbidden, "403")
		return
	}

	slug := pages.Slugify(c.PostForm("text"))
	if slug == "" {
		c.String(http.StatusOK, "")
		return
	}

	var currentID *uint
	if raw := c.PostForm("page_id"); raw != "" {
		if id, err := pages.ParsePageID(raw); err == nil {
			currentID = &id
		}
	}

	permalink, err := a.pages.UniquePermalink(c.Request.Context(), slug, currentID)
	if err != nil {
		log.Printf("error generating permalink for %q: %v", slug, err)
		c.String(http.StatusInternalServerError, "")
		return
	}
	c.String(http.StatusOK, permalink)
}

// changeOrder stores the row order of the admin page table, posted as
// pages_table[row]=<page id>.<anything>.
func (a *AdminModule) changeOrder(c *gin.Context) {
	if !isXHR(c) {
		c.String(http.StatusForbidden, "403")
		return
	}

	table := c.PostFormMap("pages_table")
	order := make(map[int]string, len(table))
	for row, value := range table {
		pos, err := strconv.Atoi(row)
		if err != nil {
			c.String(http.StatusOK, "failure")
			return
		}
		order[pos] = value
	}

	if err := a.pages.ChangeOrder(c.Request.Context(), order); err != nil {
		log.Printf("error changing page order: %v", err)
		c.String(http.StatusOK, "failure")
		return
	}
	c.String(http.StatusOK, "success")
}
