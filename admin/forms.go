package admin

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"pagesmith/models"
)

const defaultAdminTemplate = "page_edit.html"

// dateTimeLayout matches <input type="datetime-local">. Values are read as UTC.
const dateTimeLayout = "2006-01-02T15:04"

var (
	ErrUnknownForm        = errors.New("admin form does not exist")
	ErrUnknownFormHandler = errors.New("admin form handler does not exist")
	ErrTitleRequired      = errors.New("title is required")
	ErrPublishWindow      = errors.New("publish till must be after publish at")
)

// PageForm binds posted fields onto a page. A page type selects one by name
// through AdminForm.
type PageForm interface {
	Bind(c *gin.Context, page *models.Page) error
}

// FormHandler runs after a form was bound and before the page is saved.
type FormHandler interface {
	HandleForm(c *gin.Context, page *models.Page) error
}

type PageFormFunc func(c *gin.Context, page *models.Page) error

func (f PageFormFunc) Bind(c *gin.Context, page *models.Page) error { return f(c, page) }

type FormHandlerFunc func(c *gin.Context, page *models.Page) error

func (f FormHandlerFunc) HandleForm(c *gin.Context, page *models.Page) error { return f(c, page) }

type FormRegistry struct {
	mu       sync.RWMutex
	forms    map[string]PageForm
	handlers map[string]FormHandler
}

func NewFormRegistry() *FormRegistry {
	return &FormRegistry{
		forms:    map[string]PageForm{},
		handlers: map[string]FormHandler{},
	}
}

func (r *FormRegistry) RegisterForm(name string, form PageForm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forms[name] = form
}

func (r *FormRegistry) RegisterHandler(name string, handler FormHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// FormFor returns the form named by the page type, or DefaultPageForm when it
// names none.
func (r *FormRegistry) FormFor(pt *models.PageType) (PageForm, error) {
	if pt == nil || pt.AdminForm == nil || *pt.AdminForm == "" {
		return DefaultPageForm{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	form, ok := r.forms[*pt.AdminForm]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownForm, *pt.AdminForm)
	}
	return form, nil
}

// HandlerFor returns nil when the page type names no handler.
func (r *FormRegistry) HandlerFor(pt *models.PageType) (FormHandler, error) {
	if pt == nil || pt.AdminFormHandler == nil || *pt.AdminFormHandler == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[*pt.AdminFormHandler]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormHandler, *pt.AdminFormHandler)
	}
	return handler, nil
}

func adminTemplate(pt *models.PageType) string {
	if pt.AdminTemplate != nil && *pt.AdminTemplate != "" {
		return *pt.AdminTemplate
	}
	return defaultAdminTemplate
}

// DefaultPageForm binds the fields every page has.
type DefaultPageForm struct{}

func (DefaultPageForm) Bind(c *gin.Context, page *models.Page) error {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		return ErrTitleRequired
	}
	page.Title = title
	page.Permalink = optionalString(strings.Trim(c.PostForm("permalink"), "/ "))
	page.MenuTitle = optionalString(c.PostForm("menu_title"))
	page.Summary = c.PostForm("summary")
	page.Body = c.PostForm("body")

	parentID, err := optionalID(c.PostForm("parent_id"))
	if err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if !sameID(page.ParentID, parentID) {
		page.ParentID, page.Parent = parentID, nil
	}

	menuID, err := optionalID(c.PostForm("menu_id"))
	if err != nil {
		return fmt.Errorf("menu: %w", err)
	}
	if !sameID(page.MenuID, menuID) {
		page.MenuID, page.Menu = menuID, nil
	}

	if page.CategoryID, err = optionalID(c.PostForm("category_id")); err != nil {
		return fmt.Errorf("category: %w", err)
	}
	page.Category = nil

	if page.PublishAt, err = optionalTime(c.PostForm("publish_at")); err != nil {
		return fmt.Errorf("publish at: %w", err)
	}
	if page.PublishTill, err = optionalTime(c.PostForm("publish_till")); err != nil {
		return fmt.Errorf("publish till: %w", err)
	}
	if page.PublishAt != nil && page.PublishTill != nil && !page.PublishTill.After(*page.PublishAt) {
		return ErrPublishWindow
	}

	uris := c.PostFormArray("file_uri")
	titles := c.PostFormArray("file_title")
	page.Files = nil
	for i, uri := range uris {
		uri = strings.TrimSpace(uri)
		if uri == "" {
			continue
		}
		file := models.File{PageID: page.ID, URI: uri}
		if i < len(titles) {
			file.Title = strings.TrimSpace(titles[i])
		}
		page.Files = append(page.Files, file)
	}

	return nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func optionalID(v string) (*uint, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid id %q", v)
	}
	u := uint(id)
	return &u, nil
}

func optionalTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateTimeLayout, v, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
