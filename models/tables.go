package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const RoleAdmin = "ROLE_ADMIN"

type User struct {
	ID           uint   `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Roles        string `gorm:"not null;default:''" json:"roles"` // comma separated, e.g. "ROLE_ADMIN,ROLE_EDITOR"
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range strings.Split(u.Roles, ",") {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}

type Site struct {
	ID        uint      `gorm:"primary_key;autoIncrement" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Host      string    `gorm:"unique;not null;index" json:"host"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Menu struct {
	ID     uint   `gorm:"primary_key;autoIncrement" json:"id"`
	SiteID uint   `gorm:"not null;index" json:"site_id"`
	Site   *Site  `json:"-"`
	Name   string `gorm:"not null;index" json:"name"`
}

type PageType struct {
	ID                     string     `gorm:"primaryKey;size:64" json:"id" yaml:"id"`
	Name                   string     `gorm:"not null" json:"name" yaml:"name"`
	HasChildren            bool       `gorm:"not null;default:false" json:"has_children" yaml:"has_children"`
	Children               []PageType `gorm:"many2many:page_type_children;joinForeignKey:PageTypeID;joinReferences:ChildID" json:"children,omitempty" yaml:"-"`
	ChildrenOrderBy        *string    `json:"children_order_by,omitempty" yaml:"children_order_by"`
	ChildrenOrderDirection *string    `json:"children_order_direction,omitempty" yaml:"children_order_direction"`
	AdminForm              *string    `json:"admin_form,omitempty" yaml:"admin_form"`
	AdminFormHandler       *string    `json:"admin_form_handler,omitempty" yaml:"admin_form_handler"`
	AdminTemplate          *string    `json:"admin_template,omitempty" yaml:"admin_template"`
}

type Category struct {
	ID          uint   `gorm:"primary_key;autoIncrement" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

type Tag struct {
	ID   uint   `gorm:"primary_key;autoIncrement" json:"id"`
	Name string `gorm:"unique;not null;index" json:"name"`
}

type File struct {
	ID        uint      `gorm:"primary_key;autoIncrement" json:"id"`
	PageID    uint      `gorm:"not null;index" json:"page_id"`
	URI       string    `gorm:"not null" json:"uri"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Page struct {
	ID          uint       `gorm:"primary_key;autoIncrement" json:"id"`
	SiteID      uint       `gorm:"not null;index" json:"site_id"`
	Site        *Site      `json:"-"`
	ParentID    *uint      `gorm:"index" json:"parent_id,omitempty"`
	Parent      *Page      `json:"-"`
	MenuID      *uint      `gorm:"index" json:"menu_id,omitempty"`
	Menu        *Menu      `json:"-"`
	PageTypeID  string     `gorm:"not null;index;size:64" json:"page_type_id"`
	PageType    PageType   `json:"-"`
	CategoryID  *uint      `gorm:"index" json:"category_id,omitempty"`
	Category    *Category  `json:"-"`
	Tags        []Tag      `gorm:"many2many:page_tags" json:"tags,omitempty"`
	Files       []File     `json:"files,omitempty"`
	Permalink   *string    `gorm:"index" json:"permalink"`
	Title       string     `gorm:"not null" json:"title"`
	MenuTitle   *string    `json:"menu_title,omitempty"`
	Summary     string     `gorm:"type:text" json:"summary"`
	Body        string     `gorm:"type:text" json:"body"` // markdown
	OrderID     int        `gorm:"not null;default:0;index" json:"order_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`
	CreatedByID *uint      `json:"created_by_id,omitempty"`
	UpdatedByID *uint      `json:"updated_by_id,omitempty"`
	PublishAt   *time.Time `gorm:"index" json:"publish_at,omitempty"`
	PublishTill *time.Time `gorm:"index" json:"publish_till,omitempty"`
}

// BeforeSave keeps every timestamp in UTC. sqlite compares them as text.
func (p *Page) BeforeSave(tx *gorm.DB) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = utcPtr(p.UpdatedAt)
	p.PublishAt = utcPtr(p.PublishAt)
	p.PublishTill = utcPtr(p.PublishTill)
	return nil
}

// IsActiveAt reports whether the page is inside its publish window at t.
// Both bounds are exclusive.
func (p *Page) IsActiveAt(t time.Time) bool {
	if p.PublishAt != nil && !p.PublishAt.Before(t) {
		return false
	}
	if p.PublishTill != nil && !p.PublishTill.After(t) {
		return false
	}
	return true
}

// IsLoose reports whether the page hangs under neither a parent nor a menu.
func (p *Page) IsLoose() bool {
	return p.ParentID == nil && p.MenuID == nil
}

// PermalinkOrEmpty returns the permalink, or "" for the site root page.
func (p *Page) PermalinkOrEmpty() string {
	if p.Permalink == nil {
		return ""
	}
	return *p.Permalink
}

// AllowsChild reports whether pages of type childID may be placed under pt.
func (pt *PageType) AllowsChild(childID string) bool {
	if !pt.HasChildren {
		return false
	}
	for _, c := range pt.Children {
		if c.ID == childID {
			return true
		}
	}
	return false
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
