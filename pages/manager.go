package pages

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"pagesmith/models"
)

var (
	ErrPageNotFound        = errors.New("page not found")
	ErrOrderBatch          = errors.New("change order rejected")
	ErrNilPage             = errors.New("page is required")
	ErrParentSiteMismatch  = errors.New("parent page belongs to another site")
	ErrParentCycle         = errors.New("parent page would create a cycle")
	ErrChildTypeNotAllowed = errors.New("page type not allowed under parent")
)

// maxTreeDepth bounds the walk up the parent chain when validating a parent.
const maxTreeDepth = 64

// Manager answers every page lookup of the CMS. It builds a Query for each
// operation and lets the Store run it.
type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// WithClock replaces the clock used by the active window. Tests pin it.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) clock() time.Time {
	return m.now().UTC()
}

func siteID(site *models.Site) uint {
	if site == nil {
		return 0
	}
	return site.ID
}

func pageIDPtr(page *models.Page) *uint {
	if page == nil {
		return nil
	}
	id := page.ID
	return &id
}

func (m *Manager) ActivePageBySitePermalink(ctx context.Context, site *models.Site, permalink *string) (page *models.Page, err error) {
	defer observe("active_page_by_site_permalink", time.Now(), &err)
	return m.store.First(ctx, ActivePageBySitePermalinkQuery(siteID(site), permalink, m.clock()))
}

func (m *Manager) ActivePagesBySiteAndMenu(ctx context.Context, site *models.Site, menu *models.Menu) (pages []models.Page, err error) {
	defer observe("active_pages_by_site_and_menu", time.Now(), &err)

	var menuID *uint
	if menu != nil {
		menuID = &menu.ID
	}
	return m.store.Find(ctx, ActivePagesBySiteAndMenuQuery(siteID(site), menuID, m.clock()))
}

// ActivePagesBySiteAndMenuName resolves the menu by name inside the site. A
// nil name lists the pages without a menu.
func (m *Manager) ActivePagesBySiteAndMenuName(ctx context.Context, site *models.Site, menuName *string) (pages []models.Page, err error) {
	defer observe("active_pages_by_site_and_menu_name", time.Now(), &err)
	return m.store.Find(ctx, ActivePagesBySiteAndMenuNameQuery(siteID(site), menuName, m.clock()))
}

func (m *Manager) ActivePagesBySite(ctx context.Context, site *models.Site) (pages []models.Page, err error) {
	defer observe("active_pages_by_site", time.Now(), &err)
	return m.store.Find(ctx, ActivePagesBySiteQuery(siteID(site), m.clock()))
}

// ActivePagesFromParent lists active children of parent, or active top level
// pages when parent is nil.
func (m *Manager) ActivePagesFromParent(ctx context.Context, parent *models.Page) (pages []models.Page, err error) {
	defer observe("active_pages_from_parent", time.Now(), &err)
	return m.store.Find(ctx, ActivePagesFromParentQuery(pageIDPtr(parent), m.clock()))
}

func (m *Manager) ActivePagesWithMenuTitleFromParent(ctx context.Context, parent *models.Page) (pages []models.Page, err error) {
	defer observe("active_pages_with_menu_title_from_parent", time.Now(), &err)
	return m.store.Find(ctx, ActivePagesWithMenuTitleFromParentQuery(pageIDPtr(parent), m.clock()))
}

func (m *Manager) ByID(ctx context.Context, id uint) (page *models.Page, err error) {
	defer observe("by_id", time.Now(), &err)
	return m.store.First(ctx, ByIDQuery(id))
}

// ByPermalink is not scoped to a site.
func (m *Manager) ByPermalink(ctx context.Context, permalink string) (page *models.Page, err error) {
	defer observe("by_permalink", time.Now(), &err)
	return m.store.First(ctx, ByPermalinkQuery(permalink))
}

func (m *Manager) All(ctx context.Context) (pages []models.Page, err error) {
	defer observe("all", time.Now(), &err)
	return m.store.Find(ctx, AllQuery())
}

func (m *Manager) AllTopLevel(ctx context.Context) (pages []models.Page, err error) {
	defer observe("all_top_level", time.Now(), &err)
	return m.store.Find(ctx, AllTopLevelQuery())
}

func (m *Manager) AllLooseBySite(ctx context.Context, site *models.Site) (pages []models.Page, err error) {
	defer observe("all_loose_by_site", time.Now(), &err)
	return m.store.Find(ctx, AllLooseBySiteQuery(siteID(site)))
}

func (m *Manager) AllChildren(ctx context.Context, parent *models.Page) (pages []models.Page, err error) {
	defer observe("all_children", time.Now(), &err)
	if parent == nil {
		return nil, ErrNilPage
	}
	return m.store.Find(ctx, AllChildrenQuery(parent.ID))
}

func (m *Manager) AllChildableBySite(ctx context.Context, site *models.Site) (pages []models.Page, err error) {
	defer observe("all_childable_by_site", time.Now(), &err)
	return m.store.Find(ctx, AllChildableBySiteQuery(siteID(site)))
}

// AllChildableExcept lists the pages that could become the parent of page.
func (m *Manager) AllChildableExcept(ctx context.Context, page *models.Page) (pages []models.Page, err error) {
	defer observe("all_childable_except", time.Now(), &err)
	if page == nil {
		return nil, ErrNilPage
	}
	return m.store.Find(ctx, AllChildableExceptQuery(page))
}

// FirstNByPageType returns at most n pages of the type. n <= 0 returns none.
func (m *Manager) FirstNByPageType(ctx context.Context, pageTypeID string, n int) (pages []models.Page, err error) {
	defer observe("first_n_by_page_type", time.Now(), &err)
	if n <= 0 {
		return []models.Page{}, nil
	}
	return m.store.Find(ctx, FirstNByPageTypeQuery(pageTypeID, n))
}

// NextPermalinkInMenu returns the permalink of the page following active in
// its menu. Pages without a menu have no neighbours.
func (m *Manager) NextPermalinkInMenu(ctx context.Context, active *models.Page) (permalink string, found bool, err error) {
	defer observe("next_permalink_in_menu", time.Now(), &err)
	if active == nil {
		return "", false, ErrNilPage
	}
	if active.MenuID == nil {
		return "", false, nil
	}
	return m.permalinkOf(ctx, NextInMenuQuery(*active.MenuID, active.OrderID))
}

func (m *Manager) PreviousPermalinkInMenu(ctx context.Context, active *models.Page) (permalink string, found bool, err error) {
	defer observe("previous_permalink_in_menu", time.Now(), &err)
	if active == nil {
		return "", false, ErrNilPage
	}
	if active.MenuID == nil {
		return "", false, nil
	}
	return m.permalinkOf(ctx, PreviousInMenuQuery(*active.MenuID, active.OrderID))
}

func (m *Manager) LastFromParentByPermalink(ctx context.Context, permalink string) (page *models.Page, err error) {
	defer observe("last_from_parent_by_permalink", time.Now(), &err)
	return m.store.First(ctx, LastNFromParentByPermalinkQuery(permalink, 1))
}

func (m *Manager) NewestFromParentByPermalink(ctx context.Context, permalink string) (page *models.Page, err error) {
	defer observe("newest_from_parent_by_permalink", time.Now(), &err)
	return m.store.First(ctx, NewestNFromParentByPermalinkQuery(permalink, 1))
}

func (m *Manager) LastNFromParentByPermalink(ctx context.Context, permalink string, n int) (pages []models.Page, err error) {
	defer observe("last_n_from_parent_by_permalink", time.Now(), &err)
	if n <= 0 {
		return []models.Page{}, nil
	}
	return m.store.Find(ctx, LastNFromParentByPermalinkQuery(permalink, n))
}

func (m *Manager) NewestNFromParentByPermalink(ctx context.Context, permalink string, n int) (pages []models.Page, err error) {
	defer observe("newest_n_from_parent_by_permalink", time.Now(), &err)
	if n <= 0 {
		return []models.Page{}, nil
	}
	return m.store.Find(ctx, NewestNFromParentByPermalinkQuery(permalink, n))
}

// NextPermalinkFromParent follows the child ordering of the parent's page type.
func (m *Manager) NextPermalinkFromParent(ctx context.Context, page *models.Page) (permalink string, found bool, err error) {
	defer observe("next_permalink_from_parent", time.Now(), &err)
	return m.siblingPermalink(ctx, page, false)
}

func (m *Manager) PreviousPermalinkFromParent(ctx context.Context, page *models.Page) (permalink string, found bool, err error) {
	defer observe("previous_permalink_from_parent", time.Now(), &err)
	return m.siblingPermalink(ctx, page, true)
}

func (m *Manager) siblingPermalink(ctx context.Context, page *models.Page, previous bool) (string, bool, error) {
	if page == nil {
		return "", false, ErrNilPage
	}
	if page.ParentID == nil {
		return "", false, nil
	}

	parent := page.Parent
	if parent == nil || parent.ID != *page.ParentID || parent.PageType.ID == "" {
		var err error
		parent, err = m.store.First(ctx, ByIDQuery(*page.ParentID))
		if err != nil {
			return "", false, err
		}
		if parent == nil {
			return "", false, nil
		}
	}

	nav := NavigationFor(&parent.PageType)
	if previous {
		nav = nav.Previous()
	}
	return m.permalinkOf(ctx, SiblingQuery(page, parent.ID, nav))
}

func (m *Manager) permalinkOf(ctx context.Context, q Query) (string, bool, error) {
	page, err := m.store.First(ctx, q)
	if err != nil || page == nil {
		return "", false, err
	}
	return page.PermalinkOrEmpty(), true, nil
}

func (m *Manager) CountBySite(ctx context.Context, site *models.Site) (count int64, err error) {
	defer observe("count_by_site", time.Now(), &err)
	return m.store.Count(ctx, CountBySiteQuery(siteID(site)))
}

// ChangeOrder gives every page of order the position it is keyed by. Values
// are page ids, optionally followed by ".<anything>" as posted by the admin
// table. Nothing is written unless every id resolves.
func (m *Manager) ChangeOrder(ctx context.Context, order map[int]string) (err error) {
	defer observe("change_order", time.Now(), &err)

	positions := make([]int, 0, len(order))
	for pos := range order {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	return m.store.Transaction(ctx, func(tx Store) error {
		changed := make([]*models.Page, 0, len(positions))
		for _, pos := range positions {
			id, err := ParsePageID(order[pos])
			if err != nil {
				return fmt.Errorf("%w: position %d: %v", ErrOrderBatch, pos, err)
			}

			page, err := tx.First(ctx, ByIDQuery(id))
			if err != nil {
				return err
			}
			if page == nil {
				return fmt.Errorf("%w: page %d: %w", ErrOrderBatch, id, ErrPageNotFound)
			}

			page.OrderID = pos
			changed = append(changed, page)
		}
		return tx.Save(ctx, changed...)
	})
}

// ParsePageID reads "5" or "5.2" as page id 5.
func ParsePageID(raw string) (uint, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid page id %q", raw)
	}
	return uint(id), nil
}

// ValidateParent checks that parent may hold page: same site, no cycle and a
// page type that accepts the page's type.
func (m *Manager) ValidateParent(ctx context.Context, page, parent *models.Page) (err error) {
	defer observe("validate_parent", time.Now(), &err)
	if page == nil || parent == nil {
		return ErrNilPage
	}
	if parent.SiteID != page.SiteID {
		return ErrParentSiteMismatch
	}
	if parent.PageType.ID != "" && !parent.PageType.AllowsChild(page.PageTypeID) {
		return ErrChildTypeNotAllowed
	}
	if page.ID == 0 {
		return nil
	}

	current := parent
	for depth := 0; current != nil && depth < maxTreeDepth; depth++ {
		if current.ID == page.ID {
			return ErrParentCycle
		}
		if current.ParentID == nil {
			return nil
		}
		current, err = m.store.First(ctx, ByIDQuery(*current.ParentID))
		if err != nil {
			return err
		}
	}
	if current != nil {
		return ErrParentCycle
	}
	return nil
}

// Save persists the page columns. Callers set UpdatedAt/UpdatedByID on edits.
func (m *Manager) Save(ctx context.Context, page *models.Page) (err error) {
	defer observe("save", time.Now(), &err)
	if page == nil {
		return ErrNilPage
	}
	return m.store.Save(ctx, page)
}

// Remove deletes the page, its files and tag links. Children keep their
// parent id.
func (m *Manager) Remove(ctx context.Context, page *models.Page) (err error) {
	defer observe("remove", time.Now(), &err)
	if page == nil {
		return ErrNilPage
	}
	return m.store.Delete(ctx, page)
}
