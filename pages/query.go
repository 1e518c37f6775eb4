package pages

import (
	"time"

	"pagesmith/models"
)

// Field is a column reference a Query may filter or sort on. The set is closed:
// stores interpolate fields into SQL, values are always bound.
type Field string

const (
	FieldID          Field = "pages.id"
	FieldSiteID      Field = "pages.site_id"
	FieldParentID    Field = "pages.parent_id"
	FieldMenuID      Field = "pages.menu_id"
	FieldPageTypeID  Field = "pages.page_type_id"
	FieldPermalink   Field = "pages.permalink"
	FieldMenuTitle   Field = "pages.menu_title"
	FieldOrderID     Field = "pages.order_id"
	FieldCreatedAt   Field = "pages.created_at"
	FieldPublishAt   Field = "pages.publish_at"
	FieldPublishTill Field = "pages.publish_till"

	FieldParentPermalink  Field = "parent.permalink"
	FieldTypeHasChildren  Field = "page_types.has_children"
	FieldMenuName         Field = "menus.name"
	FieldMenuSiteID       Field = "menus.site_id"
	FieldAllowedChildType Field = "page_type_children.child_id"
)

type Op string

const (
	OpEq        Op = "="
	OpNotEq     Op = "<>"
	OpLess      Op = "<"
	OpGreater   Op = ">"
	OpIsNull    Op = "IS NULL"
	OpIsNotNull Op = "IS NOT NULL"
)

type Join int

const (
	// JoinParent joins the parent page as "parent".
	JoinParent Join = iota + 1
	// JoinPageType joins the page's own type as "page_types".
	JoinPageType
	// JoinMenu joins the page's menu as "menus".
	JoinMenu
	// JoinAllowedChildren joins the child types the page's type accepts as "page_type_children".
	JoinAllowedChildren
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Invert swaps asc and desc.
func (d Direction) Invert() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// Predicate is a single condition. When Or is set the predicate is the
// disjunction of those conditions and Field/Op/Value are ignored.
type Predicate struct {
	Field Field
	Op    Op
	Value any
	Or    []Predicate
}

type Sort struct {
	Field     Field
	Direction Direction
}

// Query is a declarative description of a page lookup.
type Query struct {
	Joins   []Join
	Where   []Predicate
	OrderBy []Sort
	Limit   int
}

func eq(f Field, v any) Predicate { return Predicate{Field: f, Op: OpEq, Value: v} }
func isNull(f Field) Predicate { return Predicate{Field: f, Op: OpIsNull} }
func isNotNull(f Field) Predicate { return Predicate{Field: f, Op: OpIsNotNull} }
func cmp(f Field, op Op, v any) Predicate { return Predicate{Field: f, Op: op, Value: v} }

// eqOrNull matches the value, or NULL when the value is absent.
func eqOrNull[T any](f Field, v *T) Predicate {
	if v == nil {
		return isNull(f)
	}
	return eq(f, *v)
}

// ActiveAt expands to the publish window at now, exclusive on both ends.
func ActiveAt(now time.Time) []Predicate {
	return []Predicate{
		{Or: []Predicate{cmp(FieldPublishAt, OpLess, now), isNull(FieldPublishAt)}},
		{Or: []Predicate{cmp(FieldPublishTill, OpGreater, now), isNull(FieldPublishTill)}},
	}
}

var byOrderAsc = []Sort{{Field: FieldOrderID, Direction: Asc}}

func activeQuery(now time.Time, where ...Predicate) Query {
	return Query{
		Where:   append(where, ActiveAt(now)...),
		OrderBy: byOrderAsc,
	}
}

func ActivePageBySitePermalinkQuery(siteID uint, permalink *string, now time.Time) Query {
	q := activeQuery(now, eq(FieldSiteID, siteID), eqOrNull(FieldPermalink, permalink))
	q.Limit = 1
	return q
}

func ActivePagesBySiteAndMenuQuery(siteID uint, menuID *uint, now time.Time) Query {
	return activeQuery(now, eq(FieldSiteID, siteID), eqOrNull(FieldMenuID, menuID))
}

func ActivePagesBySiteAndMenuNameQuery(siteID uint, menuName *string, now time.Time) Query {
	if menuName == nil {
		return activeQuery(now, eq(FieldSiteID, siteID), isNull(FieldMenuID))
	}
	q := activeQuery(now, eq(FieldSiteID, siteID), eq(FieldMenuSiteID, siteID), eq(FieldMenuName, *menuName))
	q.Joins = []Join{JoinMenu}
	return q
}

// ActivePagesBySiteQuery has no conditions at all for a site that was never saved.
func ActivePagesBySiteQuery(siteID uint, now time.Time) Query {
	if siteID == 0 {
		return Query{}
	}
	return activeQuery(now, eq(FieldSiteID, siteID))
}

func ActivePagesFromParentQuery(parentID *uint, now time.Time) Query {
	return activeQuery(now, eqOrNull(FieldParentID, parentID))
}

func ActivePagesWithMenuTitleFromParentQuery(parentID *uint, now time.Time) Query {
	return activeQuery(now, eqOrNull(FieldParentID, parentID), isNotNull(FieldMenuTitle))
}

func ByIDQuery(id uint) Query {
	return Query{Where: []Predicate{eq(FieldID, id)}, Limit: 1}
}

func ByPermalinkQuery(permalink string) Query {
	return Query{Where: []Predicate{eq(FieldPermalink, permalink)}, Limit: 1}
}

func AllQuery() Query {
	return Query{OrderBy: byOrderAsc}
}

func AllTopLevelQuery() Query {
	return Query{Where: []Predicate{isNull(FieldParentID)}, OrderBy: byOrderAsc}
}

func AllLooseBySiteQuery(siteID uint) Query {
	return Query{
		Where:   []Predicate{eq(FieldSiteID, siteID), isNull(FieldParentID), isNull(FieldMenuID)},
		OrderBy: byOrderAsc,
	}
}

func AllChildrenQuery(parentID uint) Query {
	return Query{Where: []Predicate{eq(FieldParentID, parentID)}, OrderBy: byOrderAsc}
}

func childableQuery(where ...Predicate) Query {
	return Query{
		Joins: []Join{JoinPageType},
		Where: append([]Predicate{eq(FieldTypeHasChildren, true)}, where...),
	}
}

func AllChildableBySiteQuery(siteID uint) Query {
	return childableQuery(eq(FieldSiteID, siteID))
}

// AllChildableExceptQuery lists pages of the page's site whose type accepts
// the page's type as a child. The page itself is left out once it has an id.
func AllChildableExceptQuery(page *models.Page) Query {
	var where []Predicate
	if page.ID != 0 {
		where = append(where, cmp(FieldID, OpNotEq, page.ID))
	}
	where = append(where, eq(FieldSiteID, page.SiteID), eq(FieldAllowedChildType, page.PageTypeID))

	q := childableQuery(where...)
	q.Joins = append(q.Joins, JoinAllowedChildren)
	return q
}

func FirstNByPageTypeQuery(pageTypeID string, n int) Query {
	return Query{
		Where:   []Predicate{eq(FieldPageTypeID, pageTypeID)},
		OrderBy: byOrderAsc,
		Limit:   n,
	}
}

func NextInMenuQuery(menuID uint, orderID int) Query {
	return Query{
		Where:   []Predicate{eq(FieldMenuID, menuID), cmp(FieldOrderID, OpGreater, orderID)},
		OrderBy: []Sort{{Field: FieldOrderID, Direction: Asc}},
		Limit:   1,
	}
}

func PreviousInMenuQuery(menuID uint, orderID int) Query {
	return Query{
		Where:   []Predicate{eq(FieldMenuID, menuID), cmp(FieldOrderID, OpLess, orderID)},
		OrderBy: []Sort{{Field: FieldOrderID, Direction: Desc}},
		Limit:   1,
	}
}

func fromParentByPermalinkQuery(permalink string, by Field, n int) Query {
	return Query{
		Joins:   []Join{JoinParent},
		Where:   []Predicate{eq(FieldParentPermalink, permalink)},
		OrderBy: []Sort{{Field: by, Direction: Desc}},
		Limit:   n,
	}
}

func LastNFromParentByPermalinkQuery(permalink string, n int) Query {
	return fromParentByPermalinkQuery(permalink, FieldOrderID, n)
}

func NewestNFromParentByPermalinkQuery(permalink string, n int) Query {
	return fromParentByPermalinkQuery(permalink, FieldCreatedAt, n)
}

// SiblingQuery finds the sibling right after the page when walking the
// parent's children with nav. Direction asc walks towards greater values,
// desc towards smaller ones, whatever the field. The comparator follows the
// direction and not the field, so createdAt asc walks to later pages and
// orderId desc walks to lower order ids.
func SiblingQuery(page *models.Page, parentID uint, nav Navigation) Query {
	field := FieldOrderID
	var value any = page.OrderID
	if nav.By == OrderByCreatedAt {
		field = FieldCreatedAt
		value = page.CreatedAt.UTC()
	}

	op := OpGreater
	if nav.Direction == Desc {
		op = OpLess
	}

	return Query{
		Where:   []Predicate{eq(FieldParentID, parentID), cmp(field, op, value)},
		OrderBy: []Sort{{Field: field, Direction: nav.Direction}},
		Limit:   1,
	}
}

func CountBySiteQuery(siteID uint) Query {
	return Query{Where: []Predicate{eq(FieldSiteID, siteID)}}
}
