package pages

import (
	"strings"

	"pagesmith/models"
)

type OrderBy string

const (
	OrderByOrderID   OrderBy = "orderId"
	OrderByCreatedAt OrderBy = "createdAt"
)

// Navigation is how a page type orders its children.
type Navigation struct {
	By        OrderBy
	Direction Direction
}

// NavigationFor reads the child ordering of a page type. Missing or invalid
// values fall back to orderId ascending.
func NavigationFor(pt *models.PageType) Navigation {
	nav := Navigation{By: OrderByOrderID, Direction: Asc}
	if pt == nil {
		return nav
	}

	if pt.ChildrenOrderDirection != nil {
		switch Direction(strings.ToLower(strings.TrimSpace(*pt.ChildrenOrderDirection))) {
		case Desc:
			nav.Direction = Desc
		}
	}

	if pt.ChildrenOrderBy != nil && OrderBy(*pt.ChildrenOrderBy) == OrderByCreatedAt {
		nav.By = OrderByCreatedAt
	}

	return nav
}

// Previous walks the same field the other way round.
func (n Navigation) Previous() Navigation {
	return Navigation{By: n.By, Direction: n.Direction.Invert()}
}
