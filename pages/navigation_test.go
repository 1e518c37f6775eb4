package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagesmith/models"
)

func strPtr(s string) *string { return &s }

func TestNavigationFor(t *testing.T) {
	tests := []struct {
		name     string
		pt       *models.PageType
		expected Navigation
	}{
		{"nil type", nil, Navigation{OrderByOrderID, Asc}},
		{"defaults", &models.PageType{}, Navigation{OrderByOrderID, Asc}},
		{"created desc", &models.PageType{ChildrenOrderBy: strPtr("createdAt"), ChildrenOrderDirection: strPtr("desc")}, Navigation{OrderByCreatedAt, Desc}},
		{"padded upper case", &models.PageType{ChildrenOrderDirection: strPtr("  DESC ")}, Navigation{OrderByOrderID, Desc}},
		{"unknown field", &models.PageType{ChildrenOrderBy: strPtr("title")}, Navigation{OrderByOrderID, Asc}},
		{"unknown direction", &models.PageType{ChildrenOrderDirection: strPtr("sideways")}, Navigation{OrderByOrderID, Asc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NavigationFor(tt.pt))
		})
	}
}

func TestNavigationPrevious(t *testing.T) {
	nav := Navigation{By: OrderByCreatedAt, Direction: Desc}
	assert.Equal(t, Navigation{By: OrderByCreatedAt, Direction: Asc}, nav.Previous())
	assert.Equal(t, nav, nav.Previous().Previous())
}
