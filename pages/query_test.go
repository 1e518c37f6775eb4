package pages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pagesmith/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestActiveAt(t *testing.T) {
	preds := ActiveAt(fixedNow)

	assert.Len(t, preds, 2)
	assert.Equal(t, []Predicate{
		{Field: FieldPublishAt, Op: OpLess, Value: fixedNow},
		{Field: FieldPublishAt, Op: OpIsNull},
	}, preds[0].Or)
	assert.Equal(t, []Predicate{
		{Field: FieldPublishTill, Op: OpGreater, Value: fixedNow},
		{Field: FieldPublishTill, Op: OpIsNull},
	}, preds[1].Or)
}

func TestActivePageBySitePermalinkQuery(t *testing.T) {
	about := "about"

	q := ActivePageBySitePermalinkQuery(3, &about, fixedNow)
	assert.Equal(t, 1, q.Limit)
	assert.Equal(t, eq(FieldSiteID, uint(3)), q.Where[0])
	assert.Equal(t, eq(FieldPermalink, "about"), q.Where[1])
	assert.Len(t, q.Where, 4)

	root := ActivePageBySitePermalinkQuery(3, nil, fixedNow)
	assert.Equal(t, isNull(FieldPermalink), root.Where[1])
}

func TestActivePagesBySiteQuery_UnsavedSite(t *testing.T) {
	assert.Equal(t, Query{}, ActivePagesBySiteQuery(0, fixedNow))
	assert.NotEmpty(t, ActivePagesBySiteQuery(1, fixedNow).Where)
}

func TestActivePagesBySiteAndMenuNameQuery(t *testing.T) {
	main := "main"

	q := ActivePagesBySiteAndMenuNameQuery(2, &main, fixedNow)
	assert.Equal(t, []Join{JoinMenu}, q.Joins)
	assert.Contains(t, q.Where, eq(FieldMenuName, "main"))
	assert.Contains(t, q.Where, eq(FieldMenuSiteID, uint(2)))

	none := ActivePagesBySiteAndMenuNameQuery(2, nil, fixedNow)
	assert.Empty(t, none.Joins)
	assert.Contains(t, none.Where, isNull(FieldMenuID))
}

func TestAllLooseBySiteQuery(t *testing.T) {
	q := AllLooseBySiteQuery(7)

	assert.Equal(t, []Predicate{
		eq(FieldSiteID, uint(7)),
		isNull(FieldParentID),
		isNull(FieldMenuID),
	}, q.Where)
	assert.Equal(t, byOrderAsc, q.OrderBy)
}

func TestAllChildableExceptQuery(t *testing.T) {
	q := AllChildableExceptQuery(&models.Page{ID: 9, SiteID: 1, PageTypeID: "article"})
	assert.Equal(t, []Join{JoinPageType, JoinAllowedChildren}, q.Joins)
	assert.Contains(t, q.Where, cmp(FieldID, OpNotEq, uint(9)))
	assert.Contains(t, q.Where, eq(FieldAllowedChildType, "article"))
	assert.Contains(t, q.Where, eq(FieldTypeHasChildren, true))

	fresh := AllChildableExceptQuery(&models.Page{SiteID: 1, PageTypeID: "article"})
	assert.NotContains(t, fresh.Where, cmp(FieldID, OpNotEq, uint(0)))
}

func TestMenuNeighbourQueries(t *testing.T) {
	next := NextInMenuQuery(4, 10)
	assert.Contains(t, next.Where, cmp(FieldOrderID, OpGreater, 10))
	assert.Equal(t, []Sort{{Field: FieldOrderID, Direction: Asc}}, next.OrderBy)
	assert.Equal(t, 1, next.Limit)

	prev := PreviousInMenuQuery(4, 10)
	assert.Contains(t, prev.Where, cmp(FieldOrderID, OpLess, 10))
	assert.Equal(t, []Sort{{Field: FieldOrderID, Direction: Desc}}, prev.OrderBy)
}

func TestSiblingQuery(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	page := &models.Page{OrderID: 5, CreatedAt: created}

	tests := []struct {
		name  string
		nav   Navigation
		where Predicate
		sort  Sort
	}{
		{
			name:  "order asc",
			nav:   Navigation{By: OrderByOrderID, Direction: Asc},
			where: cmp(FieldOrderID, OpGreater, 5),
			sort:  Sort{Field: FieldOrderID, Direction: Asc},
		},
		{
			name:  "order desc",
			nav:   Navigation{By: OrderByOrderID, Direction: Desc},
			where: cmp(FieldOrderID, OpLess, 5),
			sort:  Sort{Field: FieldOrderID, Direction: Desc},
		},
		{
			name:  "created desc",
			nav:   Navigation{By: OrderByCreatedAt, Direction: Desc},
			where: cmp(FieldCreatedAt, OpLess, created),
			sort:  Sort{Field: FieldCreatedAt, Direction: Desc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := SiblingQuery(page, 8, tt.nav)
			assert.Equal(t, []Predicate{eq(FieldParentID, uint(8)), tt.where}, q.Where)
			assert.Equal(t, []Sort{tt.sort}, q.OrderBy)
			assert.Equal(t, 1, q.Limit)
		})
	}
}

func TestFromParentByPermalinkQueries(t *testing.T) {
	last := LastNFromParentByPermalinkQuery("news", 3)
	assert.Equal(t, []Join{JoinParent}, last.Joins)
	assert.Equal(t, []Sort{{Field: FieldOrderID, Direction: Desc}}, last.OrderBy)
	assert.Equal(t, 3, last.Limit)

	newest := NewestNFromParentByPermalinkQuery("news", 2)
	assert.Equal(t, []Sort{{Field: FieldCreatedAt, Direction: Desc}}, newest.OrderBy)
	assert.Equal(t, []Predicate{eq(FieldParentPermalink, "news")}, newest.Where)
}

func TestPredicateSQL(t *testing.T) {
	sql, args, err := predicateSQL(ActiveAt(fixedNow)[0])
	assert.NoError(t, err)
	assert.Equal(t, "(pages.publish_at < ? OR pages.publish_at IS NULL)", sql)
	assert.Equal(t, []any{fixedNow}, args)

	_, _, err = predicateSQL(Predicate{Or: []Predicate{}})
	assert.ErrorIs(t, err, errEmptyDisjunction)

	_, _, err = predicateSQL(Predicate{Field: FieldID, Op: "LIKE", Value: "x"})
	assert.Error(t, err)
}
