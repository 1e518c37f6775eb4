package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pagesmith/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, RunMigrations(db))
	return db
}

const seedYAML = `
page_types:
  - id: page
    name: Page
  - id: blog
    name: Blog
    has_children: true
    children: [page]
    children_order_by: createdAt
    children_order_direction: desc
    admin_template: blog_edit.html
`

func loadType(t *testing.T, db *gorm.DB, id string) models.PageType {
	var pt models.PageType
	require.NoError(t, db.Preload("Children").First(&pt, "id = ?", id).Error)
	return pt
}

func TestSeedPageTypes(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, SeedPageTypes(db, strings.NewReader(seedYAML)))

	blog := loadType(t, db, "blog")
	assert.True(t, blog.HasChildren)
	require.NotNil(t, blog.ChildrenOrderBy)
	assert.Equal(t, "createdAt", *blog.ChildrenOrderBy)
	require.NotNil(t, blog.AdminTemplate)
	assert.Equal(t, "blog_edit.html", *blog.AdminTemplate)
	require.Len(t, blog.Children, 1)
	assert.Equal(t, "page", blog.Children[0].ID)
	assert.True(t, blog.AllowsChild("page"))
}

func TestSeedPageTypes_Upsert(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SeedPageTypes(db, strings.NewReader(seedYAML)))

	updated := `
page_types:
  - id: blog
    name: Journal
    has_children: false
`
	require.NoError(t, SeedPageTypes(db, strings.NewReader(updated)))

	blog := loadType(t, db, "blog")
	assert.Equal(t, "Journal", blog.Name)
	assert.False(t, blog.HasChildren)
	assert.Empty(t, blog.Children)

	var count int64
	db.Model(&models.PageType{}).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestSeedPageTypes_Invalid(t *testing.T) {
	db := setupTestDB(t)

	err := SeedPageTypes(db, strings.NewReader("page_types:\n  - name: Nameless\n"))
	assert.Error(t, err)

	err = SeedPageTypes(db, strings.NewReader("page_types:\n  - id: blog\n    children: [ghost]\n"))
	assert.ErrorIs(t, err, ErrUnknownChildType)

	var count int64
	db.Model(&models.PageType{}).Count(&count)
	assert.Zero(t, count)
}
