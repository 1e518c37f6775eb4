package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pagesmith/models"
)

// Store runs page queries against a backing database.
type Store interface {
	Find(ctx context.Context, q Query) ([]models.Page, error)
	// First returns nil, nil when nothing matches.
	First(ctx context.Context, q Query) (*models.Page, error)
	Count(ctx context.Context, q Query) (int64, error)
	Save(ctx context.Context, pages ...*models.Page) error
	Delete(ctx context.Context, page *models.Page) error
	// Transaction runs fn against a store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

var joinClauses = map[Join]string{
	JoinParent:          "INNER JOIN pages parent ON parent.id = pages.parent_id",
	JoinPageType:        "INNER JOIN page_types ON page_types.id = pages.page_type_id",
	JoinMenu:            "INNER JOIN menus ON menus.id = pages.menu_id",
	JoinAllowedChildren: "INNER JOIN page_type_children ON page_type_children.page_type_id = pages.page_type_id",
}

// GormStore is the Store used by the application, backed by sqlite or postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Find(ctx context.Context, q Query) ([]models.Page, error) {
	tx, err := s.build(ctx, q)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	if err := preload(tx).Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *GormStore) First(ctx context.Context, q Query) (*models.Page, error) {
	q.Limit = 1
	pages, err := s.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, nil
	}
	return &pages[0], nil
}

func (s *GormStore) Count(ctx context.Context, q Query) (int64, error) {
	q.OrderBy = nil
	q.Limit = 0
	tx, err := s.build(ctx, q)
	if err != nil {
		return 0, err
	}

	var count int64
	err = tx.Distinct("pages.id").Count(&count).Error
	return count, err
}

// Save writes the page columns only. Tags and files have their own writers.
func (s *GormStore) Save(ctx context.Context, pages ...*models.Page) error {
	for _, p := range pages {
		if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error; err != nil {
			return fmt.Errorf("save page %d: %w", p.ID, err)
		}
	}
	return nil
}

// Delete removes the page with its files and tag links. Child pages are left alone.
func (s *GormStore) Delete(ctx context.Context, page *models.Page) error {
	return s.db.WithContext(ctx).Select("Files", "Tags").Delete(page).Error
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) build(ctx context.Context, q Query) (*gorm.DB, error) {
	tx := s.db.WithContext(ctx).Model(&models.Page{}).Select("pages.*")

	for _, j := range q.Joins {
		join, ok := joinClauses[j]
		if !ok {
			return nil, fmt.Errorf("unknown join %d", j)
		}
		tx = tx.Joins(join)
	}

	for _, p := range q.Where {
		sql, args, err := predicateSQL(p)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(sql, args...)
	}

	for _, o := range q.OrderBy {
		if o.Direction != Asc && o.Direction != Desc {
			return nil, fmt.Errorf("invalid sort direction %q", o.Direction)
		}
		tx = tx.Order(string(o.Field) + " " + strings.ToUpper(string(o.Direction)))
	}

	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	return tx, nil
}

func preload(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("PageType").
		Preload("PageType.Children").
		Preload("Parent").
		Preload("Parent.PageType").
		Preload("Menu").
		Preload("Files")
}

var errEmptyDisjunction = errors.New("empty OR predicate")

func predicateSQL(p Predicate) (string, []any, error) {
	if p.Or != nil {
		if len(p.Or) == 0 {
			return "", nil, errEmptyDisjunction
		}
		parts := make([]string, 0, len(p.Or))
		var args []any
		for _, sub := range p.Or {
			sql, subArgs, err := predicateSQL(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			args = append(args, subArgs...)
		}
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	}

	switch p.Op {
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", p.Field, p.Op), nil, nil
	case OpEq, OpNotEq, OpLess, OpGreater:
		return fmt.Sprintf("%s %s ?", p.Field, p.Op), []any{p.Value}, nil
	default:
		return "", nil, fmt.Errorf("unsupported operator %q", p.Op)
	}
}
