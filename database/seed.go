package database

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pagesmith/models"
)

var ErrUnknownChildType = errors.New("unknown child page type")

type pageTypeSeed struct {
	models.PageType `yaml:",inline"`
	Children        []string `yaml:"children"`
}

type seedFile struct {
	PageTypes []pageTypeSeed `yaml:"page_types"`
}

// SeedPageTypesFile loads page types from a YAML file. See page_types.yaml.
func SeedPageTypesFile(db *gorm.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open page types: %w", err)
	}
	defer f.Close()
	return SeedPageTypes(db, f)
}

// SeedPageTypes upserts every page type of r and replaces their allowed
// children. Children may name any type of the file or one already stored.
func SeedPageTypes(db *gorm.DB, r io.Reader) error {
	var seed seedFile
	if err := yaml.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode page types: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range seed.PageTypes {
			pt := &seed.PageTypes[i].PageType
			if pt.ID == "" {
				return fmt.Errorf("page type #%d has no id", i+1)
			}
			if pt.Name == "" {
				pt.Name = pt.ID
			}
			if err := tx.Omit(clause.Associations).Save(pt).Error; err != nil {
				return fmt.Errorf("save page type %s: %w", pt.ID, err)
			}
		}

		for i := range seed.PageTypes {
			s := &seed.PageTypes[i]
			if err := ReplacePageTypeChildren(tx, &s.PageType, s.Children); err != nil {
				return err
			}
		}

		log.Printf("seeded %d page types", len(seed.PageTypes))
		return nil
	})
}

// ReplacePageTypeChildren sets the types allowed under pt to the ids in
// children. Every id must exist.
func ReplacePageTypeChildren(tx *gorm.DB, pt *models.PageType, children []string) error {
	children = unique(children)

	var found []models.PageType
	if len(children) > 0 {
		if err := tx.Where("id IN ?", children).Find(&found).Error; err != nil {
			return err
		}
		if len(found) != len(children) {
			return fmt.Errorf("%w: page type %s names unknown children %v", ErrUnknownChildType, pt.ID, children)
		}
	}

	association := tx.Model(pt).Association("Children")
	var err error
	if len(found) == 0 {
		err = association.Clear()
	} else {
		err = association.Replace(found)
	}
	if err != nil {
		return fmt.Errorf("save children of %s: %w", pt.ID, err)
	}
	pt.Children = found
	return nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
