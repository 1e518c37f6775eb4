package admin

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"pagesmith/models"
)

func tagNames(tags []models.Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

// processPageTags replaces the tags of page with the comma separated names of
// tagsString, creating the tags that do not exist yet.
func processPageTags(tx *gorm.DB, page *models.Page, tagsString string) error {
	var tags []models.Tag
	seen := map[string]bool{}

	for _, tagName := range strings.Split(tagsString, ",") {
		tagName = strings.ToLower(strings.TrimSpace(tagName))
		if tagName == "" || seen[tagName] {
			continue
		}
		seen[tagName] = true

		var tag models.Tag
		err := tx.Where("name = ?", tagName).First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tag = models.Tag{Name: tagName}
			if err := tx.Create(&tag).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		tags = append(tags, tag)
	}

	association := tx.Model(page).Association("Tags")
	if len(tags) == 0 {
		page.Tags = nil
		return association.Clear()
	}
	if err := association.Replace(tags); err != nil {
		return err
	}
	page.Tags = tags
	return nil
}
