package database

import (
	"log"

	"gorm.io/gorm"

	"pagesmith/models"
)

func RunMigrations(db *gorm.DB) error {
	log.Println("running database migrations...")

	err := db.AutoMigrate(
		&models.User{},
		&models.Site{},
		&models.Menu{},
		&models.PageType{},
		&models.Category{},
		&models.Tag{},
		&models.Page{},
		&models.File{},
	)

	if err != nil {
		log.Printf("error running migrations: %v", err)
		return err
	}

	log.Println("migrations completed successfully")
	return nil
}
