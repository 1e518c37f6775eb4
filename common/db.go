package common

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dialector(driver, dsn string) gorm.Dialector {
	if driver == "postgres" {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

func ConnectDb(cfg *Config) *gorm.DB {
	log.Printf("connecting %s database", cfg.DBDriver)

	db, err := gorm.Open(dialector(cfg.DBDriver, cfg.DBDSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("error opening database: " + err.Error())
		return nil
	}
	log.Println("opened database with driver:", cfg.DBDriver)
	return db
}

// ConnectAnalyticsDb opens the separate analytics database. It is always a
// sqlite file; nil means analytics is disabled.
func ConnectAnalyticsDb(cfg *Config) *gorm.DB {
	if cfg.AnalyticsDB == "" {
		log.Println("analytics_db not set - analytics will be disabled")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.AnalyticsDB), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Println("error opening analytics sqlite db: " + err.Error())
		return nil
	}

	log.Println("opened analytics sqlite db at:", cfg.AnalyticsDB)
	return db
}
