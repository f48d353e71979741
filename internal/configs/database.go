package config

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	model "operator-dispatch.com/operator-dispatch/internal/models"
)

func NewDatabase(driver, dsn string) *gorm.DB {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	if driver != "postgres" {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("db handle failed: %v", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&model.Task{}, &model.Operator{}, &model.TaskEvent{}); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	return db
}
