package models

import "gorm.io/gorm"

// AutoMigrate creates or updates the full schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Balance{},
		&Transaction{},
		&Plan{},
		&Category{},
		&Profile{},
	)
}
