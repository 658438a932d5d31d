package database

import "toolhub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Item{},
		&models.Collection{},
		&models.BorrowRequest{},
		&models.ItemReview{},
	}
}
