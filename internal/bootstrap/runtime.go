// Package bootstrap performs explicit startup tasks that are intentionally
// kept out of server construction, such as creating the first librarian
// account in development.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"toolhub/internal/config"
	"toolhub/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// EnsureDevLibrarian creates the configured development librarian account if
// no librarian exists yet. It never runs in production; the first production
// librarian is created through the admin command.
func EnsureDevLibrarian(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	if cfg == nil || !cfg.DevBootstrapLibrarian {
		return nil
	}
	if cfg.Env == "production" {
		log.Println("skipping dev librarian bootstrap in production")
		return nil
	}
	if cfg.DevLibrarianUsername == "" || cfg.DevLibrarianEmail == "" || cfg.DevLibrarianPassword == "" {
		return fmt.Errorf("dev librarian bootstrap enabled but credentials are incomplete")
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", models.RoleLibrarian).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count librarians: %w", err)
	}
	if count > 0 {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DevLibrarianPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash dev librarian password: %w", err)
	}

	librarian := models.User{
		Username: cfg.DevLibrarianUsername,
		Email:    cfg.DevLibrarianEmail,
		Password: string(hashed),
		Role:     models.RoleLibrarian,
	}
	if err := db.WithContext(ctx).Create(&librarian).Error; err != nil {
		return fmt.Errorf("create dev librarian: %w", err)
	}

	log.Printf("bootstrapped dev librarian %q (id=%d)", librarian.Username, librarian.ID)
	return nil
}
