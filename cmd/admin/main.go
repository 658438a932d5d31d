// Package main provides librarian management utilities for Toolhub.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"toolhub/internal/config"
	"toolhub/internal/database"
	"toolhub/internal/models"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin/main.go promote <user_id>      - Promote user to librarian")
		fmt.Println("  go run ./cmd/admin/main.go demote <user_id>       - Demote librarian to patron")
		fmt.Println("  go run ./cmd/admin/main.go list-librarians        - List all librarians")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	command := os.Args[1]

	switch command {
	case "promote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin/main.go promote <user_id>")
			os.Exit(1)
		}
		promoteToLibrarian(db, os.Args[2])

	case "demote":
		if len(os.Args) < 3 {
			fmt.Println("Usage: go run ./cmd/admin/main.go demote <user_id>")
			os.Exit(1)
		}
		demoteToPatron(db, os.Args[2])

	case "list-librarians":
		listLibrarians(db)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func promoteToLibrarian(db *gorm.DB, userID string) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	if user.IsLibrarian() {
		fmt.Printf("User %s (ID: %d) is already a librarian\n", user.Username, user.ID)
		return
	}

	user.Role = models.RoleLibrarian
	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("Failed to promote user: %v", err)
	}

	fmt.Printf("✅ Successfully promoted %s (ID: %d) to librarian\n", user.Username, user.ID)
}

func demoteToPatron(db *gorm.DB, userID string) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User with ID %s not found\n", userID)
		} else {
			log.Fatalf("Database error: %v", err)
		}
		os.Exit(1)
	}

	if !user.IsLibrarian() {
		fmt.Printf("User %s (ID: %d) is not a librarian\n", user.Username, user.ID)
		return
	}

	var librarians int64
	if err := db.Model(&models.User{}).Where("role = ?", models.RoleLibrarian).Count(&librarians).Error; err != nil {
		log.Fatalf("Database error: %v", err)
	}
	if librarians <= 1 {
		fmt.Println("Refusing to demote the last librarian")
		os.Exit(1)
	}

	user.Role = models.RolePatron
	if err := db.Save(&user).Error; err != nil {
		log.Fatalf("Failed to demote user: %v", err)
	}

	fmt.Printf("✅ Successfully demoted %s (ID: %d) to patron\n", user.Username, user.ID)
}

func listLibrarians(db *gorm.DB) {
	var librarians []models.User
	if err := db.Where("role = ?", models.RoleLibrarian).Find(&librarians).Error; err != nil {
		log.Fatalf("Failed to fetch librarians: %v", err)
	}

	if len(librarians) == 0 {
		fmt.Println("No librarians found in the system")
		return
	}

	fmt.Println("\n📋 Current Librarians:")
	fmt.Println("─────────────────────────────────────")
	for _, librarian := range librarians {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", librarian.ID, librarian.Username, librarian.Email)
	}
	fmt.Println("─────────────────────────────────────")
}
