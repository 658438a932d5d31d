// Command main runs the database seeder for Toolhub.
package main

import (
	"flag"
	"log"

	"toolhub/internal/config"
	"toolhub/internal/database"
	"toolhub/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 25, "Number of users to create")
	numItems := flag.Int("items", 80, "Number of catalog items to create")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	presetsOnly := flag.Bool("presets-only", false, "Apply built-in presets and skip random data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if !*presetsOnly {
		if err := seed.Seed(db, seed.Options{
			NumUsers:    *numUsers,
			NumItems:    *numItems,
			ShouldClean: *shouldClean,
		}); err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	if err := seed.ApplyPresets(db); err != nil {
		log.Fatalf("❌ Built-in preset seeding failed: %v", err)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
}
