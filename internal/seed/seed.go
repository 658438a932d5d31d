package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"toolhub/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seed populates the database with test data
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d items...", opts.NumUsers, opts.NumItems)

	// Clear existing data to avoid conflicts if requested
	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	factory := NewFactory(db, opts)

	users, err := createBaseUsers(db, factory, opts)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d test users created", len(users))

	items, err := createItems(factory, opts.NumItems)
	if err != nil {
		return fmt.Errorf("failed to create items: %w", err)
	}
	log.Printf("✓ %d catalog items created", len(items))

	if err := createBorrowHistory(factory, users, items); err != nil {
		return fmt.Errorf("failed to create borrow history: %w", err)
	}
	log.Println("✓ borrow history created")

	if err := createCollections(factory, users, items); err != nil {
		return fmt.Errorf("failed to create collections: %w", err)
	}
	log.Println("✓ collections created")

	log.Println("🎉 Database seeding completed successfully!")
	log.Println("📧 All test users have the password: password123")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	sql := `TRUNCATE TABLE item_reviews, borrow_requests, collection_items, collection_allowed_users, collections, items, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createBaseUsers(db *gorm.DB, factory *Factory, opts Options) ([]models.User, error) {
	users := make([]models.User, 0, opts.NumUsers)
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)

	// Always include a librarian and a known patron for manual testing.
	base := []models.User{
		{Username: "head-librarian", Email: "librarian@example.com", Password: string(hashedPassword), Role: models.RoleLibrarian},
		{Username: "test", Email: "test@example.com", Password: string(hashedPassword), Role: models.RolePatron},
	}
	for i := range base {
		if err := db.Create(&base[i]).Error; err == nil {
			users = append(users, base[i])
		}
	}

	for i := len(users); i < opts.NumUsers; i++ {
		user, err := factory.CreateUser()
		if err != nil {
			log.Printf("Failed to create user: %v", err)
			continue
		}
		users = append(users, *user)

		if i%100 == 0 && i > 0 {
			log.Printf("Created %d users...", i)
		}
	}

	return users, nil
}

func createItems(factory *Factory, count int) ([]models.Item, error) {
	items := make([]models.Item, 0, count)
	for i := 0; i < count; i++ {
		item, err := factory.CreateItem()
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// createBorrowHistory closes some borrows so the known test patron can leave
// reviews, and leaves a handful of pending requests for the review queue.
func createBorrowHistory(factory *Factory, users []models.User, items []models.Item) error {
	if len(users) < 2 || len(items) < 4 {
		return nil
	}

	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	patrons := users[1:]
	for i, item := range items {
		if i%3 != 0 {
			continue
		}
		patron := patrons[r.Intn(len(patrons))]

		status := models.BorrowStatusReturnedOnTime
		if r.Float32() < 0.25 {
			status = models.BorrowStatusReturnedOverdue
		}
		if _, err := factory.CreateBorrowRequest(&patron, &items[i], status); err != nil {
			return err
		}

		if r.Float32() < 0.6 {
			if _, err := factory.CreateReview(&patron, &items[i], func(review *models.ItemReview) {
				review.Rating = r.Intn(3) + 3
			}); err != nil {
				return err
			}
		}
		_ = item
	}

	// A few fresh pending requests for the librarian queue.
	for i := 0; i < 5 && i < len(items); i++ {
		patron := patrons[r.Intn(len(patrons))]
		if _, err := factory.CreateBorrowRequest(&patron, &items[len(items)-1-i],
			models.BorrowStatusPending, func(request *models.BorrowRequest) {
				request.RequestedAt = time.Now().Add(-time.Duration(i) * time.Hour)
			}); err != nil {
			return err
		}
	}

	return nil
}

func createCollections(factory *Factory, users []models.User, items []models.Item) error {
	if len(users) == 0 || len(items) < 6 {
		return nil
	}

	librarian := users[0]

	// One public collection curated by the librarian.
	if _, err := factory.CreateCollection(&librarian, items[:3], func(c *models.Collection) {
		c.Title = "Staff Picks"
		c.Slug = "staff-picks"
	}); err != nil {
		return err
	}

	// One private collection with the known test patron on the allow list.
	// Items 3-5 stay out of every public collection so the exclusivity rule
	// holds.
	if _, err := factory.CreateCollection(&librarian, items[3:6], func(c *models.Collection) {
		c.Title = "Restoration Queue"
		c.Slug = "restoration-queue"
		c.Visibility = models.VisibilityPrivate
		if len(users) > 1 {
			c.AllowedUsers = []models.User{users[1]}
		}
	}); err != nil {
		return err
	}

	// Patron-made public collections from the remaining pool.
	if len(items) > 8 && len(users) > 2 {
		if _, err := factory.CreateCollection(&users[2], items[6:9]); err != nil {
			return err
		}
	}

	return nil
}
