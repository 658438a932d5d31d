// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"toolhub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	NumUsers    int
	NumItems    int
	ShouldClean bool
	// SkipBcrypt stores plain passwords. Dev fast mode only.
	SkipBcrypt bool
	// DryRun logs what would be created without writing to the database.
	DryRun bool
}

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	// synthetic ID counter when running in DryRun mode
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	// seed gofakeit for richer content
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{db: db, opts: opts, nextID: 1000}
}

// CreateUser constructs and persists a sample `models.User`.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := &models.User{
		Username:    fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
		Email:       gofakeit.Email(),
		Role:        models.RolePatron,
		FirstName:   gofakeit.FirstName(),
		LastName:    gofakeit.LastName(),
		PhoneNumber: gofakeit.Phone(),
	}

	// Password handling: allow skipping bcrypt in dev fast mode
	if f.opts.SkipBcrypt {
		user.Password = "password123"
	} else {
		hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		user.Password = string(hashedPassword)
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s (%s)", user.Username, user.Role)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// CreateItem constructs and persists a sample catalog item.
func (f *Factory) CreateItem(overrides ...func(*models.Item)) (*models.Item, error) {
	name := fmt.Sprintf("%s %s", gofakeit.AdjectiveDescriptive(), gofakeit.ProductName())
	item := &models.Item{
		UUID:        uuid.NewString(),
		Name:        name,
		Identifier:  fmt.Sprintf("%s-%d", slug.Make(name), gofakeit.Number(1000, 9999)),
		Description: gofakeit.Paragraph(1, 2, 8, "\n"),
		Status:      models.ItemStatusAvailable,
		Location:    models.LocationMainWarehouse,
	}

	for _, override := range overrides {
		override(item)
	}

	if f.opts.DryRun {
		f.nextID++
		item.ID = f.nextID
		log.Printf("[dry-run] CreateItem: %s (%s)", item.Name, item.Identifier)
		return item, nil
	}

	if err := f.db.Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// CreateCollection constructs and persists a collection with the given items.
func (f *Factory) CreateCollection(creator *models.User, items []models.Item, overrides ...func(*models.Collection)) (*models.Collection, error) {
	title := fmt.Sprintf("%s %s", gofakeit.AdjectiveDescriptive(), gofakeit.NounCollectiveThing())
	collection := &models.Collection{
		UUID:        uuid.NewString(),
		Slug:        fmt.Sprintf("%s-%d", slug.Make(title), gofakeit.Number(100, 999)),
		Title:       title,
		Description: gofakeit.Sentence(12),
		Visibility:  models.VisibilityPublic,
		Items:       items,
	}
	if creator != nil {
		collection.CreatorID = &creator.ID
	}

	for _, override := range overrides {
		override(collection)
	}

	if f.opts.DryRun {
		f.nextID++
		collection.ID = f.nextID
		log.Printf("[dry-run] CreateCollection: %s (%s, %d items)",
			collection.Title, collection.Visibility, len(collection.Items))
		return collection, nil
	}

	if err := f.db.Create(collection).Error; err != nil {
		return nil, err
	}
	return collection, nil
}

// CreateBorrowRequest constructs and persists a borrow request in the given
// status, stamping dates consistent with that status.
func (f *Factory) CreateBorrowRequest(user *models.User, item *models.Item, status models.BorrowRequestStatus, overrides ...func(*models.BorrowRequest)) (*models.BorrowRequest, error) {
	//nolint:gosec // Weak random number generator is fine for seeding
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	requestedAt := time.Now().Add(-time.Duration(r.Intn(60)+1) * 24 * time.Hour)
	request := &models.BorrowRequest{
		ItemID:      item.ID,
		UserID:      user.ID,
		Status:      status,
		RequestedAt: requestedAt,
		Note:        gofakeit.Sentence(6),
	}

	switch status {
	case models.BorrowStatusApproved:
		start := requestedAt.Add(24 * time.Hour)
		due := start.Add(14 * 24 * time.Hour)
		request.BorrowStartDate = &start
		request.ReturnDueDate = &due
	case models.BorrowStatusReturnedOnTime, models.BorrowStatusReturnedOverdue:
		start := requestedAt.Add(24 * time.Hour)
		due := start.Add(14 * 24 * time.Hour)
		request.BorrowStartDate = &start
		request.ReturnDueDate = &due
	}

	for _, override := range overrides {
		override(request)
	}

	if f.opts.DryRun {
		f.nextID++
		request.ID = f.nextID
		log.Printf("[dry-run] CreateBorrowRequest: item=%d user=%d status=%s",
			request.ItemID, request.UserID, request.Status)
		return request, nil
	}

	if err := f.db.Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// CreateReview persists a review by `user` on `item`.
func (f *Factory) CreateReview(user *models.User, item *models.Item, overrides ...func(*models.ItemReview)) (*models.ItemReview, error) {
	review := &models.ItemReview{
		ItemID:  item.ID,
		UserID:  user.ID,
		Rating:  gofakeit.Number(1, 5),
		Comment: gofakeit.Sentence(14),
	}

	for _, override := range overrides {
		override(review)
	}

	if f.opts.DryRun {
		f.nextID++
		review.ID = f.nextID
		log.Printf("[dry-run] CreateReview: item=%d user=%d rating=%d",
			review.ItemID, review.UserID, review.Rating)
		return review, nil
	}

	if err := f.db.Create(review).Error; err != nil {
		return nil, err
	}
	return review, nil
}
