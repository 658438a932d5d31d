package service

import (
	"context"
	"testing"

	"toolhub/internal/models"
	"toolhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Item{}, &models.BorrowRequest{}))
	return db
}

func newTestCatalogService(db *gorm.DB) *CatalogService {
	return NewCatalogService(repository.NewItemRepository(db), repository.NewBorrowRequestRepository(db))
}

func TestCatalogService_CreateItem(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)

	item, err := svc.CreateItem(context.Background(), ItemInput{
		Name:        "  Impact Driver  ",
		Identifier:  "impact-driver-0001",
		Description: "18V brushless",
	})
	require.NoError(t, err)
	assert.Equal(t, "Impact Driver", item.Name)
	assert.Equal(t, models.ItemStatusAvailable, item.Status)
	assert.Equal(t, models.LocationMainWarehouse, item.Location)
	assert.NotEmpty(t, item.UUID)
}

func TestCatalogService_CreateItem_Validation(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, ItemInput{Identifier: "no-name"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.CreateItem(ctx, ItemInput{Name: "No Identifier"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.CreateItem(ctx, ItemInput{Name: "Bad Location", Identifier: "bad-loc", Location: "garage"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestCatalogService_UpdateItem(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Jigsaw", Identifier: "jigsaw-0001"})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, item.ID, ItemInput{
		Name:       "Jigsaw Pro",
		Identifier: "jigsaw-0001",
		Location:   models.LocationAuxWarehouse,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jigsaw Pro", updated.Name)
	assert.Equal(t, models.LocationAuxWarehouse, updated.Location)
	// Status untouched by descriptive edits.
	assert.Equal(t, models.ItemStatusAvailable, updated.Status)
}

func TestCatalogService_SetItemStatus(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Router", Identifier: "router-0001"})
	require.NoError(t, err)

	updated, err := svc.SetItemStatus(ctx, item.ID, models.ItemStatusRepairing)
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusRepairing, updated.Status)

	// Borrow-driven statuses cannot be set by hand.
	_, err = svc.SetItemStatus(ctx, item.ID, models.ItemStatusBorrowed)
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
	_, err = svc.SetItemStatus(ctx, item.ID, models.ItemStatusRequested)
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.SetItemStatus(ctx, item.ID, "misplaced")
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestCatalogService_SetItemStatus_BorrowedItem(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Nail Gun", Identifier: "nailgun-0001"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Item{}).Where("id = ?", item.ID).
		Update("status", models.ItemStatusBorrowed).Error)

	// An item that is out with a borrower must come back first.
	_, err = svc.SetItemStatus(ctx, item.ID, models.ItemStatusLost)
	assertAppErrorCode(t, err, "STATE_CONFLICT")
}

func TestCatalogService_DeleteItem(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Tile Cutter", Identifier: "tile-0001"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, item.ID))

	_, err = svc.GetItem(ctx, nil, item.ID)
	assertAppErrorCode(t, err, "NOT_FOUND")

	// Soft delete: the row survives for request history.
	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Item{}).Where("id = ?", item.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCatalogService_DeleteItem_Borrowed(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Chainsaw", Identifier: "chainsaw-0001"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Item{}).Where("id = ?", item.ID).
		Update("status", models.ItemStatusBorrowed).Error)

	err = svc.DeleteItem(ctx, item.ID)
	assertAppErrorCode(t, err, "STATE_CONFLICT")
}

func TestCatalogService_ListItems_PatronsSeeOnlyAvailable(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	patron := createBorrowTestUser(t, db, "patron1", models.RolePatron)
	librarian := createBorrowTestUser(t, db, "lib1", models.RoleLibrarian)

	available, err := svc.CreateItem(ctx, ItemInput{Name: "Orbital Sander", Identifier: "sander-0001"})
	require.NoError(t, err)
	repairing, err := svc.CreateItem(ctx, ItemInput{Name: "Bench Grinder", Identifier: "grinder-0001"})
	require.NoError(t, err)
	_, err = svc.SetItemStatus(ctx, repairing.ID, models.ItemStatusRepairing)
	require.NoError(t, err)

	views, err := svc.ListItems(ctx, patron, repository.ItemFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, available.ID, views[0].ID)
	assert.True(t, views[0].CanRequest)

	// Anonymous viewers get the same restriction.
	views, err = svc.ListItems(ctx, nil, repository.ItemFilter{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, views, 1)

	// Librarians see everything, and may filter explicitly.
	views, err = svc.ListItems(ctx, librarian, repository.ItemFilter{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, views, 2)

	views, err = svc.ListItems(ctx, librarian, repository.ItemFilter{
		Statuses: []models.ItemStatus{models.ItemStatusRepairing},
		Limit:    50,
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, repairing.ID, views[0].ID)
	assert.False(t, views[0].CanRequest)
}

func TestCatalogService_Projection(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	borrowSvc := newTestBorrowService(db)
	ctx := context.Background()

	patron := createBorrowTestUser(t, db, "patron1", models.RolePatron)
	other := createBorrowTestUser(t, db, "patron2", models.RolePatron)
	librarian := createBorrowTestUser(t, db, "lib1", models.RoleLibrarian)

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Pressure Washer", Identifier: "washer-0001"})
	require.NoError(t, err)

	request, err := borrowSvc.RequestItem(ctx, patron.ID, item.ID, "")
	require.NoError(t, err)

	// Pending request: requester sees the projection, others see the stored label.
	view, err := svc.GetItem(ctx, patron, item.ID)
	require.NoError(t, err)
	assert.Equal(t, DisplayAlreadyRequested, view.DisplayStatus)
	assert.False(t, view.CanRequest)

	view, err = svc.GetItem(ctx, other, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Available", view.DisplayStatus)
	assert.True(t, view.CanRequest)

	_, err = borrowSvc.ApproveRequest(ctx, librarian.ID, request.ID, nil)
	require.NoError(t, err)

	// The approved request keeps showing as the viewer's own outstanding one.
	view, err = svc.GetItem(ctx, patron, item.ID)
	require.NoError(t, err)
	assert.Equal(t, DisplayAlreadyRequested, view.DisplayStatus)
	assert.False(t, view.CanRequest)

	view, err = svc.GetItem(ctx, other, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Borrowed", view.DisplayStatus)
	assert.False(t, view.CanRequest)

	view, err = svc.GetItem(ctx, nil, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Borrowed", view.DisplayStatus)
}

func TestCatalogService_Projection_LegacyRequestedStatus(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	borrowSvc := newTestBorrowService(db)
	ctx := context.Background()

	patron := createBorrowTestUser(t, db, "patron1", models.RolePatron)
	other := createBorrowTestUser(t, db, "patron2", models.RolePatron)

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Pressure Washer", Identifier: "washer-0001"})
	require.NoError(t, err)

	_, err = borrowSvc.RequestItem(ctx, patron.ID, item.ID, "")
	require.NoError(t, err)

	// Old rows may still carry the speculative hold status.
	require.NoError(t, db.Model(&models.Item{}).Where("id = ?", item.ID).
		Update("status", models.ItemStatusRequested).Error)

	// The hold reads as available to everyone but its holder.
	view, err := svc.GetItem(ctx, other, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Available", view.DisplayStatus)
	assert.True(t, view.CanRequest)

	view, err = svc.GetItem(ctx, nil, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Available", view.DisplayStatus)
	assert.True(t, view.CanRequest)

	view, err = svc.GetItem(ctx, patron, item.ID)
	require.NoError(t, err)
	assert.Equal(t, DisplayAlreadyRequested, view.DisplayStatus)
	assert.False(t, view.CanRequest)

	// And it does not block another patron's request.
	_, err = borrowSvc.RequestItem(ctx, other.ID, item.ID, "")
	require.NoError(t, err)
}

func TestCatalogService_ListItems_Search(t *testing.T) {
	db := setupCatalogTestDB(t)
	svc := newTestCatalogService(db)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, ItemInput{Name: "Cordless Drill", Identifier: "drill-0001"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, ItemInput{Name: "Hammer Drill", Identifier: "drill-0002"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, ItemInput{Name: "Paint Sprayer", Identifier: "sprayer-0001"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, ItemInput{
		Name:        "Combi Kit",
		Identifier:  "combi-0001",
		Description: "Drill driver and impact driver set",
	})
	require.NoError(t, err)

	// Search covers names and descriptions.
	views, err := svc.ListItems(ctx, nil, repository.ItemFilter{Search: "drill", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, views, 3)
}
