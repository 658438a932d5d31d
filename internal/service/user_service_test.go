package service

import (
	"context"
	"strings"
	"testing"

	"toolhub/internal/models"
	"toolhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupUserTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}

func TestUserService_UpdateProfile(t *testing.T) {
	db := setupUserTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	user := createBorrowTestUser(t, db, "patron1", models.RolePatron)

	updated, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		UserID:      user.ID,
		FirstName:   "  Ada  ",
		PhoneNumber: "555-0100",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "555-0100", updated.PhoneNumber)
	// Empty fields leave the stored value alone.
	assert.Equal(t, "", updated.LastName)

	updated, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, LastName: "Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.FirstName)
	assert.Equal(t, "Lovelace", updated.LastName)

	updated, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", updated.Email)
}

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	db := setupUserTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	user := createBorrowTestUser(t, db, "patron1", models.RolePatron)

	_, err := svc.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, FirstName: strings.Repeat("a", 121)})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, PhoneNumber: strings.Repeat("1", 33)})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: user.ID, Email: "not-an-email"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{UserID: 9999, FirstName: "Ghost"})
	assertAppErrorCode(t, err, "NOT_FOUND")
}

func TestUserService_UpdateProfile_EmailTaken(t *testing.T) {
	db := setupUserTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	createBorrowTestUser(t, db, "patron1", models.RolePatron)
	other := createBorrowTestUser(t, db, "patron2", models.RolePatron)

	_, err := svc.UpdateProfile(ctx, UpdateProfileInput{UserID: other.ID, Email: "patron1@example.com"})
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestUserService_SetRole(t *testing.T) {
	db := setupUserTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	createBorrowTestUser(t, db, "lib1", models.RoleLibrarian)
	patron := createBorrowTestUser(t, db, "patron1", models.RolePatron)

	promoted, err := svc.SetRole(ctx, patron.ID, models.RoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLibrarian, promoted.Role)

	// With two librarians, one may step down.
	demoted, err := svc.SetRole(ctx, patron.ID, models.RolePatron)
	require.NoError(t, err)
	assert.Equal(t, models.RolePatron, demoted.Role)

	_, err = svc.SetRole(ctx, patron.ID, "superuser")
	assertAppErrorCode(t, err, "VALIDATION_ERROR")
}

func TestUserService_SetRole_LastLibrarian(t *testing.T) {
	db := setupUserTestDB(t)
	svc := NewUserService(repository.NewUserRepository(db))
	ctx := context.Background()

	librarian := createBorrowTestUser(t, db, "lib1", models.RoleLibrarian)

	_, err := svc.SetRole(ctx, librarian.ID, models.RolePatron)
	assertAppErrorCode(t, err, "STATE_CONFLICT")

	// Setting the same role is a no-op, not an error.
	same, err := svc.SetRole(ctx, librarian.ID, models.RoleLibrarian)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLibrarian, same.Role)
}
