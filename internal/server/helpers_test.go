package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"toolhub/internal/config"
	"toolhub/internal/database"
	"toolhub/internal/featureflags"
	"toolhub/internal/models"
	"toolhub/internal/repository"
	"toolhub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Collection{},
		&models.BorrowRequest{},
		&models.ItemReview{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := database.EnsureBorrowRequestGuards(db); err != nil {
		t.Fatalf("failed to create borrow request guards: %v", err)
	}
	return db
}

// newHandlerTestServer wires a Server against a test database without the
// metrics and notification plumbing.
func newHandlerTestServer(t *testing.T, db *gorm.DB, flags string) *Server {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:            "handler-test-secret",
		Port:                 "0",
		DefaultLoanDays:      14,
		FeatureFlags:         flags,
		Env:                  "test",
		ImageUploadDir:       t.TempDir(),
		ImageMaxUploadSizeMB: 5,
	}

	userRepo := repository.NewUserRepository(db)
	itemRepo := repository.NewItemRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	requestRepo := repository.NewBorrowRequestRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		userRepo:       userRepo,
		itemRepo:       itemRepo,
		collectionRepo: collectionRepo,
		requestRepo:    requestRepo,
		reviewRepo:     reviewRepo,
		featureFlags:   featureflags.NewManager(flags),
	}
	s.catalogService = service.NewCatalogService(itemRepo, requestRepo)
	s.collectionService = service.NewCollectionService(collectionRepo, itemRepo, userRepo)
	s.borrowService = service.NewBorrowService(db, itemRepo, requestRepo, cfg.DefaultLoanDays)
	s.reviewService = service.NewReviewService(reviewRepo, itemRepo, requestRepo)
	s.userService = service.NewUserService(userRepo)
	s.imageService = service.NewImageService(cfg)
	return s
}

// withUser injects the authenticated user ID the way AuthRequired does.
func withUser(userID uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	}
}

func createHandlerUser(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

func createHandlerItem(t *testing.T, db *gorm.DB, name string, status models.ItemStatus) *models.Item {
	t.Helper()
	item := &models.Item{
		UUID:       uuid.NewString(),
		Name:       name,
		Identifier: "item-" + uuid.NewString()[:8],
		Status:     status,
		Location:   models.LocationMainWarehouse,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create item %s: %v", name, err)
	}
	return item
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, target, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestHumanizeParam(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"id":        "ID",
		"userId":    "user ID",
		"requestId": "request ID",
		"slug":      "slug",
	}
	for in, want := range cases {
		if got := humanizeParam(in); got != want {
			t.Errorf("humanizeParam(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitCamel(t *testing.T) {
	t.Parallel()

	got := splitCamel("borrowRequest")
	want := []string{"borrow", "Request"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitCamel(borrowRequest) = %v, want %v", got, want)
	}

	got = splitCamel("item")
	want = []string{"item"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitCamel(item) = %v, want %v", got, want)
	}
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	var got Pagination
	app.Get("/", func(c *fiber.Ctx) error {
		got = parsePagination(c, 20)
		return c.SendStatus(fiber.StatusOK)
	})

	cases := []struct {
		query string
		want  Pagination
	}{
		{"", Pagination{Limit: 20, Offset: 0}},
		{"?limit=5&offset=10", Pagination{Limit: 5, Offset: 10}},
		{"?limit=500", Pagination{Limit: 100, Offset: 0}},
		{"?limit=-1&offset=-3", Pagination{Limit: 20, Offset: 0}},
		{"?limit=abc", Pagination{Limit: 20, Offset: 0}},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+tc.query, nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		_ = resp.Body.Close()
		if got != tc.want {
			t.Errorf("parsePagination(%q) = %+v, want %+v", tc.query, got, tc.want)
		}
	}
}

func TestParseID_InvalidValues(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	app := fiber.New()
	app.Get("/things/:id", func(c *fiber.Ctx) error {
		if _, err := s.parseID(c, "id"); err != nil {
			return nil
		}
		return c.SendStatus(fiber.StatusOK)
	})

	for _, raw := range []string{"abc", "0", "-4"} {
		resp := doJSON(t, app, http.MethodGet, "/things/"+raw, nil)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("parseID(%q): status = %d, want 400", raw, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}
