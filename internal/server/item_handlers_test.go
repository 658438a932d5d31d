package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"toolhub/internal/models"
	"toolhub/internal/service"

	"github.com/gofiber/fiber/v2"
)

func newItemTestApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	if userID != 0 {
		app.Use(withUser(userID))
	}
	app.Get("/items", s.GetItems)
	app.Get("/items/:id", s.GetItem)
	app.Post("/items", s.CreateItem)
	app.Put("/items/:id", s.UpdateItem)
	app.Put("/items/:id/status", s.SetItemStatus)
	app.Delete("/items/:id", s.DeleteItem)
	return app
}

func testPNGBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test png: %v", err)
	}
	return buf.Bytes()
}

func doImageUpload(t *testing.T, app *fiber.App, target string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload %s failed: %v", target, err)
	}
	return resp
}

func TestUploadItemImage_KeepsOldFilesUntilRecorded(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	item := createHandlerItem(t, db, "Cordless Drill", models.ItemStatusAvailable)

	app := fiber.New()
	app.Use(withUser(librarian.ID))
	app.Post("/items/:id/image", s.UploadItemImage)

	resp := doImageUpload(t, app, "/items/1/image", testPNGBytes(t))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("first upload status = %d, want 200", resp.StatusCode)
	}
	var updated models.Item
	decodeBody(t, resp, &updated)
	firstPath := updated.ImagePath
	if firstPath == "" {
		t.Fatal("expected an image path after upload")
	}
	if _, err := s.imageService.ResolveForServing(firstPath); err != nil {
		t.Fatalf("first image not on disk: %v", err)
	}

	resp = doImageUpload(t, app, "/items/1/image", testPNGBytes(t))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("second upload status = %d, want 200", resp.StatusCode)
	}
	decodeBody(t, resp, &updated)
	secondPath := updated.ImagePath
	if secondPath == "" || secondPath == firstPath {
		t.Fatalf("second image path = %q, want a fresh path", secondPath)
	}

	// The row points at the new image before the old files disappear.
	var stored models.Item
	if err := db.First(&stored, item.ID).Error; err != nil {
		t.Fatalf("failed to reload item: %v", err)
	}
	if stored.ImagePath != secondPath {
		t.Errorf("stored image path = %q, want %q", stored.ImagePath, secondPath)
	}
	if _, err := s.imageService.ResolveForServing(secondPath); err != nil {
		t.Errorf("second image not on disk: %v", err)
	}
	if _, err := s.imageService.ResolveForServing(firstPath); err == nil {
		t.Error("old image files still on disk after the replacement was recorded")
	}
}

func TestGetItems_ViewerScoping(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	patron := createHandlerUser(t, db, "patron1", models.RolePatron)
	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	createHandlerItem(t, db, "Cordless Drill", models.ItemStatusAvailable)
	createHandlerItem(t, db, "Bench Grinder", models.ItemStatusRepairing)

	// Anonymous and patron viewers get available items only.
	for _, userID := range []uint{0, patron.ID} {
		app := newItemTestApp(s, userID)
		resp := doJSON(t, app, http.MethodGet, "/items", nil)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("list status = %d, want 200", resp.StatusCode)
		}
		var views []service.ItemView
		decodeBody(t, resp, &views)
		if len(views) != 1 || views[0].Name != "Cordless Drill" {
			t.Errorf("viewer %d items = %+v, want only the available item", userID, views)
		}
	}

	// Librarians see the full catalog.
	libApp := newItemTestApp(s, librarian.ID)
	resp := doJSON(t, libApp, http.MethodGet, "/items", nil)
	var views []service.ItemView
	decodeBody(t, resp, &views)
	if len(views) != 2 {
		t.Errorf("librarian items = %d, want 2", len(views))
	}

	// And can filter by status.
	resp = doJSON(t, libApp, http.MethodGet, "/items?status=being_repaired", nil)
	decodeBody(t, resp, &views)
	if len(views) != 1 || views[0].Name != "Bench Grinder" {
		t.Errorf("filtered items = %+v, want the repairing item", views)
	}

	// An unknown status in the filter is rejected.
	resp = doJSON(t, libApp, http.MethodGet, "/items?status=misplaced", nil)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad filter status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestCreateItem(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	app := newItemTestApp(s, librarian.ID)

	resp := doJSON(t, app, http.MethodPost, "/items", fiber.Map{
		"name":        "Tile Cutter",
		"identifier":  "tile-0001",
		"description": "Manual, 600mm",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var item models.Item
	decodeBody(t, resp, &item)
	if item.Status != models.ItemStatusAvailable {
		t.Errorf("new item status = %s, want available", item.Status)
	}
	if item.Location != models.LocationMainWarehouse {
		t.Errorf("new item location = %s, want main_warehouse", item.Location)
	}

	resp = doJSON(t, app, http.MethodPost, "/items", fiber.Map{"name": "No Identifier"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("invalid create status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSetItemStatus(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	createHandlerItem(t, db, "Cordless Drill", models.ItemStatusAvailable)
	app := newItemTestApp(s, librarian.ID)

	resp := doJSON(t, app, http.MethodPut, "/items/1/status", fiber.Map{"status": "being_repaired"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("set status = %d, want 200", resp.StatusCode)
	}
	var item models.Item
	decodeBody(t, resp, &item)
	if item.Status != models.ItemStatusRepairing {
		t.Errorf("item status = %s, want being_repaired", item.Status)
	}

	// Borrow-driven statuses are managed by the borrow lifecycle.
	resp = doJSON(t, app, http.MethodPut, "/items/1/status", fiber.Map{"status": "currently_borrowed"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("borrowed override status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestDeleteItem_BorrowedConflict(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	createHandlerItem(t, db, "Cordless Drill", models.ItemStatusBorrowed)
	createHandlerItem(t, db, "Heat Gun", models.ItemStatusAvailable)
	app := newItemTestApp(s, librarian.ID)

	resp := doJSON(t, app, http.MethodDelete, "/items/1", nil)
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("delete borrowed status = %d, want 409", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodDelete, "/items/2", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("delete available status = %d, want 200", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodGet, "/items/2", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("deleted item status = %d, want 404", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
