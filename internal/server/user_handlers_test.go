package server

import (
	"net/http"
	"testing"

	"toolhub/internal/models"

	"github.com/gofiber/fiber/v2"
)

func newUserTestApp(s *Server, userID uint) *fiber.App {
	app := fiber.New()
	app.Use(withUser(userID))
	app.Get("/users/me", s.GetMyProfile)
	app.Put("/users/me", s.UpdateMyProfile)
	app.Get("/users", s.GetAllUsers)
	app.Get("/users/:id", s.GetUserProfile)
	app.Post("/users/:id/role", s.SetUserRole)
	return app
}

func TestUpdateMyProfile(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	patron := createHandlerUser(t, db, "patron1", models.RolePatron)
	app := newUserTestApp(s, patron.ID)

	resp := doJSON(t, app, http.MethodPut, "/users/me", fiber.Map{
		"first_name":   "  Ada ",
		"last_name":    "Lovelace",
		"phone_number": "555-0101",
		"email":        "ada@example.com",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("update status = %d, want 200", resp.StatusCode)
	}
	var user models.User
	decodeBody(t, resp, &user)
	if user.FirstName != "Ada" || user.LastName != "Lovelace" {
		t.Errorf("name = %q %q, want Ada Lovelace", user.FirstName, user.LastName)
	}

	resp = doJSON(t, app, http.MethodGet, "/users/me", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("profile status = %d, want 200", resp.StatusCode)
	}
	decodeBody(t, resp, &user)
	if user.PhoneNumber != "555-0101" {
		t.Errorf("phone = %q, want 555-0101", user.PhoneNumber)
	}
	if user.Email != "ada@example.com" {
		t.Errorf("email = %q, want ada@example.com", user.Email)
	}

	// A malformed email is rejected.
	resp = doJSON(t, app, http.MethodPut, "/users/me", fiber.Map{"email": "nonsense"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("bad email status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSetUserRole(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	patron := createHandlerUser(t, db, "patron1", models.RolePatron)
	app := newUserTestApp(s, librarian.ID)

	resp := doJSON(t, app, http.MethodPost, "/users/2/role", fiber.Map{"role": "librarian"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("promote status = %d, want 200", resp.StatusCode)
	}
	var user models.User
	decodeBody(t, resp, &user)
	if user.ID != patron.ID || user.Role != models.RoleLibrarian {
		t.Errorf("promoted user = %+v, want librarian role", user)
	}

	resp = doJSON(t, app, http.MethodPost, "/users/2/role", fiber.Map{"role": "wizard"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("unknown role status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSetUserRole_LastLibrarian(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	app := newUserTestApp(s, librarian.ID)

	// Demoting the only librarian would lock everyone out of administration.
	resp := doJSON(t, app, http.MethodPost, "/users/1/role", fiber.Map{"role": "patron"})
	if resp.StatusCode != fiber.StatusConflict {
		t.Errorf("last librarian demotion status = %d, want 409", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestGetAllUsers_Pagination(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")

	librarian := createHandlerUser(t, db, "lib1", models.RoleLibrarian)
	for _, name := range []string{"patron1", "patron2", "patron3"} {
		createHandlerUser(t, db, name, models.RolePatron)
	}
	app := newUserTestApp(s, librarian.ID)

	resp := doJSON(t, app, http.MethodGet, "/users?limit=2&offset=1", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	var users []models.User
	decodeBody(t, resp, &users)
	if len(users) != 2 {
		t.Errorf("page size = %d, want 2", len(users))
	}

	resp = doJSON(t, app, http.MethodGet, "/users/999", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
