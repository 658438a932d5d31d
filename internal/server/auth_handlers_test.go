package server

import (
	"net/http"
	"testing"

	"toolhub/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func newAuthTestApp(s *Server) *fiber.App {
	app := fiber.New()
	app.Post("/auth/signup", s.Signup)
	app.Post("/auth/login", s.Login)
	return app
}

func TestSignup(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")
	app := newAuthTestApp(s)

	resp := doJSON(t, app, http.MethodPost, "/auth/signup", fiber.Map{
		"username": "newpatron",
		"email":    "newpatron@example.com",
		"password": "Str0ng!Passw0rd",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("signup status = %d, want 201", resp.StatusCode)
	}

	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, resp, &body)
	if body.Token == "" {
		t.Error("expected a token in the signup response")
	}
	if body.User.Role != models.RolePatron {
		t.Errorf("signup role = %s, want patron", body.User.Role)
	}

	// The password never leaves the server, hashed or not.
	var stored models.User
	if err := db.Where("email = ?", "newpatron@example.com").First(&stored).Error; err != nil {
		t.Fatalf("failed to load created user: %v", err)
	}
	if stored.Password == "Str0ng!Passw0rd" {
		t.Error("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("Str0ng!Passw0rd")); err != nil {
		t.Errorf("stored password is not a bcrypt hash of the input: %v", err)
	}
}

func TestSignup_Validation(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")
	app := newAuthTestApp(s)

	cases := []struct {
		name string
		body fiber.Map
	}{
		{"missing fields", fiber.Map{"username": "x"}},
		{"weak password", fiber.Map{"username": "patron2", "email": "p2@example.com", "password": "short"}},
		{"no special char", fiber.Map{"username": "patron2", "email": "p2@example.com", "password": "LongEnough123456"}},
		{"bad email", fiber.Map{"username": "patron2", "email": "not-an-email", "password": "Str0ng!Passw0rd"}},
		{"bad username", fiber.Map{"username": "-leading", "email": "p2@example.com", "password": "Str0ng!Passw0rd"}},
	}
	for _, tc := range cases {
		resp := doJSON(t, app, http.MethodPost, "/auth/signup", tc.body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

func TestSignup_DuplicateEmail(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")
	app := newAuthTestApp(s)

	body := fiber.Map{
		"username": "original",
		"email":    "dup@example.com",
		"password": "Str0ng!Passw0rd",
	}
	resp := doJSON(t, app, http.MethodPost, "/auth/signup", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("first signup status = %d, want 201", resp.StatusCode)
	}
	_ = resp.Body.Close()

	body["username"] = "impostor"
	resp = doJSON(t, app, http.MethodPost, "/auth/signup", body)
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("duplicate signup status = %d, want 409", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestLogin(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")
	app := newAuthTestApp(s)

	hashed, err := bcrypt.GenerateFromPassword([]byte("Str0ng!Passw0rd"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &models.User{
		Username: "patron1",
		Email:    "patron1@example.com",
		Password: string(hashed),
		Role:     models.RolePatron,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	resp := doJSON(t, app, http.MethodPost, "/auth/login", fiber.Map{
		"email":    "patron1@example.com",
		"password": "Str0ng!Passw0rd",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decodeBody(t, resp, &body)
	if body.Token == "" {
		t.Error("expected a token in the login response")
	}
	if body.User.ID != user.ID {
		t.Errorf("login user ID = %d, want %d", body.User.ID, user.ID)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	db := setupHandlerTestDB(t)
	s := newHandlerTestServer(t, db, "")
	app := newAuthTestApp(s)

	hashed, _ := bcrypt.GenerateFromPassword([]byte("Str0ng!Passw0rd"), bcrypt.DefaultCost)
	if err := db.Create(&models.User{
		Username: "patron1",
		Email:    "patron1@example.com",
		Password: string(hashed),
		Role:     models.RolePatron,
	}).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	// Wrong password and unknown email both return the same 401.
	resp := doJSON(t, app, http.MethodPost, "/auth/login", fiber.Map{
		"email": "patron1@example.com", "password": "WrongPassword!1",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, app, http.MethodPost, "/auth/login", fiber.Map{
		"email": "ghost@example.com", "password": "Str0ng!Passw0rd",
	})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", resp.StatusCode)
	}
	_ = resp.Body.Close()
}
