package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/CodeXGautam/mail-tracker/internal/api/middleware"
	"github.com/CodeXGautam/mail-tracker/internal/database"
	"github.com/CodeXGautam/mail-tracker/internal/database/models"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/gin-gonic/gin"
)

type authFixture struct {
	router *gin.Engine
	users  *services.UserService
}

func setupAuth(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tempDir := t.TempDir()
	db, err := database.Initialize(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to initialize database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	logs := logstore.New(tempDir, testLogger())
	users := services.NewUserService(db, logs, testLogger())
	jwtManager := middleware.NewJWTManager("test-secret", 0)

	h := NewAuthHandler(users, jwtManager, testLogger())
	router := gin.New()
	auth := router.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/auto-create", h.AutoCreate)
	protected := auth.Group("", middleware.JWTAuth(jwtManager, users))
	protected.GET("/profile", h.GetProfile)
	protected.PUT("/profile", h.UpdateProfile)
	protected.POST("/api-key", h.NewAPIKey)

	return &authFixture{router: router, users: users}
}

func (f *authFixture) post(t *testing.T, url, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return f.request(t, "POST", url, token, body)
}

func (f *authFixture) request(t *testing.T, method, url, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthorizationHeader, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestRegisterLoginFlow(t *testing.T) {
	f := setupAuth(t)

	w := f.post(t, "/auth/register", "", map[string]any{
		"email": "a@example.com", "name": "A", "password": "hunter22",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["token"] == "" || resp["token"] == nil {
		t.Fatal("register response missing token")
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["apiKey"] == "" {
		t.Fatalf("register response missing user payload: %v", resp)
	}

	// Duplicate registration is rejected
	w = f.post(t, "/auth/register", "", map[string]any{
		"email": "a@example.com", "name": "A", "password": "hunter22",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register: expected 400, got %d", w.Code)
	}

	w = f.post(t, "/auth/login", "", map[string]any{
		"email": "a@example.com", "password": "hunter22",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %s", w.Code, w.Body.String())
	}

	w = f.post(t, "/auth/login", "", map[string]any{
		"email": "a@example.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := setupAuth(t)
	w := f.post(t, "/auth/register", "", map[string]any{
		"email": "a@example.com", "name": "A", "password": "12345",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// Auto-create is idempotent per address: the second call returns the
// same account and key instead of a conflict.
func TestAutoCreateIdempotentOverHTTP(t *testing.T) {
	f := setupAuth(t)

	first := f.post(t, "/auth/auto-create", "", map[string]any{
		"email": "sender@example.com", "name": "Sender",
	})
	if first.Code != http.StatusOK {
		t.Fatalf("auto-create: expected 200, got %d %s", first.Code, first.Body.String())
	}
	second := f.post(t, "/auth/auto-create", "", map[string]any{
		"email": "Sender@Example.com",
	})
	if second.Code != http.StatusOK {
		t.Fatalf("repeat auto-create: expected 200, got %d", second.Code)
	}

	key1 := decodeBody(t, first)["user"].(map[string]any)["apiKey"]
	key2 := decodeBody(t, second)["user"].(map[string]any)["apiKey"]
	if key1 != key2 {
		t.Fatalf("auto-create not idempotent: %v vs %v", key1, key2)
	}
}

func TestProtectedRoutesTokenHandling(t *testing.T) {
	f := setupAuth(t)

	// Missing token is 401, garbage token is 403
	if w := f.request(t, "GET", "/auth/profile", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
	if w := f.request(t, "GET", "/auth/profile", "not-a-jwt", nil); w.Code != http.StatusForbidden {
		t.Fatalf("garbage token: expected 403, got %d", w.Code)
	}

	w := f.post(t, "/auth/register", "", map[string]any{
		"email": "a@example.com", "name": "A", "password": "hunter22",
	})
	token := decodeBody(t, w)["token"].(string)

	if w := f.request(t, "GET", "/auth/profile", token, nil); w.Code != http.StatusOK {
		t.Fatalf("profile: expected 200, got %d %s", w.Code, w.Body.String())
	}

	// A token signed with a different secret is invalid, not missing
	other := middleware.NewJWTManager("other-secret", 0)
	forged, _, err := other.GenerateToken(1, "a@example.com")
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	if w := f.request(t, "GET", "/auth/profile", forged, nil); w.Code != http.StatusForbidden {
		t.Fatalf("forged token: expected 403, got %d", w.Code)
	}
}

func TestUpdateProfilePartialFields(t *testing.T) {
	f := setupAuth(t)

	w := f.post(t, "/auth/register", "", map[string]any{
		"email": "a@example.com", "name": "A", "password": "hunter22",
	})
	token := decodeBody(t, w)["token"].(string)

	w = f.request(t, "PUT", "/auth/profile", token, map[string]any{
		"trackingEnabled": false,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("profile update: expected 200, got %d %s", w.Code, w.Body.String())
	}

	var updated models.User
	data, err := json.Marshal(decodeBody(t, w)["user"])
	if err != nil {
		t.Fatalf("re-marshal failed: %v", err)
	}
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("bad user payload: %v", err)
	}
	if updated.TrackingEnabled {
		t.Fatal("trackingEnabled should be off")
	}
	if updated.Name != "A" {
		t.Fatalf("untouched field changed: %q", updated.Name)
	}
}

func TestNewAPIKeyRotatesCredential(t *testing.T) {
	f := setupAuth(t)

	w := f.post(t, "/auth/register", "", map[string]any{
		"email": "a@example.com", "name": "A", "password": "hunter22",
	})
	resp := decodeBody(t, w)
	token := resp["token"].(string)
	oldKey := resp["user"].(map[string]any)["apiKey"].(string)

	w = f.post(t, "/auth/api-key", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("api-key: expected 200, got %d %s", w.Code, w.Body.String())
	}
	newKey := decodeBody(t, w)["apiKey"].(string)
	if newKey == "" || newKey == oldKey {
		t.Fatalf("key not rotated: old=%q new=%q", oldKey, newKey)
	}

	if _, err := f.users.GetByAPIKey(oldKey); err == nil {
		t.Fatal("old key still resolves")
	}
	if _, err := f.users.GetByAPIKey(newKey); err != nil {
		t.Fatalf("new key does not resolve: %v", err)
	}
}
