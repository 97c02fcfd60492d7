package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sabordecasa/api/internal/auth"
	"github.com/sabordecasa/api/internal/database"
	"github.com/sabordecasa/api/internal/enum"
	"github.com/sabordecasa/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail map[string]database.User
	userByID    map[uuid.UUID]database.User
	createErr   error
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail: make(map[string]database.User),
		userByID:    make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	if m.createErr != nil {
		return database.User{}, m.createErr
	}
	u := database.User{
		ID:             uuid.New(),
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Role:           arg.Role,
	}
	m.addUser(u)
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		Email:          "cliente@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Customer",
		Role:           enum.UserRoleCustomer,
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func newAuthRouter(store handler.AuthStore) http.Handler {
	h := handler.NewAuthHandler(store, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "cliente@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	claims, err := auth.ValidateToken(testSecret, resp["access_token"].(string))
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Errorf("token user: got %s, want %s", claims.UserID, user.ID)
	}
	if claims.Role != enum.UserRoleCustomer {
		t.Errorf("token role: got %s, want customer", claims.Role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "cliente@test.com",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "whatever",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_EmailIsNormalized(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))

	rr := postJSON(t, newAuthRouter(store), "/auth/login", map[string]string{
		"email":    "  Cliente@Test.com ",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

// --- Register tests ---

func TestRegister_CreatesCustomer(t *testing.T) {
	store := newMockAuthStore()

	rr := postJSON(t, newAuthRouter(store), "/auth/register", map[string]string{
		"email":     "Novo@Test.com",
		"password":  "long-enough",
		"full_name": "Novo Cliente",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	u, ok := store.userByEmail["novo@test.com"]
	if !ok {
		t.Fatal("expected user stored under normalized email")
	}
	if u.Role != enum.UserRoleCustomer {
		t.Errorf("role: got %s, want customer", u.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("long-enough")); err != nil {
		t.Errorf("stored password is not the bcrypt hash: %v", err)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/register", map[string]string{
		"email":     "novo@test.com",
		"password":  "short",
		"full_name": "Novo Cliente",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRegister_MissingFields(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/register", map[string]string{
		"email": "novo@test.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)

	refresh, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := postJSON(t, newAuthRouter(store), "/auth/refresh", map[string]string{
		"refresh_token": refresh,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
}

func TestRefresh_GarbageToken(t *testing.T) {
	rr := postJSON(t, newAuthRouter(newMockAuthStore()), "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
