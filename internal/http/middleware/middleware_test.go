package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kidshop/internal/auth"
	"kidshop/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestResolveLanguage(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		accept string
		want   models.Language
	}{
		{"query wins", "en", "ru-RU,ru;q=0.9", models.LangEn},
		{"query region tag", "ru-RU", "", models.LangRu},
		{"accept header", "", "ru-RU,ru;q=0.9,en;q=0.8", models.LangRu},
		{"skips unsupported", "", "de-DE,en;q=0.5", models.LangEn},
		{"unsupported query falls to header", "fr", "en", models.LangEn},
		{"georgian tag", "", "ka-GE", models.LangKa},
		{"default", "", "", models.LangKa},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveLanguage(tt.query, tt.accept); got != tt.want {
				t.Errorf("ResolveLanguage(%q, %q) = %q, want %q", tt.query, tt.accept, got, tt.want)
			}
		})
	}
}

var errNotFound = errors.New("not found")

type memUsers struct {
	users map[uuid.UUID]*models.User
}

func (m *memUsers) GetByEmail(email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errNotFound
}

func (m *memUsers) GetByID(id uuid.UUID) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, errNotFound
}

func (m *memUsers) Create(user *models.User) error {
	user.ID = uuid.New()
	m.users[user.ID] = user
	return nil
}

func (m *memUsers) Update(user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func TestJWTAuthAndRoles(t *testing.T) {
	users := &memUsers{users: map[uuid.UUID]*models.User{}}
	svc := auth.NewService(users, "test-secret", time.Minute, time.Hour)
	if _, err := svc.CreateUser("editor@example.com", "password123", "Editor", models.RoleEditor); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	tokens, err := svc.Login(auth.LoginRequest{Email: "editor@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	e.GET("/staff", ok, JWTAuth(svc), StaffOnly())
	e.GET("/admin", ok, JWTAuth(svc), AdminOnly())

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing token", "/staff", "", http.StatusUnauthorized},
		{"garbage token", "/staff", "Bearer nope", http.StatusUnauthorized},
		{"refresh token rejected", "/staff", "Bearer " + tokens.RefreshToken, http.StatusUnauthorized},
		{"editor on staff route", "/staff", "Bearer " + tokens.AccessToken, http.StatusNoContent},
		{"editor on admin route", "/admin", "Bearer " + tokens.AccessToken, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
