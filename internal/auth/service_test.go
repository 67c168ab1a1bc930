package auth

import (
	"errors"
	"testing"
	"time"

	"kidshop/pkg/models"

	"github.com/google/uuid"
)

var errNotFound = errors.New("record not found")

type memUsers struct {
	byID map[uuid.UUID]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[uuid.UUID]*models.User{}}
}

func (m *memUsers) GetByEmail(email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errNotFound
}

func (m *memUsers) GetByID(id uuid.UUID) (*models.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, errNotFound
}

func (m *memUsers) Create(user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func (m *memUsers) Update(user *models.User) error {
	cp := *user
	m.byID[user.ID] = &cp
	return nil
}

func newTestService(t *testing.T) (*Service, *memUsers, *models.User) {
	t.Helper()
	users := newMemUsers()
	s := NewService(users, "test-secret", 15*time.Minute, time.Hour)
	user, err := s.CreateUser("Admin@KidShop.ge", "correct horse", "Admin", models.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return s, users, user
}

func TestLogin(t *testing.T) {
	s, users, user := newTestService(t)

	tests := []struct {
		name     string
		email    string
		password string
		disable  bool
		wantErr  error
	}{
		{"valid", "admin@kidshop.ge", "correct horse", false, nil},
		{"wrong password", "admin@kidshop.ge", "battery staple", false, ErrInvalidCredentials},
		{"unknown email", "nobody@kidshop.ge", "correct horse", false, ErrInvalidCredentials},
		{"disabled", "admin@kidshop.ge", "correct horse", true, ErrUserDisabled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored := users.byID[user.ID]
			stored.IsActive = !tt.disable

			resp, err := s.Login(LoginRequest{Email: tt.email, Password: tt.password})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if resp.AccessToken == "" || resp.RefreshToken == "" || resp.ExpiresIn != 900 {
				t.Errorf("unexpected response %+v", resp)
			}
			if users.byID[user.ID].LastLoginAt == nil {
				t.Error("LastLoginAt not recorded")
			}
		})
	}
}

func TestTokenTypes(t *testing.T) {
	s, _, user := newTestService(t)

	resp, err := s.Login(LoginRequest{Email: user.Email, Password: "correct horse"})
	if err != nil {
		t.Fatal(err)
	}

	claims, err := s.ValidateToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Type != TokenAccess || claims.UserID != user.ID || claims.Role != models.RoleAdmin {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := s.RefreshToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh with access token: %v", err)
	}
	refreshed, err := s.RefreshToken(resp.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if refreshed.AccessToken == "" {
		t.Error("no access token after refresh")
	}
}

func TestTokenExpiry(t *testing.T) {
	s, _, user := newTestService(t)

	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }
	resp, err := s.Login(LoginRequest{Email: user.Email, Password: "correct horse"})
	if err != nil {
		t.Fatal(err)
	}

	s.now = func() time.Time { return start.Add(20 * time.Minute) }
	if _, err := s.ValidateToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired access token accepted: %v", err)
	}
	if _, err := s.RefreshToken(resp.RefreshToken); err != nil {
		t.Errorf("refresh token should still be valid: %v", err)
	}
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	s, users, user := newTestService(t)
	other := NewService(users, "other-secret", 0, 0)

	resp, err := other.Login(LoginRequest{Email: user.Email, Password: "correct horse"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ValidateToken(resp.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token signed with another secret accepted: %v", err)
	}
	if _, err := s.ValidateToken("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage accepted: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s, _, user := newTestService(t)

	if err := s.ChangePassword(user.ID, "wrong", "new password 1"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("ChangePassword with wrong current: %v", err)
	}
	if err := s.ChangePassword(user.ID, "correct horse", "new password 1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := s.Login(LoginRequest{Email: user.Email, Password: "correct horse"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("old password still works")
	}
	if _, err := s.Login(LoginRequest{Email: user.Email, Password: "new password 1"}); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestCreateUserResetsExisting(t *testing.T) {
	s, users, user := newTestService(t)

	again, err := s.CreateUser("admin@kidshop.ge", "another pass", "Admin", models.RoleEditor)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != user.ID || len(users.byID) != 1 {
		t.Fatalf("expected the existing user to be updated, have %d users", len(users.byID))
	}
	if again.Role != models.RoleEditor {
		t.Errorf("role = %s", again.Role)
	}
}
