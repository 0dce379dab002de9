package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/calejo/formgate/internal/auth"
)

func TestRequireAuth(t *testing.T) {
	manager := auth.NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)

	token, err := manager.Generate(7, `dom\alice`)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var gotUserID int64
	var gotLogin string
	handler := RequireAuth(manager, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		gotLogin = GetLogin(r.Context())
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Token " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/forms/42", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}

	if gotUserID != 7 {
		t.Errorf("user id from context: expected 7, got %d", gotUserID)
	}
	if gotLogin != `dom\alice` {
		t.Errorf("login from context: expected dom\\alice, got %q", gotLogin)
	}
}

func TestExpiredToken(t *testing.T) {
	manager := auth.NewJWTManager("test-secret-key-32-bytes-long!!!", -time.Minute)

	token, err := manager.Generate(7, `dom\alice`)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	handler := RequireAuth(manager, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/forms/42", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", rec.Code)
	}
}
