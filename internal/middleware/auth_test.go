package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cappuconnect/cappuconnect/internal/auth"
)

const authTestSecret = "auth-middleware-test-secret-0123456789"

func newAuthHandler(t *testing.T) (http.Handler, *auth.JWTService, *string) {
	t.Helper()
	svc := auth.NewJWTService(authTestSecret)

	var seenUserID string
	handler := Auth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	return handler, svc, &seenUserID
}

func TestAuth_ValidToken(t *testing.T) {
	handler, svc, seenUserID := newAuthHandler(t)

	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if *seenUserID != "user-123" {
		t.Errorf("expected user ID user-123 in context, got %q", *seenUserID)
	}
}

func TestAuth_MissingHeader(t *testing.T) {
	handler, _, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Error.Code != "auth_failed" {
		t.Errorf("expected error code auth_failed, got %q", body.Error.Code)
	}
}

func TestAuth_WrongScheme(t *testing.T) {
	handler, svc, _ := newAuthHandler(t)

	token, err := svc.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
	req.Header.Set("Authorization", "Basic "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler, _, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestAuth_RefreshTokenRejected(t *testing.T) {
	handler, svc, _ := newAuthHandler(t)

	token, err := svc.GenerateRefreshToken("user-123")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for refresh token, got %d", rr.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	handler, _, _ := newAuthHandler(t)

	other := auth.NewJWTService("a-completely-different-secret")
	token, err := other.GenerateAccessToken("user-123")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/matches/query", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}
