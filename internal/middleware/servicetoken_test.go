package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serviceGate(secret []byte) http.Handler {
	return RequireServiceToken(secret)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)
}

func TestServiceTokenValid(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueServiceToken(secret, "jessica", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	serviceGate(secret).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServiceTokenMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", nil)
	rec := httptest.NewRecorder()
	serviceGate([]byte("test-secret")).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestServiceTokenWrongSecret(t *testing.T) {
	token, _ := IssueServiceToken([]byte("other-secret"), "jessica", time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	serviceGate([]byte("test-secret")).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestServiceTokenExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, _ := IssueServiceToken(secret, "jessica", -time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	serviceGate(secret).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestServiceTokenGateDisabledWithoutSecret(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/send", nil)
	rec := httptest.NewRecorder()
	serviceGate(nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with gate disabled", rec.Code)
	}
}
