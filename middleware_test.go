package whisper_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/panyam/whisper"
)

// fakeSession is a SessionGetter backed by a plain map
func fakeSession(values map[string]any) func(r *http.Request, param string) any {
	return func(r *http.Request, param string) any {
		return values[param]
	}
}

func recordingHandler(gotUserId *string, mw *whisper.Middleware) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUserId = mw.GetLoggedInUserId(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestEnsureUserRedirectsAnonymous(t *testing.T) {
	mw := &whisper.Middleware{
		SessionGetter: fakeSession(map[string]any{}),
		GetRedirURL:   func(r *http.Request) string { return "/login" },
	}

	var gotUserId string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	mw.EnsureUser(recordingHandler(&gotUserId, mw)).ServeHTTP(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("Expected status %d, got %d", http.StatusFound, rr.Code)
	}
	if got := rr.Header().Get("Location"); got != "/login" {
		t.Errorf("Expected redirect to /login, got %q", got)
	}
	if gotUserId != "" {
		t.Errorf("handler should not run for anonymous requests")
	}
}

func TestEnsureUserWithoutRedirectURLReturns401(t *testing.T) {
	mw := &whisper.Middleware{SessionGetter: fakeSession(map[string]any{})}

	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	var gotUserId string
	mw.EnsureUser(recordingHandler(&gotUserId, mw)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestEnsureUserPassesSessionIdentity(t *testing.T) {
	mw := &whisper.Middleware{
		SessionGetter: fakeSession(map[string]any{whisper.SessionUserIDVar: "user-42"}),
		GetRedirURL:   func(r *http.Request) string { return "/login" },
	}

	var gotUserId string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	rr := httptest.NewRecorder()
	mw.EnsureUser(recordingHandler(&gotUserId, mw)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if gotUserId != "user-42" {
		t.Errorf("Expected user id user-42, got %q", gotUserId)
	}
}

// TestAuthTokenCookieFallback verifies a signed auth token cookie resumes a
// login when the server-side session is empty.
func TestAuthTokenCookieFallback(t *testing.T) {
	auth := whisper.NewAuth("Test", "test-secret-key-123456")
	auth.Middleware.SessionGetter = fakeSession(map[string]any{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-99",
		"iss": auth.JwtIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(auth.JWTSecretKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	var gotUserId string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenCookieName, Value: tokenString})
	rr := httptest.NewRecorder()
	auth.Middleware.EnsureUser(recordingHandler(&gotUserId, &auth.Middleware)).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if gotUserId != "user-99" {
		t.Errorf("Expected user id user-99, got %q", gotUserId)
	}
}

// TestAuthTokenCookieRejectsBadSignature verifies tokens signed with a
// different key never authenticate.
func TestAuthTokenCookieRejectsBadSignature(t *testing.T) {
	auth := whisper.NewAuth("Test", "test-secret-key-123456")
	auth.Middleware.SessionGetter = fakeSession(map[string]any{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-99",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte("some-other-key"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	var gotUserId string
	req := httptest.NewRequest(http.MethodGet, "/submit", nil)
	req.AddCookie(&http.Cookie{Name: auth.AuthTokenCookieName, Value: tokenString})
	rr := httptest.NewRecorder()
	auth.Middleware.EnsureUser(recordingHandler(&gotUserId, &auth.Middleware)).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}
