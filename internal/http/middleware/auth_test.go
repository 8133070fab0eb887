package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func mintToken(t *testing.T, secret, subject, userID string, exp time.Time) string {
	t.Helper()
	claims := accessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authRouter(secret string) (*gin.Engine, *string) {
	r := gin.New()
	var seen string
	r.Use(Auth(secret))
	r.GET("/whoami", func(c *gin.Context) {
		seen = UserIDFrom(c)
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestAuth_ValidBearerToken(t *testing.T) {
	r, seen := authRouter(testSecret)
	token := mintToken(t, testSecret, "u1", "", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if *seen != "u1" {
		t.Fatalf("user id = %q, want u1", *seen)
	}
}

func TestAuth_CookieFallback(t *testing.T) {
	r, seen := authRouter(testSecret)
	token := mintToken(t, testSecret, "u2", "", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: authCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || *seen != "u2" {
		t.Fatalf("status=%d user=%q", w.Code, *seen)
	}
}

func TestAuth_UserIDClaimFallback(t *testing.T) {
	r, seen := authRouter(testSecret)
	token := mintToken(t, testSecret, "", "legacy-user", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || *seen != "legacy-user" {
		t.Fatalf("status=%d user=%q", w.Code, *seen)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	r, _ := authRouter(testSecret)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	r, _ := authRouter(testSecret)
	token := mintToken(t, "other-secret", "u1", "", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	r, _ := authRouter(testSecret)
	token := mintToken(t, testSecret, "u1", "", time.Now().Add(-time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_TokenWithoutIdentity(t *testing.T) {
	r, _ := authRouter(testSecret)
	token := mintToken(t, testSecret, "", "", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestAuth_NonBearerHeaderIgnoresCookie(t *testing.T) {
	r, _ := authRouter(testSecret)
	token := mintToken(t, testSecret, "u1", "", time.Now().Add(time.Hour))

	// A malformed Authorization header takes precedence over a valid cookie.
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	req.AddCookie(&http.Cookie{Name: authCookie, Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
