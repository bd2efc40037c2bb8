package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/presenze/internal/auth"
)

func forwardedToken(t *testing.T, req *http.Request) (string, bool) {
	t.Helper()
	var got string
	var found bool
	handler := ForwardCredentials(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c auth.Credentials
		c, found = auth.FromContext(r.Context())
		got = c.Token
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got, found
}

func TestForwardCredentialsNoToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/calendar", nil)
	if _, found := forwardedToken(t, req); found {
		t.Error("expected no credentials without header or cookie")
	}
}

func TestForwardCredentialsBearer(t *testing.T) {
	req := httptest.NewRequest("GET", "/calendar", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})

	got, found := forwardedToken(t, req)
	if !found {
		t.Fatal("expected credentials")
	}
	if got != "abc" {
		t.Errorf("token = %q, want %q", got, "abc")
	}
}

func TestForwardCredentialsCookie(t *testing.T) {
	req := httptest.NewRequest("GET", "/calendar", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "from-cookie"})

	got, _ := forwardedToken(t, req)
	if got != "from-cookie" {
		t.Errorf("token = %q, want %q", got, "from-cookie")
	}
}

func TestForwardCredentialsIgnoresOtherSchemes(t *testing.T) {
	req := httptest.NewRequest("GET", "/calendar", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if _, found := forwardedToken(t, req); found {
		t.Error("expected Basic auth to be ignored")
	}
}
