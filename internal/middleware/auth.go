package middleware

import (
	"net/http"
	"strings"

	"github.com/dukerupert/presenze/internal/auth"
)

// TokenCookieName holds the backend token set by the login page of the
// attendance backend.
const TokenCookieName = "presenze_token"

// ForwardCredentials copies the caller's backend token (Authorization bearer
// header first, then the token cookie) into the request context so outgoing
// API calls act on the caller's behalf. Requests without a token pass through
// and fall back to the agent's configured token.
func ForwardCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if cookie, err := r.Cookie(TokenCookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := auth.WithCredentials(r.Context(), auth.Credentials{Token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
