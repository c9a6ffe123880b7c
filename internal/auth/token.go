package auth

import (
	"net/http"
	"strings"
)

// SessionCookie is set by the storefront after sign-in.
const SessionCookie = "lmp_session"

// ExtractAccessToken returns the bearer token of the request. Admin tooling
// sends an Authorization header; the storefront relies on the session cookie.
func ExtractAccessToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}
