package httpapi

import (
	"net/http"

	"github.com/literati-app/auth-service/internal/token"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// setAuthCookies writes both tokens as httpOnly cookies. Production
// uses Secure with SameSite=None so the browser sends them cross-site,
// development stays on Lax for plain-http localhost.
func (s *Server) setAuthCookies(w http.ResponseWriter, pair token.Pair) {
	policy := s.opts.CookiePolicy

	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		MaxAge:   int(s.opts.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: policy.SameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		MaxAge:   int(s.opts.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: policy.SameSite,
	})
}

// clearAuthCookies expires both cookies. The attributes must match the
// ones used when setting, otherwise browsers keep the original cookie.
func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	policy := s.opts.CookiePolicy

	for _, name := range []string{accessCookieName, refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   policy.Secure,
			SameSite: policy.SameSite,
		})
	}
}
