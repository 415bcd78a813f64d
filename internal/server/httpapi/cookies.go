package httpapi

import (
	"net/http"
	"time"

	"github.com/avoronin/authkeeper/internal/server/models"
)

// refreshTokenCookie is the cookie carrying the refresh token. The access
// token only ever travels in the response body.
const refreshTokenCookie = "refreshtoken"

func (s *Server) setRefreshCookie(w http.ResponseWriter, token *models.RefreshToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  token.ExpiresAt,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

// refreshTokenFromRequest returns the presented refresh token value, or an
// empty string when the cookie is absent.
func refreshTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}
