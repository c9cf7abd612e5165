// Package cookie выставляет и сбрасывает cookie сессии.
package cookie

import (
	"net/http"
	"time"
)

// Set сохраняет токен в HttpOnly cookie со сроком жизни ttl.
func Set(w http.ResponseWriter, name, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// Clear перезаписывает cookie пустым значением с истёкшим сроком.
// Уже выданный токен остаётся действительным до своего exp.
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
