package shield

import (
	"context"
	"net/http"
	"net/url"
)

const flashCookieName = "shield_flash"

// SetFlash stores a one-time flash message in a cookie, to be read back and
// cleared by the Flash middleware on the next request.
func SetFlash(w http.ResponseWriter, kind, message string) {
	v := url.QueryEscape(kind) + "|" + url.QueryEscape(message)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    v,
		Path:     "/",
		MaxAge:   30,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Flash reads a pending flash cookie (if any), clears it, and injects the
// decoded FlashMessage into the request context under FlashKey.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if c, err := r.Cookie(flashCookieName); err == nil && c.Value != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     flashCookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})

			if msg := decodeFlash(c.Value); msg != nil {
				ctx = context.WithValue(ctx, FlashKey, msg)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeFlash(raw string) *FlashMessage {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '|' {
			continue
		}
		kind, err1 := url.QueryUnescape(raw[:i])
		message, err2 := url.QueryUnescape(raw[i+1:])
		if err1 != nil || err2 != nil {
			return nil
		}
		return &FlashMessage{Type: kind, Message: message}
	}
	return nil
}
