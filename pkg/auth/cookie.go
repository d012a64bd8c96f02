package auth

import (
	"net/http"
	"net/url"
	"time"
)

// TokenCookieName is the cookie carrying the access token for browser clients.
const TokenCookieName = "ekaya_sales_jwt"

// CookieSettings contains cookie security settings derived from base URL.
type CookieSettings struct {
	// Secure indicates whether the cookie should only be sent over HTTPS.
	Secure bool
	// Domain is the cookie domain scope. Empty restricts the cookie to the exact host.
	Domain string
}

// DeriveCookieSettings determines cookie security settings from the base URL.
//   - http://localhost:8080 -> Secure: false
//   - https://sales.example.com -> Secure: true
//
// forceSecure marks cookies Secure regardless of scheme, for deployments behind
// a TLS-terminating proxy.
func DeriveCookieSettings(baseURL string, forceSecure bool) CookieSettings {
	if forceSecure {
		return CookieSettings{Secure: true}
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil || baseURL == "" {
		return CookieSettings{Secure: true}
	}

	return CookieSettings{Secure: parsedURL.Scheme != "http"}
}

// SetTokenCookie writes the access token cookie.
func SetTokenCookie(w http.ResponseWriter, settings CookieSettings, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   settings.Domain,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie expires the access token cookie.
func ClearTokenCookie(w http.ResponseWriter, settings CookieSettings) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   settings.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   settings.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
