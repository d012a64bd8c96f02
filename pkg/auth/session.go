package auth

import (
	"crypto/sha256"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

// SessionName is the name of the browser session cookie.
const SessionName = "ekaya_sales_session"

// Session value keys.
const (
	sessionKeyUserID   = "user_id"
	sessionKeyUsername = "username"
	sessionKeyRole     = "role"
	sessionKeyEmail    = "email"
)

// ErrNoSession is returned when the request carries no authenticated session.
var ErrNoSession = errors.New("no session")

// SessionStore keeps the logged-in principal in a signed cookie.
type SessionStore struct {
	store *sessions.CookieStore
}

// NewSessionStore creates a cookie session store.
//
// The secret is SHA-256 hashed to derive a 32-byte signing key, so it must be
// stable across restarts and replicas.
func NewSessionStore(secret string, cookies CookieSettings) *SessionStore {
	key := sha256.Sum256([]byte(secret))

	store := sessions.NewCookieStore(key[:])
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   cookies.Domain,
		MaxAge:   3600,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionStore{store: store}
}

// Save writes p into the session with the given lifetime in seconds.
func (s *SessionStore) Save(w http.ResponseWriter, r *http.Request, p Principal, maxAge int) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		// A cookie signed with an old key decodes with an error but still yields a fresh session.
		session, _ = s.store.New(r, SessionName)
	}

	session.Values[sessionKeyUserID] = p.UserID.String()
	session.Values[sessionKeyUsername] = p.Username
	session.Values[sessionKeyRole] = p.Role
	session.Values[sessionKeyEmail] = p.Email
	session.Options.MaxAge = maxAge

	return session.Save(r, w)
}

// Load returns the principal stored in the request's session.
func (s *SessionStore) Load(r *http.Request) (Principal, error) {
	if _, err := r.Cookie(SessionName); err != nil {
		return Principal{}, ErrNoSession
	}

	session, err := s.store.Get(r, SessionName)
	if err != nil || session.IsNew {
		return Principal{}, ErrNoSession
	}

	raw, _ := session.Values[sessionKeyUserID].(string)
	userID, err := uuid.Parse(raw)
	if err != nil {
		return Principal{}, ErrNoSession
	}

	username, _ := session.Values[sessionKeyUsername].(string)
	role, _ := session.Values[sessionKeyRole].(string)
	email, _ := session.Values[sessionKeyEmail].(string)

	return Principal{UserID: userID, Username: username, Role: role, Email: email}, nil
}

// Clear expires the session cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		session, _ = s.store.New(r, SessionName)
	}
	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
