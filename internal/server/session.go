package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/desertthunder/cosmic/internal/shared"
)

const (
	DefaultSessionCookie = "session_jwt"
	DefaultSessionMaxAge = 30 * 24 * time.Hour

	// TempCookieMaxAge bounds the state and verifier cookies of one login attempt.
	TempCookieMaxAge = 10 * time.Minute

	StateCookie    = "spotify_oauth_state"
	VerifierCookie = "spotify_code_verifier"
)

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

// TokenPayload is what the session cookie stores about the Spotify grant.
type TokenPayload struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // epoch ms of the access token expiry
}

// PayloadFromToken converts an oauth2 token into a cookie payload.
func PayloadFromToken(t *oauth2.Token) TokenPayload {
	p := TokenPayload{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken}
	if !t.Expiry.IsZero() {
		p.ExpiresAt = t.Expiry.UnixMilli()
	}
	return p
}

// Token converts the payload back into an oauth2 token. A payload without an access token or an
// expiry yields an already expired token so the next request refreshes it.
func (p TokenPayload) Token() *oauth2.Token {
	t := &oauth2.Token{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken, TokenType: "Bearer"}
	if p.AccessToken == "" || p.ExpiresAt == 0 {
		t.Expiry = time.UnixMilli(0)
	} else {
		t.Expiry = time.UnixMilli(p.ExpiresAt)
	}
	return t
}

type sessionClaims struct {
	TokenPayload
	jwt.RegisteredClaims
}

// SessionManager signs and reads the HS256 session cookie and the short-lived login cookies.
type SessionManager struct {
	secret []byte
	name   string
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a session manager from the session config section.
func NewSessionManager(cfg shared.SessionConfig) (*SessionManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: session secret is required", shared.ErrInvalidConfig)
	}

	m := &SessionManager{
		secret: []byte(cfg.Secret),
		name:   cfg.CookieName,
		maxAge: cfg.MaxAge.Duration,
		secure: cfg.Secure,
		now:    time.Now,
	}
	if m.name == "" {
		m.name = DefaultSessionCookie
	}
	if m.maxAge <= 0 {
		m.maxAge = DefaultSessionMaxAge
	}
	return m, nil
}

// WithClock replaces the time source used for signing and validation.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// CookieName returns the session cookie name.
func (m *SessionManager) CookieName() string { return m.name }

// Sign returns the signed session value for payload.
func (m *SessionManager) Sign(payload TokenPayload) (string, error) {
	now := m.now()
	claims := sessionClaims{
		TokenPayload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Parse validates a signed session value and returns its payload.
func (m *SessionManager) Parse(value string) (TokenPayload, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		return TokenPayload{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.RefreshToken == "" {
		return TokenPayload{}, fmt.Errorf("%w: missing refresh token", ErrInvalidSession)
	}
	return claims.TokenPayload, nil
}

// Issue signs payload into the session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, payload TokenPayload) error {
	signed, err := m.Sign(payload)
	if err != nil {
		return err
	}
	m.setCookie(w, m.name, signed, m.maxAge)
	return nil
}

// Read returns the payload of the request's session cookie.
func (m *SessionManager) Read(r *http.Request) (TokenPayload, error) {
	c, err := r.Cookie(m.name)
	if err != nil || c.Value == "" {
		return TokenPayload{}, ErrNoSession
	}
	return m.Parse(c.Value)
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) { m.ClearCookie(w, m.name) }

// SetTemp sets a short-lived HttpOnly cookie used during login.
func (m *SessionManager) SetTemp(w http.ResponseWriter, name, value string) {
	m.setCookie(w, name, value, TempCookieMaxAge)
}

// ClearCookie expires the named cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter, name string) {
	m.setCookie(w, name, "", -1)
}

func (m *SessionManager) setCookie(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	seconds := int(maxAge / time.Second)
	if maxAge < 0 {
		seconds = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   seconds,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
