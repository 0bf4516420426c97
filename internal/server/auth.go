package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/cosmic/internal/services"
	"github.com/desertthunder/cosmic/internal/shared"
)

// Authorizer starts and completes the authorization code flow with PKCE.
type Authorizer interface {
	AuthURL(state, verifier, redirect string) string
	Exchange(ctx context.Context, code, verifier, redirect string) (*oauth2.Token, error)
}

// TokenCatalog is a catalog bound to one listener's token.
type TokenCatalog interface {
	services.Catalog
	Token() (*oauth2.Token, error)
}

// CatalogFactory binds a catalog to the token read from a session.
type CatalogFactory func(*oauth2.Token) TokenCatalog

// SpotifyCatalogs returns a factory of per-request copies of s.
func SpotifyCatalogs(s *services.SpotifyService) CatalogFactory {
	return func(t *oauth2.Token) TokenCatalog { return s.WithToken(t) }
}

// AuthHandler serves the browser login flow: /login, /callback and /logout.
type AuthHandler struct {
	auth     Authorizer
	sessions *SessionManager
	baseURL  string
	home     string
	logger   *log.Logger
}

// NewAuthHandler creates the login handler. baseURL fixes the redirect origin; when empty the
// origin is taken from the request's forwarded headers.
func NewAuthHandler(auth Authorizer, sessions *SessionManager, baseURL string, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		baseURL:  strings.TrimRight(baseURL, "/"),
		home:     "/",
		logger:   orDiscard(logger).WithPrefix("auth"),
	}
}

func (h *AuthHandler) Routes() []string {
	return []string{"/login", "/callback", "/logout"}
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/logout":
		h.sessions.Clear(w)
		http.Redirect(w, r, h.home, http.StatusFound)
	default:
		writeError(w, http.StatusNotFound, "not_found")
	}
}

// redirectURI is the callback URL registered with the provider for this request's origin.
func (h *AuthHandler) redirectURI(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL + "/callback"
	}

	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		proto = "http"
		if r.TLS != nil {
			proto = "https"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return proto + "://" + host + "/callback"
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()

	h.sessions.SetTemp(w, VerifierCookie, verifier)
	h.sessions.SetTemp(w, StateCookie, state)

	redirect := h.redirectURI(r)
	h.logger.Debug("starting login", "redirect_uri", redirect)
	http.Redirect(w, r, h.auth.AuthURL(state, verifier, redirect), http.StatusFound)
}

func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		if e := q.Get("error"); e != "" {
			h.logger.Warn("authorization denied", "error", e)
		}
		http.Error(w, "Missing code/state", http.StatusBadRequest)
		return
	}

	if c, err := r.Cookie(StateCookie); err != nil || c.Value != state {
		h.logger.Warn("oauth state mismatch")
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}
	verifier, err := r.Cookie(VerifierCookie)
	if err != nil || verifier.Value == "" {
		http.Error(w, "Missing code_verifier", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Exchange(r.Context(), code, verifier.Value, h.redirectURI(r))
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Token exchange failed", http.StatusBadRequest)
		return
	}

	if err := h.sessions.Issue(w, PayloadFromToken(token)); err != nil {
		h.logger.Error("failed to issue session", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.sessions.ClearCookie(w, VerifierCookie)
	h.sessions.ClearCookie(w, StateCookie)

	h.logger.Info("login complete")
	http.Redirect(w, r, h.home, http.StatusFound)
}
