package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/desertthunder/cosmic/internal/shared"
)

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler handles the single callback of the CLI's loopback login.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	auth        Authorizer
	state       string
	verifier    string
	redirect    string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a callback handler for one login attempt. It generates its own state
// token and PKCE verifier.
func NewOAuthHandler(auth Authorizer, redirect string) *OAuthHandler {
	return &OAuthHandler{
		auth:       auth,
		state:      shared.GenerateID(),
		verifier:   oauth2.GenerateVerifier(),
		redirect:   redirect,
		resultChan: make(chan OAuthResult, 1),
	}
}

// AuthURL returns the URL the user opens to authorize this attempt.
func (h *OAuthHandler) AuthURL() string {
	return h.auth.AuthURL(h.state, h.verifier, h.redirect)
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP validates the state parameter, exchanges the code with the attempt's verifier and
// sends the result through the result channel.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		h.Send(OAuthResult{err: shared.ErrStateMismatch})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.Send(OAuthResult{err: fmt.Errorf("%w: %s %s", shared.ErrAuthFailed, errParam, errDesc)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := h.auth.Exchange(r.Context(), code, h.verifier, h.redirect)
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	h.Send(OAuthResult{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #05060f; }
        .container { text-align: center; background: #11142a; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 0 24px rgba(120,140,255,0.25); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #b8bce0; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Connected to Spotify</h1>
        <p>Your galaxy is ready. Return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}

// Wait blocks until the callback completes or ctx ends.
func (h *OAuthHandler) Wait(ctx context.Context) (*oauth2.Token, error) {
	select {
	case result := <-h.resultChan:
		if result.err != nil {
			return nil, result.err
		}
		if result.Token == nil {
			return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
		}
		return result.Token, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for authorization: %v", shared.ErrAuthFailed, ctx.Err())
	}
}
