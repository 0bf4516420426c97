package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/server"
	"github.com/desertthunder/cosmic/internal/services"
	"github.com/desertthunder/cosmic/internal/shared"
)

// AuthTimeout bounds the wait for the browser callback.
const AuthTimeout = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server on the redirect URI's address, opens the browser for user
// authorization, and saves the exchanged tokens to the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	srv, err := r.spotifyService()
	if err != nil {
		return fmt.Errorf("%w: set client_id and client_secret in %s", err, r.configPath)
	}

	token, err := r.doOAuth(ctx, srv)
	if err != nil {
		return err
	}

	r.config.Credentials.Spotify.SetToken(token)
	if r.configPath != "" {
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: cosmic top, cosmic galaxy\n")
	return nil
}

// doOAuth runs one loopback authorization: serve /callback, open the browser, wait for the code.
func (r *Runner) doOAuth(ctx context.Context, srv *services.SpotifyService) (*oauth2.Token, error) {
	redirect := srv.RedirectURL()
	addr, err := loopbackAddr(redirect, r.config.Server.Addr())
	if err != nil {
		return nil, err
	}

	handler := server.NewOAuthHandler(srv, redirect)
	router := server.NewBasicRouter()
	router.Handler(handler)

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", addr)
		serverErrors <- server.NewServer(addr, router, r.logger).Start(serveCtx)
	}()

	authURL := handler.AuthURL()
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", AuthTimeout)

	waitCtx, cancel := context.WithTimeout(ctx, AuthTimeout)
	defer cancel()

	type outcome struct {
		token *oauth2.Token
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		token, err := handler.Wait(waitCtx)
		done <- outcome{token, err}
	}()

	select {
	case err := <-serverErrors:
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: callback server stopped", shared.ErrAuthFailed)
	case res := <-done:
		if res.err != nil && waitCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, AuthTimeout)
		}
		if res.err != nil {
			return nil, fmt.Errorf("authorization failed: %w", res.err)
		}
		return res.token, nil
	}
}

// loopbackAddr returns the host:port the redirect URI points at, or fallback when it has none.
func loopbackAddr(redirect, fallback string) (string, error) {
	u, err := url.Parse(redirect)
	if err != nil {
		return "", fmt.Errorf("%w: redirect_uri %q: %v", shared.ErrInvalidConfig, redirect, err)
	}
	if u.Host == "" {
		return fallback, nil
	}
	if u.Port() == "" {
		if u.Scheme == "https" {
			return u.Hostname() + ":443", nil
		}
		return u.Hostname() + ":80", nil
	}
	return u.Host, nil
}

// SpotifyWhoami prints the profile of the saved token's user.
func (r *Runner) SpotifyWhoami(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.Catalog(); err != nil {
		return err
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	user, err := r.spotify.UserProfile(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlainHeader(user.DisplayName)
	r.writePlain("ID: %s\n", user.ID)
	if user.Country != "" {
		r.writePlain("Country: %s\n", user.Country)
	}
	if user.Product != "" {
		r.writePlain("Plan: %s\n", user.Product)
	}
	r.writePlain("Followers: %d\n", user.Followers.Total)
	return nil
}

// TopResult is the JSON output of the top command.
type TopResult struct {
	Range models.TimeRange      `json:"range"`
	Items []models.ArtistRecord `json:"items"`
}

// Top lists the user's top artists for a time range.
func (r *Runner) Top(ctx context.Context, cmd *cli.Command) error {
	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	tr := r.timeRange(cmd.String("range"))
	limit := r.topLimit(int(cmd.Int("limit")))

	r.logger.Infof("fetching %v top artists (%v) from %v", limit, tr, catalog.Name())
	artists, err := catalog.TopArtists(ctx, tr, limit)
	if err != nil {
		return err
	}
	if artists == nil {
		artists = []models.ArtistRecord{}
	}

	if cmd.Bool("json") {
		return r.writeJSON(TopResult{Range: tr, Items: artists}, cmd.Bool("pretty"))
	}

	room := models.Room{Members: []models.Member{{ID: "me", Artists: artists}}}
	if handled, err := r.export(cmd, room); handled || err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Top artists (%s)", strings.ReplaceAll(string(tr), "_", " ")))
	r.writeArtists(artists)
	return nil
}

func (r *Runner) writeArtists(artists []models.ArtistRecord) {
	if len(artists) == 0 {
		r.writePlain("No artists.\n")
		return
	}
	for i, a := range artists {
		r.writePlain("%2d. %s", i+1, a.Name)
		if len(a.Genres) > 0 {
			r.writePlain(" (%s)", strings.Join(a.Genres, ", "))
		}
		r.writePlain("\n")
	}
}
