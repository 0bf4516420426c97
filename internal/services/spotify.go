// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/shared"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI is used when the configuration leaves the redirect empty.
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"

	// maxTopLimit is the largest page the top items endpoint accepts.
	maxTopLimit = 50
)

// DefaultScopes are requested when the configuration names none.
var DefaultScopes = []string{"user-top-read", "user-library-read", "playlist-read-private"}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Images     []SpotifyImage `json:"images"`
	Popularity int            `json:"popularity"`
	URI        string         `json:"uri"`
}

// Record converts the artist into the catalog-neutral [models.ArtistRecord].
func (a SpotifyArtist) Record() models.ArtistRecord {
	r := models.ArtistRecord{ID: a.ID, Name: a.Name, Popularity: a.Popularity, Genres: a.Genres}
	if r.Genres == nil {
		r.Genres = []string{}
	}
	if len(a.Images) > 0 {
		r.ImageURL = a.Images[0].URL
	}
	return r
}

// SpotifyPaginatedArtists represents a paginated response of top artists.
type SpotifyPaginatedArtists struct {
	Items    []SpotifyArtist `json:"items"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
}

// SpotifyService implements [Catalog] for the Spotify Web API.
// Uses [oauth2] with PKCE for authentication and refreshes tokens transparently.
type SpotifyService struct {
	config     *oauth2.Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger

	mu             sync.Mutex
	source         oauth2.TokenSource
	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithHTTPClient sets the client used for API and token requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithBaseURL points the service at another API root.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = u }
}

// WithEndpoint replaces the authorization and token URLs.
func WithEndpoint(e oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = e }
}

// WithLimiter sets the request pacing.
func WithLimiter(l *rate.Limiter) SpotifyOption {
	return func(s *SpotifyService) { s.limiter = l }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service from the configured credentials.
func NewSpotifyService(creds shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing spotify client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing spotify client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := creds.RedirectURI
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}
	scopes := creds.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	rps := creds.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL:    spotifyBaseURL,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("spotify")
	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// RedirectURL returns the configured OAuth redirect.
func (s *SpotifyService) RedirectURL() string { return s.config.RedirectURL }

// oauthContext carries the service's HTTP client into oauth2 token requests.
func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// AuthURL returns the authorization URL for state with an S256 challenge derived from verifier.
// redirect overrides the configured redirect URI when non-empty.
func (s *SpotifyService) AuthURL(state, verifier, redirect string) string {
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}
	if redirect != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirect))
	}
	return s.config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code and its PKCE verifier for a token. It does not install
// the token; call [SpotifyService.Authenticate] or [SpotifyService.WithToken].
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier, redirect string) (*oauth2.Token, error) {
	opts := []oauth2.AuthCodeOption{oauth2.VerifierOption(verifier)}
	if redirect != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirect))
	}

	token, err := s.config.Exchange(s.oauthContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Authenticate installs token. Expired tokens are refreshed on the next request.
func (s *SpotifyService) Authenticate(token *oauth2.Token) {
	base := s.config.TokenSource(s.oauthContext(context.Background()), token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = &refreshableTokenSource{
		source:   oauth2.ReuseTokenSource(token, base),
		last:     token.AccessToken,
		fallback: token.RefreshToken,
		callback: s.notify,
	}
}

// WithToken returns a copy of the service authenticated with token. The copy shares the rate
// limiter and HTTP client but not the refresh callback.
func (s *SpotifyService) WithToken(token *oauth2.Token) *SpotifyService {
	c := &SpotifyService{
		config:     s.config,
		baseURL:    s.baseURL,
		httpClient: s.httpClient,
		limiter:    s.limiter,
		logger:     s.logger,
	}
	c.Authenticate(token)
	return c
}

// SetTokenRefreshCallback registers fn to be called with every newly issued token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

func (s *SpotifyService) notify(token *oauth2.Token) {
	s.mu.Lock()
	fn := s.onTokenRefresh
	s.mu.Unlock()
	if fn != nil {
		fn(token)
	}
}

// Token returns a valid access token, refreshing it when it is about to expire.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	source := s.source
	s.mu.Unlock()

	if source == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// refreshableTokenSource reports tokens it has not handed out before to callback and keeps the
// previous refresh token when the provider does not rotate it.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	last     string
	fallback string
	callback func(*oauth2.Token)
	mu       sync.Mutex
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if token.RefreshToken == "" {
		token.RefreshToken = r.fallback
	} else {
		r.fallback = token.RefreshToken
	}
	if token.AccessToken != r.last {
		r.last = token.AccessToken
		if r.callback != nil {
			r.callback(token)
		}
	}
	return token, nil
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, result any) error {
	token, err := s.Token()
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		s.logger.Warn("spotify request failed", "endpoint", endpoint, "status", resp.StatusCode)
		return &shared.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TopArtistsPage retrieves one page of the user's top artists.
func (s *SpotifyService) TopArtistsPage(ctx context.Context, tr models.TimeRange, limit, offset int) (*SpotifyPaginatedArtists, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	q.Set("offset", fmt.Sprint(offset))
	q.Set("time_range", string(models.ParseTimeRange(string(tr))))

	var response SpotifyPaginatedArtists
	if err := s.doRequest(ctx, http.MethodGet, "/me/top/artists?"+q.Encode(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// TopArtists returns the user's top artists as [models.ArtistRecord] values.
func (s *SpotifyService) TopArtists(ctx context.Context, tr models.TimeRange, limit int) ([]models.ArtistRecord, error) {
	page, err := s.TopArtistsPage(ctx, tr, limit, 0)
	if err != nil {
		return nil, err
	}

	artists := make([]models.ArtistRecord, 0, len(page.Items))
	for _, item := range page.Items {
		if item.ID == "" {
			continue
		}
		artists = append(artists, item.Record())
	}
	if deduped := models.DedupeArtists(artists); deduped != nil {
		return deduped, nil
	}
	return artists, nil
}

var _ Catalog = (*SpotifyService)(nil)
