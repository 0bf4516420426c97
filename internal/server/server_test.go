package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/desertthunder/cosmic/internal/models"
	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/shared"
	tu "github.com/desertthunder/cosmic/internal/testing"
)

type fakeAuthorizer struct {
	mu       sync.Mutex
	token    *oauth2.Token
	err      error
	state    string
	verifier string
	code     string
	redirect string
}

func (f *fakeAuthorizer) AuthURL(state, verifier, redirect string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state, f.verifier, f.redirect = state, verifier, redirect
	return "https://accounts.example/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeAuthorizer) Exchange(_ context.Context, code, verifier, redirect string) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code, f.verifier, f.redirect = code, verifier, redirect
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeCatalog struct {
	token    *oauth2.Token
	tokenErr error
	artists  []models.ArtistRecord
	err      error
	got      models.TimeRange
	limit    int
}

func (f *fakeCatalog) Name() string { return "fake" }

func (f *fakeCatalog) Token() (*oauth2.Token, error) { return f.token, f.tokenErr }

func (f *fakeCatalog) TopArtists(_ context.Context, tr models.TimeRange, limit int) ([]models.ArtistRecord, error) {
	f.got, f.limit = tr, limit
	return f.artists, f.err
}

func newSessions(t *testing.T) *SessionManager {
	t.Helper()
	m, err := NewSessionManager(shared.SessionConfig{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return m
}

func newRoomService(t *testing.T) *rooms.Service {
	t.Helper()
	clock := tu.NewClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return rooms.NewService(rooms.NewMemoryStore(4*time.Hour, clock.Now), rooms.DefaultSettings, nil)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
}

func TestSessionManager(t *testing.T) {
	t.Run("Requires Secret", func(t *testing.T) {
		if _, err := NewSessionManager(shared.SessionConfig{}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		m := newSessions(t)
		if m.CookieName() != DefaultSessionCookie || m.maxAge != DefaultSessionMaxAge {
			t.Errorf("unexpected defaults %s %v", m.CookieName(), m.maxAge)
		}
	})

	t.Run("Sign And Parse", func(t *testing.T) {
		m := newSessions(t)
		want := TokenPayload{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: 1700000000000}

		signed, err := m.Sign(want)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		got, err := m.Parse(signed)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != want {
			t.Errorf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("Rejects Tampered Value", func(t *testing.T) {
		m := newSessions(t)
		signed, _ := m.Sign(TokenPayload{RefreshToken: "refresh"})

		other, _ := NewSessionManager(shared.SessionConfig{Secret: "another-secret"})
		if _, err := other.Parse(signed); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("expected ErrInvalidSession, got %v", err)
		}
		if _, err := m.Parse(signed + "x"); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("Rejects Expired Session", func(t *testing.T) {
		clock := tu.NewClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		m := newSessions(t).WithClock(clock.Now)
		signed, _ := m.Sign(TokenPayload{RefreshToken: "refresh"})

		clock.Advance(DefaultSessionMaxAge + time.Minute)
		if _, err := m.Parse(signed); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("Rejects Missing Refresh Token", func(t *testing.T) {
		m := newSessions(t)
		signed, _ := m.Sign(TokenPayload{AccessToken: "access"})
		if _, err := m.Parse(signed); !errors.Is(err, ErrInvalidSession) {
			t.Errorf("expected ErrInvalidSession, got %v", err)
		}
	})

	t.Run("Read Without Cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if _, err := newSessions(t).Read(req); !errors.Is(err, ErrNoSession) {
			t.Errorf("expected ErrNoSession, got %v", err)
		}
	})

	t.Run("Issue Sets HttpOnly Cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		if err := newSessions(t).Issue(rec, TokenPayload{RefreshToken: "r"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		c := findCookie(rec, DefaultSessionCookie)
		if c == nil || !c.HttpOnly || c.Path != "/" || c.MaxAge != int(DefaultSessionMaxAge/time.Second) {
			t.Errorf("unexpected cookie %+v", c)
		}
	})

	t.Run("Payload Token Conversion", func(t *testing.T) {
		expiry := time.Now().Add(time.Hour).Truncate(time.Millisecond)
		p := PayloadFromToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: expiry})
		if p.ExpiresAt != expiry.UnixMilli() {
			t.Errorf("expected millisecond expiry, got %d", p.ExpiresAt)
		}
		if !p.Token().Expiry.Equal(expiry) || !p.Token().Valid() {
			t.Errorf("expected a valid token expiring at %v, got %+v", expiry, p.Token())
		}

		stale := TokenPayload{RefreshToken: "r"}.Token()
		if stale.Valid() {
			t.Error("expected a payload without access token to need a refresh")
		}
	})
}

func TestAuthHandler(t *testing.T) {
	t.Run("Login", func(t *testing.T) {
		auth := &fakeAuthorizer{}
		h := NewAuthHandler(auth, newSessions(t), "", nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/login", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if !strings.HasPrefix(rec.Header().Get("Location"), "https://accounts.example/authorize") {
			t.Errorf("unexpected location %s", rec.Header().Get("Location"))
		}
		if auth.redirect != "https://example.com/callback" {
			t.Errorf("expected redirect derived from request, got %s", auth.redirect)
		}

		state := findCookie(rec, StateCookie)
		verifier := findCookie(rec, VerifierCookie)
		if state == nil || state.Value != auth.state || state.MaxAge != 600 {
			t.Errorf("unexpected state cookie %+v", state)
		}
		if verifier == nil || verifier.Value != auth.verifier || len(verifier.Value) < 43 {
			t.Errorf("unexpected verifier cookie %+v", verifier)
		}
	})

	t.Run("Login With Base URL", func(t *testing.T) {
		auth := &fakeAuthorizer{}
		h := NewAuthHandler(auth, newSessions(t), "http://127.0.0.1:3000/", nil)
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/login", nil))

		if auth.redirect != "http://127.0.0.1:3000/callback" {
			t.Errorf("expected configured redirect, got %s", auth.redirect)
		}
	})

	callback := func(t *testing.T, auth *fakeAuthorizer, query string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
		t.Helper()
		h := NewAuthHandler(auth, newSessions(t), "", nil)
		req := httptest.NewRequest(http.MethodGet, "/callback?"+query, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Callback", func(t *testing.T) {
		auth := &fakeAuthorizer{token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}}
		rec := callback(t, auth, "code=abc&state=s1",
			&http.Cookie{Name: StateCookie, Value: "s1"},
			&http.Cookie{Name: VerifierCookie, Value: "v1"},
		)

		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
			t.Fatalf("expected redirect home, got %d %s", rec.Code, rec.Header().Get("Location"))
		}
		if auth.code != "abc" || auth.verifier != "v1" {
			t.Errorf("expected code and verifier to be exchanged, got %s %s", auth.code, auth.verifier)
		}

		session := findCookie(rec, DefaultSessionCookie)
		if session == nil || session.Value == "" {
			t.Fatal("expected session cookie")
		}
		payload, err := newSessions(t).Parse(session.Value)
		if err != nil || payload.RefreshToken != "r" || payload.AccessToken != "a" {
			t.Errorf("unexpected session payload %+v %v", payload, err)
		}
		if c := findCookie(rec, StateCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("expected state cookie to be cleared, got %+v", c)
		}
	})

	t.Run("Callback Missing Code", func(t *testing.T) {
		if rec := callback(t, &fakeAuthorizer{}, "state=s1&error=access_denied"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Callback State Mismatch", func(t *testing.T) {
		rec := callback(t, &fakeAuthorizer{}, "code=abc&state=s1",
			&http.Cookie{Name: StateCookie, Value: "other"},
			&http.Cookie{Name: VerifierCookie, Value: "v1"},
		)
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "State mismatch") {
			t.Errorf("expected state mismatch, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Callback Missing Verifier", func(t *testing.T) {
		rec := callback(t, &fakeAuthorizer{}, "code=abc&state=s1", &http.Cookie{Name: StateCookie, Value: "s1"})
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "code_verifier") {
			t.Errorf("expected missing verifier, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Callback Exchange Failure", func(t *testing.T) {
		auth := &fakeAuthorizer{err: shared.ErrAuthFailed}
		rec := callback(t, auth, "code=abc&state=s1",
			&http.Cookie{Name: StateCookie, Value: "s1"},
			&http.Cookie{Name: VerifierCookie, Value: "v1"},
		)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if findCookie(rec, DefaultSessionCookie) != nil {
			t.Error("expected no session cookie")
		}
	})

	t.Run("Logout", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAuthHandler(&fakeAuthorizer{}, newSessions(t), "", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))
		if c := findCookie(rec, DefaultSessionCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("expected session cookie to be cleared, got %+v", c)
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewAuthHandler(&fakeAuthorizer{}, newSessions(t), "", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestTopHandler(t *testing.T) {
	sessionRequest := func(t *testing.T, m *SessionManager, p TokenPayload, query string) *http.Request {
		t.Helper()
		signed, err := m.Sign(p)
		if err != nil {
			t.Fatalf("failed to sign: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/me/top"+query, nil)
		req.AddCookie(&http.Cookie{Name: DefaultSessionCookie, Value: signed})
		return req
	}
	live := TokenPayload{AccessToken: "live", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour).UnixMilli()}

	t.Run("Not Authenticated", func(t *testing.T) {
		h := NewTopHandler(func(*oauth2.Token) TokenCatalog { return &fakeCatalog{} }, newSessions(t), 0, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me/top", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		var body ErrorResponse
		decodeBody(t, rec, &body)
		if body.Error != "not_authenticated" {
			t.Errorf("expected not_authenticated, got %s", body.Error)
		}
	})

	t.Run("Returns Artists", func(t *testing.T) {
		m := newSessions(t)
		catalog := &fakeCatalog{token: live.Token(), artists: tu.Fixture(3)}
		var bound *oauth2.Token
		h := NewTopHandler(func(tok *oauth2.Token) TokenCatalog { bound = tok; return catalog }, m, 0, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, sessionRequest(t, m, live, "?range=short_term"))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body TopResponse
		decodeBody(t, rec, &body)
		if body.Range != models.ShortTerm || len(body.Items) != 3 {
			t.Errorf("unexpected body %+v", body)
		}
		if catalog.limit != 30 || bound.AccessToken != "live" {
			t.Errorf("expected limit 30 with the session token, got %d %+v", catalog.limit, bound)
		}
		if findCookie(rec, DefaultSessionCookie) != nil {
			t.Error("expected no reissued cookie without a refresh")
		}
	})

	t.Run("Reissues Refreshed Session", func(t *testing.T) {
		m := newSessions(t)
		refreshed := &oauth2.Token{AccessToken: "new", RefreshToken: "r2", Expiry: time.Now().Add(time.Hour)}
		h := NewTopHandler(func(*oauth2.Token) TokenCatalog { return &fakeCatalog{token: refreshed} }, m, 0, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, sessionRequest(t, m, TokenPayload{RefreshToken: "r"}, ""))

		c := findCookie(rec, DefaultSessionCookie)
		if c == nil {
			t.Fatal("expected reissued session cookie")
		}
		payload, _ := m.Parse(c.Value)
		if payload.AccessToken != "new" || payload.RefreshToken != "r2" {
			t.Errorf("unexpected reissued payload %+v", payload)
		}
	})

	t.Run("Refresh Failure", func(t *testing.T) {
		m := newSessions(t)
		catalog := &fakeCatalog{tokenErr: fmt.Errorf("%w: invalid_grant", shared.ErrRefreshFailed)}
		h := NewTopHandler(func(*oauth2.Token) TokenCatalog { return catalog }, m, 0, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, sessionRequest(t, m, TokenPayload{RefreshToken: "r"}, ""))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if c := findCookie(rec, DefaultSessionCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("expected cleared session, got %+v", c)
		}
	})

	t.Run("Upstream Errors", func(t *testing.T) {
		for upstream, want := range map[int]int{
			http.StatusTooManyRequests:     http.StatusTooManyRequests,
			http.StatusUnauthorized:        http.StatusUnauthorized,
			http.StatusInternalServerError: http.StatusBadGateway,
		} {
			m := newSessions(t)
			catalog := &fakeCatalog{token: live.Token(), err: &shared.UpstreamError{StatusCode: upstream}}
			h := NewTopHandler(func(*oauth2.Token) TokenCatalog { return catalog }, m, 0, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, sessionRequest(t, m, live, ""))
			if rec.Code != want {
				t.Errorf("upstream %d: expected %d, got %d", upstream, want, rec.Code)
			}
		}
	})
}

func TestGroupHandler(t *testing.T) {
	serve := func(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
		return rec
	}

	t.Run("Create Publish Get", func(t *testing.T) {
		h := NewGroupHandler(newRoomService(t), nil)

		rec := serve(h, http.MethodPost, "/group/create", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var created CreateResponse
		decodeBody(t, rec, &created)
		if len(created.Code) != rooms.DefaultCodeLength || !models.IsRoomCode(created.Code) {
			t.Fatalf("unexpected code %q", created.Code)
		}

		member, _ := json.Marshal(models.PublishRequest{
			Code:   strings.ToLower(created.Code),
			Member: models.Member{ID: "m1", DisplayName: "One", Artists: tu.Fixture(25)},
		})
		rec = serve(h, http.MethodPost, "/group/publish", string(member))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var published PublishResponse
		decodeBody(t, rec, &published)
		if !published.OK || published.Size != 1 {
			t.Errorf("unexpected publish response %+v", published)
		}

		rec = serve(h, http.MethodGet, "/group/get?code="+created.Code+"&member=m1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var room models.Room
		decodeBody(t, rec, &room)
		if room.Code != created.Code || len(room.Members) != 1 || len(room.Members[0].Artists) != 20 {
			t.Errorf("expected one member capped to 20 artists, got %+v", room)
		}
	})

	t.Run("Get Unknown Room", func(t *testing.T) {
		rec := serve(NewGroupHandler(newRoomService(t), nil), http.MethodGet, "/group/get?code=ABCDEF", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"members":[]`) {
			t.Errorf("expected empty members, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Bad Requests", func(t *testing.T) {
		h := NewGroupHandler(newRoomService(t), nil)
		for name, tc := range map[string]struct{ method, target, body string }{
			"get without code":     {http.MethodGet, "/group/get", ""},
			"get with bad code":    {http.MethodGet, "/group/get?code=AB", ""},
			"publish invalid json": {http.MethodPost, "/group/publish", "{"},
			"publish no member id": {http.MethodPost, "/group/publish", `{"code":"ABCDEF","member":{}}`},
			"publish bad code":     {http.MethodPost, "/group/publish", `{"code":"III-II","member":{"id":"m"}}`},
		} {
			rec := serve(h, tc.method, tc.target, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", name, rec.Code)
				continue
			}
			var body ErrorResponse
			decodeBody(t, rec, &body)
			if body.Error != "bad_request" {
				t.Errorf("%s: expected bad_request, got %s", name, body.Error)
			}
		}
	})

	t.Run("Method Not Allowed", func(t *testing.T) {
		h := NewGroupHandler(newRoomService(t), nil)
		if rec := serve(h, http.MethodGet, "/group/create", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec := serve(h, http.MethodPost, "/group/get", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Code Space Exhausted", func(t *testing.T) {
		svc := newRoomService(t).WithEntropy(tu.ZeroReader{})
		h := NewGroupHandler(svc, nil)

		if rec := serve(h, http.MethodPost, "/group/create", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected first create to succeed, got %d", rec.Code)
		}
		rec := serve(h, http.MethodPost, "/group/create", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
		var body ErrorResponse
		decodeBody(t, rec, &body)
		if body.Error != "unable_to_allocate_code" {
			t.Errorf("expected unable_to_allocate_code, got %s", body.Error)
		}
	})
}

func TestSnapshotHandler(t *testing.T) {
	galaxy := shared.DefaultConfig().Galaxy
	galaxy.SnapshotTicks = 20

	t.Run("Renders Room", func(t *testing.T) {
		svc := newRoomService(t)
		code, _ := svc.Create(context.Background())
		if _, err := svc.Publish(context.Background(), code, models.Member{ID: "m1", Artists: tu.Fixture(4)}); err != nil {
			t.Fatalf("failed to publish: %v", err)
		}

		rec := httptest.NewRecorder()
		NewSnapshotHandler(svc, galaxy, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/galaxy/snapshot.svg?code="+code+"&w=400&h=300", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Content-Type") != "image/svg+xml" {
			t.Errorf("unexpected content type %s", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "<svg") || strings.Count(rec.Body.String(), "<text") != 4 {
			t.Errorf("expected an svg with 4 labels, got %s", rec.Body.String())
		}
	})

	t.Run("Missing Code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewSnapshotHandler(newRoomService(t), galaxy, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/galaxy/snapshot.svg", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Side Clamp", func(t *testing.T) {
		if side("", 800) != 800 || side("nope", 800) != 800 || side("-5", 800) != 800 {
			t.Error("expected fallback for missing or invalid values")
		}
		if side("10", 800) != minSnapshotSide || side("99999", 800) != maxSnapshotSide {
			t.Error("expected values to be clamped")
		}
	})
}

func TestNewApp(t *testing.T) {
	newApp := func(t *testing.T, mutate func(*shared.Config)) *MuxRouter {
		cfg := shared.DefaultConfig()
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
		cfg.Server.RateLimit = 0
		if mutate != nil {
			mutate(cfg)
		}
		return NewApp(Deps{
			Config:   cfg,
			Auth:     &fakeAuthorizer{},
			Catalogs: func(*oauth2.Token) TokenCatalog { return &fakeCatalog{} },
			Rooms:    newRoomService(t),
			Sessions: newSessions(t),
		})
	}

	t.Run("Health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newApp(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
			t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("Routes", func(t *testing.T) {
		routes := strings.Join(newApp(t, nil).Routes(), "\n")
		for _, want := range []string{"GET /healthz", "/login", "/api/me/top", "/group/publish", "/galaxy/snapshot.svg", "GET /"} {
			if !strings.Contains(routes, want) {
				t.Errorf("expected route %q in %s", want, routes)
			}
		}
	})

	t.Run("Index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newApp(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		var body map[string]any
		decodeBody(t, rec, &body)
		if body["authenticated"] != false {
			t.Errorf("expected unauthenticated index, got %v", body)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newApp(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "not_found") {
			t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("CORS Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/group/publish", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)

		rec := httptest.NewRecorder()
		newApp(t, nil).ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
			t.Errorf("expected allowed origin, got headers %v", rec.Header())
		}
		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected credentials to be allowed")
		}
	})

	t.Run("CORS Unknown Origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set("Origin", "http://evil.example")

		rec := httptest.NewRecorder()
		newApp(t, nil).ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Errorf("expected no allow origin header, got %s", rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("Rate Limit", func(t *testing.T) {
		app := newApp(t, func(c *shared.Config) {
			c.Server.RateLimit = 0.001
			c.Server.RateBurst = 2
		})

		codes := make([]int, 3)
		for i := range codes {
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			codes[i] = rec.Code
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected two allowed then 429, got %v", codes)
		}
	})

	t.Run("Rate Limit Ignores Forwarded Headers", func(t *testing.T) {
		app := newApp(t, func(c *shared.Config) {
			c.Server.RateLimit = 0.001
			c.Server.RateBurst = 1
		})

		allowed := 0
		for i := range 50 {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.RemoteAddr = "192.0.2.7:4000"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
			req.Header.Set("X-Real-IP", fmt.Sprintf("10.1.0.%d", i))
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, req)
			if rec.Code == http.StatusOK {
				allowed++
			}
		}
		if allowed != 1 {
			t.Errorf("expected one request from a single peer, got %d", allowed)
		}
	})

	t.Run("Trusted Proxy Uses Forwarded Address", func(t *testing.T) {
		app := newApp(t, func(c *shared.Config) {
			c.Server.RateLimit = 0.001
			c.Server.RateBurst = 1
			c.Server.TrustProxy = true
		})

		allowed := 0
		for _, client := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"} {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.RemoteAddr = "192.0.2.7:4000"
			req.Header.Set("X-Real-IP", client)
			rec := httptest.NewRecorder()
			app.ServeHTTP(rec, req)
			if rec.Code == http.StatusOK {
				allowed++
			}
		}
		if allowed != 2 {
			t.Errorf("expected one request per forwarded client, got %d", allowed)
		}
	})

	t.Run("Without Sessions", func(t *testing.T) {
		app := NewApp(Deps{Rooms: newRoomService(t)})
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected login to be absent, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover", func(t *testing.T) {
		r := NewMuxRouter()
		r.Use(Recover())
		r.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("Mux Method Not Allowed", func(t *testing.T) {
		r := NewMuxRouter()
		r.Handle(http.MethodGet, "/only-get", HealthHandler())

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/only-get", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Rate Limiter Per Client", func(t *testing.T) {
		l := NewRateLimiter(0.001, 1)
		if !l.Allow("a") || l.Allow("a") {
			t.Error("expected one request per client")
		}
		if !l.Allow("b") {
			t.Error("expected a separate bucket for another client")
		}
	})

	t.Run("Rate Limiter Evicts Idle Clients", func(t *testing.T) {
		clock := tu.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
		l := NewRateLimiter(1, 1).WithClock(clock.Now, time.Minute)

		for i := range 100 {
			l.Allow(fmt.Sprintf("client-%d", i))
		}
		if l.Len() != 100 {
			t.Fatalf("expected 100 buckets, got %d", l.Len())
		}

		clock.Advance(30 * time.Second)
		l.Allow("client-0")
		clock.Advance(30 * time.Second)
		if removed := l.Sweep(); removed != 99 {
			t.Errorf("expected 99 idle buckets removed, got %d", removed)
		}

		clock.Advance(2 * time.Minute)
		l.Allow("fresh")
		if l.Len() != 1 {
			t.Errorf("expected idle buckets to be evicted on a later call, got %d", l.Len())
		}
	})

	t.Run("Client Address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		if clientAddr(req) != "10.0.0.1" {
			t.Errorf("expected host only, got %s", clientAddr(req))
		}
		req.RemoteAddr = "weird"
		if clientAddr(req) != "weird" {
			t.Errorf("expected raw address, got %s", clientAddr(req))
		}
	})

	t.Run("Basic Router Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(tag("first"), tag("second"))
		r.Handle(http.MethodGet, "/x", HealthHandler())
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("expected first added to run first, got %v", order)
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	for name, tc := range map[string]struct {
		err    error
		status int
		code   string
	}{
		"no session":     {ErrNoSession, http.StatusUnauthorized, "not_authenticated"},
		"refresh":        {fmt.Errorf("x: %w", shared.ErrRefreshFailed), http.StatusUnauthorized, "not_authenticated"},
		"invalid input":  {shared.ErrInvalidInput, http.StatusBadRequest, "bad_request"},
		"capacity":       {shared.ErrCodeSpaceExhausted, http.StatusServiceUnavailable, "unable_to_allocate_code"},
		"unavailable":    {shared.ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		"upstream 429":   {&shared.UpstreamError{StatusCode: 429}, http.StatusTooManyRequests, "upstream_rate_limited"},
		"upstream 503":   {&shared.UpstreamError{StatusCode: 503}, http.StatusBadGateway, "upstream_error"},
		"upstream plain": {shared.ErrUpstream, http.StatusBadGateway, "upstream_error"},
		"unknown":        {errors.New("boom"), http.StatusInternalServerError, "server_error"},
	} {
		status, code := StatusFor(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("%s: expected %d %s, got %d %s", name, tc.status, tc.code, status, code)
		}
	}
}

func TestOAuthHandler(t *testing.T) {
	t.Run("AuthURL Uses Attempt State", func(t *testing.T) {
		auth := &fakeAuthorizer{}
		h := NewOAuthHandler(auth, "http://127.0.0.1:3000/callback")
		h.AuthURL()

		if auth.state != h.state || auth.verifier != h.verifier || auth.redirect != "http://127.0.0.1:3000/callback" {
			t.Errorf("unexpected authorize call %+v", auth)
		}
	})

	t.Run("Success", func(t *testing.T) {
		auth := &fakeAuthorizer{token: &oauth2.Token{AccessToken: "a", RefreshToken: "r"}}
		h := NewOAuthHandler(auth, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+h.state, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		token, err := h.Wait(context.Background())
		if err != nil || token.AccessToken != "a" {
			t.Errorf("unexpected result %v %v", token, err)
		}
		if auth.verifier != h.verifier {
			t.Error("expected the attempt's verifier to be exchanged")
		}
	})

	t.Run("State Mismatch", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthorizer{}, "")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=c&state=wrong", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if _, err := h.Wait(context.Background()); !errors.Is(err, shared.ErrStateMismatch) {
			t.Errorf("expected ErrStateMismatch, got %v", err)
		}
	})

	t.Run("Denied", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthorizer{}, "")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&state="+h.state, nil))
		if _, err := h.Wait(context.Background()); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Single Callback", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthorizer{token: &oauth2.Token{AccessToken: "a"}}, "")
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+h.state, nil))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+h.state, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})

	t.Run("Wait Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := NewOAuthHandler(&fakeAuthorizer{}, "").Wait(ctx); !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})
}

func TestServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(ln.Addr().String(), HealthHandler(), nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
