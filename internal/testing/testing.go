// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cosmic/internal/models"
)

// MockCatalog is a test double for [services.Catalog]
type MockCatalog struct {
	mu      sync.Mutex
	Artists []models.ArtistRecord
	Err     error
	Calls   int
	Ranges  []models.TimeRange
}

func (m *MockCatalog) TopArtists(ctx context.Context, tr models.TimeRange, limit int) ([]models.ArtistRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Ranges = append(m.Ranges, tr)
	if m.Err != nil {
		return nil, m.Err
	}
	return models.CapArtists(m.Artists, limit), nil
}

func (m *MockCatalog) Name() string { return "mock" }

// CallCount returns the number of TopArtists calls.
func (m *MockCatalog) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockRoomClient is an in-memory test double for the group API.
type MockRoomClient struct {
	mu         sync.Mutex
	Members    map[string][]models.Member
	PublishErr error
	ReadErr    error
	Published  []models.Member
	// Hook runs at the start of every call; tests use it to block or cancel mid-iteration.
	Hook func(op string)
}

func NewMockRoomClient() *MockRoomClient {
	return &MockRoomClient{Members: make(map[string][]models.Member)}
}

func (m *MockRoomClient) hook(op string) {
	if m.Hook != nil {
		m.Hook(op)
	}
}

func (m *MockRoomClient) CreateRoom(ctx context.Context) (string, error) {
	m.hook("create")
	m.mu.Lock()
	defer m.mu.Unlock()
	code := "ABCDEF"
	if _, ok := m.Members[code]; !ok {
		m.Members[code] = nil
	}
	return code, nil
}

func (m *MockRoomClient) Publish(ctx context.Context, code string, member models.Member) (int, error) {
	m.hook("publish")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return 0, m.PublishErr
	}
	m.Published = append(m.Published, member)
	members := m.Members[code]
	for i, existing := range members {
		if existing.ID == member.ID {
			members[i] = member
			return len(members), nil
		}
	}
	m.Members[code] = append(members, member)
	return len(m.Members[code]), nil
}

func (m *MockRoomClient) Room(ctx context.Context, code, memberID string) (models.Room, error) {
	m.hook("read")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return models.Room{}, m.ReadErr
	}
	return models.Room{Code: code, Members: append([]models.Member(nil), m.Members[code]...)}, nil
}

// PublishCount returns how many publishes have succeeded.
func (m *MockRoomClient) PublishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ZeroReader yields zero bytes forever, making "random" choices deterministic.
type ZeroReader struct{}

func (ZeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// Fixture returns n artists sharing the "indie" tag so they form a connected graph.
func Fixture(n int) []models.ArtistRecord {
	out := make([]models.ArtistRecord, n)
	for i := range out {
		out[i] = models.ArtistRecord{
			ID:         "artist-" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			Name:       "Artist " + string(rune('A'+i%26)),
			Popularity: 50 + i%50,
			Genres:     []string{"indie", "genre " + string(rune('a'+i%26))},
		}
	}
	return out
}
