package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Database    DatabaseConfig    `toml:"database"`
	Valkey      ValkeyConfig      `toml:"valkey"`
	Rooms       RoomsConfig       `toml:"rooms"`
	Group       GroupConfig       `toml:"group"`
	Galaxy      GalaxyConfig      `toml:"galaxy"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last token obtained by the CLI.
type SpotifyConfig struct {
	ClientID          string    `toml:"client_id"`
	ClientSecret      string    `toml:"client_secret"`
	RedirectURI       string    `toml:"redirect_uri"`
	Scopes            []string  `toml:"scopes"`
	RequestsPerSecond float64   `toml:"requests_per_second"`
	AccessToken       string    `toml:"access_token,omitempty"`
	RefreshToken      string    `toml:"refresh_token,omitempty"`
	Expiry            time.Time `toml:"expiry,omitempty"`
}

// Token returns the saved token, or nil when the CLI has not been authorized yet.
func (c SpotifyConfig) Token() *oauth2.Token {
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       c.Expiry,
	}
}

// SetToken stores t. A token without a refresh token keeps the one already saved.
func (c *SpotifyConfig) SetToken(t *oauth2.Token) {
	if t == nil {
		return
	}
	c.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		c.RefreshToken = t.RefreshToken
	}
	c.Expiry = t.Expiry
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	BaseURL        string   `toml:"base_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
	RateLimit      float64  `toml:"rate_limit"`
	RateBurst      int      `toml:"rate_burst"`
	// TrustProxy takes the client address from X-Forwarded-For and X-Real-IP.
	TrustProxy     bool     `toml:"trust_proxy"`
}

// Addr returns the host:port pair the server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionConfig controls the signed session cookie.
type SessionConfig struct {
	Secret     string   `toml:"secret"`
	CookieName string   `toml:"cookie_name"`
	MaxAge     Duration `toml:"max_age"`
	Secure     bool     `toml:"secure"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ValkeyConfig contains the key-value server connection settings.
type ValkeyConfig struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// RoomsConfig selects the room backend and its limits.
type RoomsConfig struct {
	Backend      string   `toml:"backend"`
	TTL          Duration `toml:"ttl"`
	CodeLength   int      `toml:"code_length"`
	CodeAttempts int      `toml:"code_attempts"`
	MemberCap    int      `toml:"member_cap"`
}

// GroupConfig controls the client polling loop.
type GroupConfig struct {
	PollInterval Duration `toml:"poll_interval"`
	TimeRange    string   `toml:"time_range"`
	TopLimit     int      `toml:"top_limit"`
}

// GalaxyConfig holds the tuning constants of the graph, simulation, render layer and camera.
type GalaxyConfig struct {
	EdgeThreshold     float64  `toml:"edge_threshold"`
	LinkDistance      float64  `toml:"link_distance"`
	LinkStrength      float64  `toml:"link_strength"`
	Charge            float64  `toml:"charge"`
	ChargeDistanceMax float64  `toml:"charge_distance_max"`
	Theta             float64  `toml:"theta"`
	AxisStrength      float64  `toml:"axis_strength"`
	DragAlphaTarget   float64  `toml:"drag_alpha_target"`
	AlphaMin          float64  `toml:"alpha_min"`
	AlphaDecay        float64  `toml:"alpha_decay"`
	VelocityDecay     float64  `toml:"velocity_decay"`
	StarCount         int      `toml:"star_count"`
	ShootingCooldown  Duration `toml:"shooting_cooldown"`
	ShootingChance    float64  `toml:"shooting_chance"`
	StarParallax      float64  `toml:"star_parallax"`
	ShooterParallax   float64  `toml:"shooter_parallax"`
	ZoomMin           float64  `toml:"zoom_min"`
	ZoomMax           float64  `toml:"zoom_max"`
	ZoomFactor        float64  `toml:"zoom_factor"`
	SnapshotTicks     int      `toml:"snapshot_ticks"`
}

// Duration is a [time.Duration] that decodes from strings such as "4h" or "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads the TOML file at path on top of the embedded defaults, then applies
// environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes the configuration back to path, replacing the file.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
