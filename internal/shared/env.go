package shared

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvSpotifyClientID     = "SPOTIFY_CLIENT_ID"
	EnvSpotifyClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvSessionSecret       = "COSMIC_SESSION_SECRET"
	EnvValkeyAddr          = "COSMIC_VALKEY_ADDR"
)

// LoadEnv loads variables from the given dotenv files (".env" when none are given).
// A missing file is not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	return godotenv.Load(present...)
}

// ApplyEnv overrides secrets in the config with values from the environment.
func (c *Config) ApplyEnv() {
	override(&c.Credentials.Spotify.ClientID, EnvSpotifyClientID)
	override(&c.Credentials.Spotify.ClientSecret, EnvSpotifyClientSecret)
	override(&c.Session.Secret, EnvSessionSecret)
	override(&c.Valkey.Address, EnvValkeyAddr)
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
