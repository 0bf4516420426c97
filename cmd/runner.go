package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/cosmic/internal/device"
	"github.com/desertthunder/cosmic/internal/repositories"
	"github.com/desertthunder/cosmic/internal/rooms"
	"github.com/desertthunder/cosmic/internal/services"
	"github.com/desertthunder/cosmic/internal/shared"
)

// Room backends accepted in the rooms.backend setting.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	preloaded  bool
	spotify    *services.SpotifyService
	catalog    services.Catalog
	rooms      services.RoomClient
	devices    device.Provider
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// Catalog replaces the Spotify catalog built from the config.
	Catalog services.Catalog
	// Rooms replaces the group client chosen from the command flags.
	Rooms      services.RoomClient
	Devices    device.Provider
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	preloaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		preloaded:  preloaded,
		catalog:    opts.Catalog,
		rooms:      opts.Rooms,
		devices:    opts.Devices,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, spotifyCommand, topCommand, groupCommand, galaxyCommand, snapshotCommand, statsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and the services it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Before loads the configuration named by --config (falling back to the defaults) and applies
// the global flags.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if err := shared.LoadEnv(); err != nil {
		r.logger.Warn("failed to load .env", "error", err)
	}
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.preloaded {
		return ctx, nil
	}

	config, err := r.loadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// loadConfig reads path, or returns the defaults (with environment overrides) when it is missing.
func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if path == "" {
		config := shared.DefaultConfig()
		config.ApplyEnv()
		return config, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("config file not found, using defaults", "path", path)
		config := shared.DefaultConfig()
		config.ApplyEnv()
		return config, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
	}
	return config, nil
}

// spotifyService builds the Spotify client from the credentials once.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}
	srv, err := services.NewSpotifyService(
		r.config.Credentials.Spotify,
		services.WithHTTPClient(r.httpClient),
		services.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	r.spotify = srv
	return srv, nil
}

// Catalog returns the catalog for the saved Spotify token. Refreshed tokens are written back to
// the config file.
func (r *Runner) Catalog() (services.Catalog, error) {
	if r.catalog != nil {
		return r.catalog, nil
	}

	token := r.config.Credentials.Spotify.Token()
	if token == nil {
		return nil, fmt.Errorf("%w: run 'cosmic spotify auth' first", shared.ErrNotAuthenticated)
	}
	srv, err := r.spotifyService()
	if err != nil {
		return nil, err
	}
	srv.Authenticate(token)
	srv.SetTokenRefreshCallback(r.saveToken)

	r.catalog = srv
	return srv, nil
}

// saveToken stores token in the config and persists it when a config file is in use.
func (r *Runner) saveToken(token *oauth2.Token) {
	r.config.Credentials.Spotify.SetToken(token)
	if r.configPath == "" {
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed token", "error", err)
		return
	}
	r.logger.Debug("token saved", "path", r.configPath, "expiry", token.Expiry)
}

// openStore builds the room store for the configured backend. The returned func releases it.
func (r *Runner) openStore() (rooms.Store, func(), error) {
	ttl := r.config.Rooms.TTL.Duration

	switch r.config.Rooms.Backend {
	case "", BackendMemory:
		return rooms.NewMemoryStore(ttl, time.Now), func() {}, nil
	case BackendSQLite:
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return repositories.NewRoomRepository(db, ttl, time.Now), func() { db.Close() }, nil
	case BackendValkey:
		store, err := rooms.NewValkeyStore(r.config.Valkey, ttl, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown rooms backend %q", shared.ErrInvalidConfig, r.config.Rooms.Backend)
	}
}

// roomService wraps the configured store in a room service.
func (r *Runner) roomService() (*rooms.Service, rooms.Store, func(), error) {
	store, release, err := r.openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	return rooms.NewService(store, rooms.SettingsFrom(r.config.Rooms), r.logger), store, release, nil
}

// roomClient returns the group API for a command: the in-process store with --local, otherwise
// the server at --server (or server.base_url).
func (r *Runner) roomClient(cmd *cli.Command) (services.RoomClient, func(), error) {
	if r.rooms != nil {
		return r.rooms, func() {}, nil
	}
	if cmd.Bool("local") {
		svc, _, release, err := r.roomService()
		if err != nil {
			return nil, nil, err
		}
		return services.NewLocalRooms(svc), release, nil
	}

	base := cmd.String("server")
	if base == "" {
		base = r.config.Server.BaseURL
	}
	return services.NewGroupClient(base, r.httpClient), func() {}, nil
}

// deviceID returns this device's member id: from the database with the sqlite backend, from a
// file in the config directory otherwise.
func (r *Runner) deviceID() (string, error) {
	if r.devices != nil {
		return r.devices.ID()
	}

	if r.config.Rooms.Backend == BackendSQLite {
		db, err := shared.OpenDatabase(r.config.Database)
		if err != nil {
			return "", fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		return r.storedDeviceID(db)
	}

	dir, err := shared.ConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return device.NewFileProvider(dir).ID()
}

func (r *Runner) storedDeviceID(db *sql.DB) (string, error) {
	return device.NewStoreProvider(repositories.NewDeviceRepository(db), deviceName()).ID()
}

// deviceName keys this machine's row in the devices table.
func deviceName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "default"
	}
	return name
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
