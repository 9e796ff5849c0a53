package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	User     UserConfig     `toml:"user"`
	Store    StoreConfig    `toml:"store"`
	Database DatabaseConfig `toml:"database"`
	Poll     PollConfig     `toml:"poll"`
	Dismiss  DismissConfig  `toml:"dismiss"`
	Health   HealthConfig   `toml:"health"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// APIConfig contains settings for the sync job backend.
type APIConfig struct {
	BaseURL           string        `toml:"base_url"`
	Token             string        `toml:"token"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	Timeout           time.Duration `toml:"timeout"`
}

// UserConfig identifies the session's user to the backend.
type UserConfig struct {
	ID string `toml:"id"`
}

// StoreConfig selects and tunes the durable key/value store.
//
// When RedisURL is set and reachable the shared Redis backend is used, otherwise the local SQLite file.
type StoreConfig struct {
	RedisURL      string        `toml:"redis_url"`
	DataDir       string        `toml:"data_dir"`
	Debounce      time.Duration `toml:"debounce"`
	EchoWindow    time.Duration `toml:"echo_window"`
	WatchInterval time.Duration `toml:"watch_interval"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PollConfig tunes the job poller.
type PollConfig struct {
	Interval             time.Duration `toml:"interval"`
	ReviewPartialResults bool          `toml:"review_partial_results"`
	AdoptPending         bool          `toml:"adopt_pending"`
	EstimatePerTrack     time.Duration `toml:"estimate_per_track"`
}

// DismissConfig tunes the empty-result auto-dismiss window.
type DismissConfig struct {
	FadeAfter time.Duration `toml:"fade_after"`
	After     time.Duration `toml:"after"`
}

// HealthConfig tunes the backend health monitor.
type HealthConfig struct {
	Interval time.Duration `toml:"interval"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// MetricsConfig contains the local status server settings. An empty Addr disables the server.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

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

// Validate rejects timing combinations the client cannot run with.
func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%w: poll.interval must be positive", ErrInvalidConfig)
	}
	if c.Dismiss.After <= 0 || c.Dismiss.FadeAfter <= 0 {
		return fmt.Errorf("%w: dismiss timings must be positive", ErrInvalidConfig)
	}
	if c.Dismiss.FadeAfter > c.Dismiss.After {
		return fmt.Errorf("%w: dismiss.fade_after must not exceed dismiss.after", ErrInvalidConfig)
	}
	if c.Store.Debounce < 0 || c.Store.EchoWindow < 0 {
		return fmt.Errorf("%w: store timings must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Environment overrides, loaded after the config file.
const (
	EnvAPIURL   = "JOBSYNC_API_URL"
	EnvAPIToken = "JOBSYNC_API_TOKEN"
	EnvUserID   = "JOBSYNC_USER_ID"
	EnvRedisURL = "JOBSYNC_REDIS_URL"
	EnvLogLevel = "JOBSYNC_LOG_LEVEL"
)

// ApplyEnv loads .env files (missing files are ignored) and overrides config values from JOBSYNC_* variables.
func (c *Config) ApplyEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	for env, target := range map[string]*string{
		EnvAPIURL:   &c.API.BaseURL,
		EnvAPIToken: &c.API.Token,
		EnvUserID:   &c.User.ID,
		EnvRedisURL: &c.Store.RedisURL,
		EnvLogLevel: &c.Log.Level,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*target = v
		}
	}
}
