package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/marcoskaiky/streamlitIndicatorSoccer/internal/db"
	"github.com/spf13/viper"
)

var (
	ErrConfigRead    = errors.New("failed to read config file")
	ErrConfigInvalid = errors.New("invalid configuration")
)

const (
	AppName           = "statsboard"
	DefaultConfigName = "statsboard"
	DefaultDBName     = "statsboard.db"
	EnvPrefix         = "statsboard"
	DefaultTopN       = 10
	MaxTopN           = 100
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig describes where player statistics are read from. DSN wins
// over the discrete Postgres settings; Path is only used by the sqlite driver.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

// RedisConfig holds Redis connection configuration. An empty URL disables
// the shared snapshot and refresh propagation.
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	Password    string        `mapstructure:"password"`
	SnapshotKey string        `mapstructure:"snapshot_key"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// StreamConfig names the refresh event stream
type StreamConfig struct {
	Refresh string `mapstructure:"refresh"`
}

// DashboardConfig holds presentation defaults
type DashboardConfig struct {
	TopN int `mapstructure:"top_n"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// Loader sets up viper with defaults, the optional config file and the environment.
type Loader struct {
	*viper.Viper
}

// NewLoader creates a loader. configFile may be empty, in which case
// statsboard.yaml is searched in the working directory and the XDG config home.
func NewLoader(configFile string) *Loader {
	loader := Loader{Viper: viper.New()}
	loader.SetDefault("server.addr", ":8080")
	loader.SetDefault("server.cors_origins", []string{"*"})
	loader.SetDefault("database.driver", db.DriverPostgres)
	loader.SetDefault("database.dsn", "")
	loader.SetDefault("database.host", "localhost")
	loader.SetDefault("database.port", "5432")
	loader.SetDefault("database.name", "futebol")
	loader.SetDefault("database.user", "postgres")
	loader.SetDefault("database.password", "")
	loader.SetDefault("database.sslmode", "disable")
	loader.SetDefault("database.path", DefaultDBPath())
	loader.SetDefault("redis.url", "")
	loader.SetDefault("redis.password", "")
	loader.SetDefault("redis.snapshot_key", "stats:snapshot")
	loader.SetDefault("redis.snapshot_ttl", time.Hour)
	loader.SetDefault("stream.refresh", "stats.refreshed")
	loader.SetDefault("dashboard.top_n", DefaultTopN)
	loader.SetDefault("log.level", "info")

	if configFile != "" {
		loader.SetConfigFile(configFile)
	} else {
		loader.SetConfigName(DefaultConfigName)
		loader.SetConfigType("yaml")
		loader.AddConfigPath(".")
		loader.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))
	}

	loader.SetEnvPrefix(EnvPrefix)
	loader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	loader.AutomaticEnv()

	// Plain variable names used by existing deployments
	loader.bindEnv("database.host", "DB_HOST")
	loader.bindEnv("database.port", "DB_PORT")
	loader.bindEnv("database.name", "DB_NAME")
	loader.bindEnv("database.user", "DB_USER")
	loader.bindEnv("database.password", "DB_PASSWORD")
	loader.bindEnv("database.sslmode", "DB_SSLMODE")
	loader.bindEnv("redis.url", "REDIS_URL")
	loader.bindEnv("redis.password", "REDIS_PASSWORD")
	loader.bindEnv("server.addr", "SERVER_ADDR")

	return &loader
}

// bindEnv binds key to its prefixed variable first and the plain name second
func (cl *Loader) bindEnv(key, plain string) {
	prefixed := strings.ToUpper(EnvPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
	if err := cl.BindEnv(key, prefixed, plain); err != nil {
		slog.Warn("Failed to bind env", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Read loads .env, the config file when present and the environment, then validates the result.
func (cl *Loader) Read() (Config, error) {
	if errDotEnv := godotenv.Load(); errDotEnv != nil {
		slog.Debug("Could not load .env file", slog.String("error", errDotEnv.Error()))
	}

	if err := cl.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return Config{}, errors.Join(err, ErrConfigRead)
		}
	}

	var config Config
	if err := cl.Unmarshal(&config); err != nil {
		return Config{}, errors.Join(err, ErrConfigRead)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Path returns the config file in use, if any
func (cl *Loader) Path() string {
	return cl.ConfigFileUsed()
}

// Validate checks settings that would otherwise fail late at runtime
func (c Config) Validate() error {
	switch c.Database.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrConfigInvalid, c.Database.Driver)
	}

	if c.Dashboard.TopN <= 0 || c.Dashboard.TopN > MaxTopN {
		return fmt.Errorf("%w: dashboard.top_n must be between 1 and %d", ErrConfigInvalid, MaxTopN)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return errors.Join(err, ErrConfigInvalid)
	}

	return nil
}

// ResolveDSN returns the connection string for the configured driver
func (d DatabaseConfig) ResolveDSN() string {
	if d.DSN != "" {
		return d.DSN
	}

	if d.Driver == db.DriverSQLite {
		return d.Path
	}

	return db.PostgresDSN(d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

// RedisEnabled reports whether a Redis server is configured
func (c Config) RedisEnabled() bool {
	return c.Redis.URL != ""
}

// DefaultDBPath is the sqlite database location under $XDG_DATA_HOME.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, AppName, DefaultDBName)
}

// EnsureDataDir creates the parent directory of a sqlite database path
func EnsureDataDir(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return errors.Join(err, ErrConfigInvalid)
	}

	return nil
}

// ParseLevel converts a level name such as "debug" into a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

// LoggerInit sets up the slog global handler writing text records to w.
func LoggerInit(w io.Writer, level slog.Level) {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))

	slog.SetDefault(logger)
}
