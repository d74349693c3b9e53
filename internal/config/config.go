package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config struct is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Sessions SessionsConfig `mapstructure:"sessions"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
	// AdminKeyHash is the bcrypt hash of the key accepted on /admin routes.
	// An empty hash disables the admin routes.
	AdminKeyHash   string `mapstructure:"admin_key_hash"`
	RateLimit      int    `mapstructure:"rate_limit"`
	AssetDirectory string `mapstructure:"asset_directory"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	// Path is the sqlite database file, or ":memory:".
	Path string `mapstructure:"path"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// ProtocolConfig locates the trial protocol.
type ProtocolConfig struct {
	Path string `mapstructure:"path"`
}

// SessionsConfig controls in-memory session bookkeeping.
type SessionsConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

func (s SessionsConfig) validate() error {
	if s.SweepInterval <= 0 {
		return fmt.Errorf("sessions.sweep_interval must be positive, got %s", s.SweepInterval)
	}
	if s.Retention < 0 {
		return fmt.Errorf("sessions.retention must not be negative, got %s", s.Retention)
	}
	return nil
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port)
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "change-me")
	v.SetDefault("server.secure_cookies", false)
	v.SetDefault("server.admin_key_hash", "")
	v.SetDefault("server.rate_limit", 10) // session starts per minute per client
	v.SetDefault("server.asset_directory", "assets")

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "kbtrial-db")
	v.SetDefault("database.path", "kbtrial.sqlite3")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs

	v.SetDefault("protocol.path", "config/protocol.yaml")

	v.SetDefault("sessions.retention", "30m")
	v.SetDefault("sessions.sweep_interval", "1m")
}

// Store holds the live configuration and swaps it on file changes.
type Store struct {
	mu  sync.RWMutex
	cur *Config
	v   *viper.Viper
}

// Get returns the current configuration.
func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

func (s *Store) reload() error {
	var next Config
	if err := s.v.Unmarshal(&next); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := next.Sessions.validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	s.mu.Lock()
	s.cur = &next
	s.mu.Unlock()
	return nil
}

// Load reads the configuration from <projectRoot>/config/config.yaml, the
// environment (KBTRIAL_ prefix) and an optional <projectRoot>/.env file.
func Load(projectRoot string) (*Store, error) {
	// A missing .env is fine; anything else is a broken file.
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("KBTRIAL") // e.g., KBTRIAL_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	s := &Store{v: v}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch reloads the configuration whenever the config file changes and
// passes the new configuration to onChange.
func (s *Store) Watch(log *zap.Logger, onChange ...func(*Config)) {
	if s.v.ConfigFileUsed() == "" {
		return
	}
	s.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		if err := s.reload(); err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		cfg := s.Get()
		for _, fn := range onChange {
			fn(cfg)
		}
	})
	s.v.WatchConfig()
}
