package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ConfigFilename is the YAML file read from the home directory.
const ConfigFilename = "config.yaml"

// LogConfig selects the logger level and output format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string `yaml:"-"` // config directory, e.g. $HOME/.secura
	Passphrase string `yaml:"-"` // seals the identity when non-empty; never written

	Username     string `yaml:"username"`
	ServerURL    string `yaml:"server"`    // message hub, e.g. ws://127.0.0.1:8080/chat
	DirectoryURL string `yaml:"directory"` // key directory, e.g. http://127.0.0.1:8080

	HTTPTimeout          time.Duration `yaml:"http_timeout"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HistoryWorkers       int           `yaml:"history_workers"`
	NotificationCapacity int           `yaml:"notification_capacity"`

	Log LogConfig `yaml:"log"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig(home string) Config {
	return Config{
		Home:                 home,
		ServerURL:            "ws://127.0.0.1:8080/chat",
		DirectoryURL:         "http://127.0.0.1:8080",
		HTTPTimeout:          10 * time.Second,
		ReconnectDelay:       8 * time.Second,
		MaxReconnectAttempts: 5,
		HistoryWorkers:       4,
		NotificationCapacity: 64,
		Log:                  LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultHome returns $HOME/.secura.
func DefaultHome() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".secura"), nil
}

// LoadConfig reads <home>/config.yaml over the defaults. A missing file is
// not an error.
func LoadConfig(home string) (Config, error) {
	cfg := DefaultConfig(home)
	b, err := os.ReadFile(filepath.Join(home, ConfigFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", ConfigFilename, err)
	}
	cfg.Home = home
	return cfg, nil
}

// Save writes the persistent fields to <home>/config.yaml.
func (c Config) Save() error {
	if err := os.MkdirAll(c.Home, 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Home, ConfigFilename), b, 0o600)
}

// Validate reports configuration that cannot be wired.
func (c Config) Validate() error {
	switch {
	case c.Home == "":
		return errors.New("config: home directory not set")
	case c.MaxReconnectAttempts < 0:
		return errors.New("config: max_reconnect_attempts must not be negative")
	case c.HistoryWorkers < 0:
		return errors.New("config: history_workers must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Logger builds the logger described by c.Log.
func (c Config) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	switch c.Log.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return log, nil
}
