package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the backend
type Config struct {
	// HTTP listener
	Server ServerConfig `yaml:"server" json:"server"`

	// Instagram client settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Download defaults and output location
	Download DownloadConfig `yaml:"download" json:"download"`

	// Session persistence
	Session SessionConfig `yaml:"session" json:"session"`

	// Run history
	History HistoryConfig `yaml:"history" json:"history"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds the HTTP listener configuration
type ServerConfig struct {
	Host          string        `yaml:"host" json:"host"`
	Port          int           `yaml:"port" json:"port"`
	Mode          string        `yaml:"mode" json:"mode"`
	ReadTimeout   time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" json:"write_timeout"`
	Notifications bool          `yaml:"notifications" json:"notifications"`
}

// Addr returns the host:port pair the server listens on
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	AppID             string        `yaml:"app_id" json:"app_id"`
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size" json:"burst_size"`
}

// DownloadConfig holds download defaults applied when a request omits a value
type DownloadConfig struct {
	BaseDirectory string        `yaml:"base_directory" json:"base_directory"`
	Limit         int           `yaml:"limit" json:"limit"`
	Delay         time.Duration `yaml:"delay" json:"delay"`
	Backoff       time.Duration `yaml:"backoff" json:"backoff"`
	StoriesLimit  int           `yaml:"stories_limit" json:"stories_limit"`
	WriteRunLog   bool          `yaml:"write_run_log" json:"write_run_log"`
}

// SessionConfig holds session persistence configuration
type SessionConfig struct {
	Directory  string   `yaml:"directory" json:"directory"`
	UseKeyring bool     `yaml:"use_keyring" json:"use_keyring"`
	Browsers   []string `yaml:"browsers" json:"browsers"`
}

// HistoryConfig selects where download runs are recorded
type HistoryConfig struct {
	Driver      string `yaml:"driver" json:"driver"`
	Path        string `yaml:"path" json:"path"`
	DatabaseURL string `yaml:"database_url" json:"database_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultBrowsers is the order browser cookie stores are tried in
var DefaultBrowsers = []string{"chrome", "edge", "firefox", "opera", "safari"}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         5000,
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // downloads can run for a long time
		},
		Instagram: InstagramConfig{
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AppID:             "936619743392459",
			BaseURL:           "https://www.instagram.com",
			Timeout:           30 * time.Second,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Download: DownloadConfig{
			BaseDirectory: filepath.Join(home, "Pictures", "IGStoryDownloader"),
			Limit:         5,
			Delay:         0,
			Backoff:       15 * time.Second,
			StoriesLimit:  50,
			WriteRunLog:   true,
		},
		Session: SessionConfig{
			Directory:  filepath.Join(home, ".config", "igbackend"),
			UseKeyring: true,
			Browsers:   append([]string(nil), DefaultBrowsers...),
		},
		History: HistoryConfig{
			Driver: "file",
			Path:   filepath.Join(home, ".config", "igbackend", "history.json"),
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if host := os.Getenv("IGBACKEND_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("IGBACKEND_PORT"); port != "" {
		val, err := strconv.Atoi(port)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGBACKEND_PORT: %w", err))
		} else {
			c.Server.Port = val
		}
	}
	if mode := os.Getenv("IGBACKEND_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if notify := os.Getenv("IGBACKEND_NOTIFICATIONS"); notify != "" {
		c.Server.Notifications = strings.ToLower(notify) == "true"
	}

	if userAgent := os.Getenv("IGBACKEND_USER_AGENT"); userAgent != "" {
		c.Instagram.UserAgent = userAgent
	}
	if baseURL := os.Getenv("IGBACKEND_INSTAGRAM_URL"); baseURL != "" {
		c.Instagram.BaseURL = baseURL
	}
	if rpm := os.Getenv("IGBACKEND_REQUESTS_PER_MINUTE"); rpm != "" {
		val, err := strconv.Atoi(rpm)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGBACKEND_REQUESTS_PER_MINUTE: %w", err))
		} else if val > 0 {
			c.Instagram.RequestsPerMinute = val
		}
	}

	if outputDir := os.Getenv("IGBACKEND_DOWNLOAD_DIR"); outputDir != "" {
		c.Download.BaseDirectory = outputDir
	}
	if backoff := os.Getenv("IGBACKEND_BACKOFF"); backoff != "" {
		d, err := parseSeconds(backoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("IGBACKEND_BACKOFF: %w", err))
		} else {
			c.Download.Backoff = d
		}
	}

	if sessionDir := os.Getenv("IGBACKEND_SESSION_DIR"); sessionDir != "" {
		c.Session.Directory = sessionDir
	}
	if keyring := os.Getenv("IGBACKEND_USE_KEYRING"); keyring != "" {
		c.Session.UseKeyring = strings.ToLower(keyring) == "true"
	}

	if driver := os.Getenv("IGBACKEND_HISTORY_DRIVER"); driver != "" {
		c.History.Driver = driver
	}
	if dsn := os.Getenv("IGBACKEND_DATABASE_URL"); dsn != "" {
		c.History.DatabaseURL = dsn
	}

	if logLevel := os.Getenv("IGBACKEND_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("IGBACKEND_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return errors.Join(errs...)
}

// parseSeconds accepts either a Go duration ("15s") or a bare number of seconds
func parseSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".igbackend.yaml",
		".igbackend.yml",
		filepath.Join(home, ".config", "igbackend", "config.yaml"),
		filepath.Join(home, ".config", "igbackend", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultPath is where `config init` writes a fresh file
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "igbackend", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		errs = append(errs, fmt.Errorf("invalid server mode %q", c.Server.Mode))
	}

	if c.Instagram.BaseURL == "" {
		errs = append(errs, errors.New("instagram base url is required"))
	}
	if c.Instagram.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Instagram.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.Instagram.Timeout <= 0 {
		errs = append(errs, errors.New("instagram timeout must be positive"))
	}

	if c.Download.BaseDirectory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.Limit < 0 {
		errs = append(errs, errors.New("download limit cannot be negative"))
	}
	if c.Download.Delay < 0 || c.Download.Backoff < 0 {
		errs = append(errs, errors.New("delay and backoff cannot be negative"))
	}
	if c.Download.StoriesLimit < 0 {
		errs = append(errs, errors.New("stories limit cannot be negative"))
	}

	if c.Session.Directory == "" {
		errs = append(errs, errors.New("session directory is required"))
	}

	switch c.History.Driver {
	case "none", "":
	case "file":
		if c.History.Path == "" {
			errs = append(errs, errors.New("history path is required for the file driver"))
		}
	case "postgres":
		if c.History.DatabaseURL == "" {
			errs = append(errs, errors.New("database url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid history driver %q", c.History.Driver))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Keys match the cobra flag names; zero values are ignored.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if host, ok := flags["host"].(string); ok && host != "" {
		c.Server.Host = host
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if outputDir, ok := flags["download-dir"].(string); ok && outputDir != "" {
		c.Download.BaseDirectory = outputDir
	}
	if driver, ok := flags["history"].(string); ok && driver != "" {
		c.History.Driver = driver
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// .env files never override variables already set in the environment
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".igbackend.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
