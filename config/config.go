package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediagrab/downloader"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Environment variable names
const (
	EnvConfigFile       = "MEDIAGRAB_CONFIG"
	EnvDownloadDir      = "MEDIAGRAB_DOWNLOAD_DIR"
	EnvPlatform         = "MEDIAGRAB_PLATFORM"
	EnvMediaType        = "MEDIAGRAB_MEDIA_TYPE"
	EnvHistoryDB        = "MEDIAGRAB_HISTORY_DB"
	EnvProgressInterval = "MEDIAGRAB_PROGRESS_INTERVAL"
	EnvLogLevel         = "LOG_LEVEL"
	EnvLogFormat        = "LOG_FORMAT"
	EnvYtdlpPath        = "YTDLP_PATH"
	EnvYtdlpArgs        = "YTDLP_ARGS"
	EnvFlatPlaylist     = "YTDLP_FLAT_PLAYLIST"
)

// Defaults
const (
	DefaultConfigPath       = "~/.config/mediagrab/config.toml"
	DefaultDownloadDir      = "~/Videos"
	DefaultHistoryDB        = "~/.local/share/mediagrab/history.db"
	DefaultLogLevel         = "INFO"
	DefaultLogFormat        = "console"
	DefaultYtdlpPath        = "yt-dlp"
	DefaultProgressInterval = 500 * time.Millisecond
)

// Config holds the effective settings of the application
type Config struct {
	DownloadDir      string        // Destination folder for downloads
	Platform         string        // Default platform (default, bandcamp)
	MediaType        string        // Default media type (video, audio)
	LogLevel         string        // Logging level (DEBUG, INFO, WARN, ERROR)
	LogFormat        string        // console or json
	YtdlpPath        string        // yt-dlp executable
	YtdlpArgs        []string      // Extra arguments passed to every yt-dlp run
	FlatPlaylist     bool          // Resolve playlists without per-entry extraction
	HistoryDB        string        // Job history database; empty disables history
	ProgressInterval time.Duration // Progress bar refresh interval

	// Source is the config file that was read, if any
	Source string
}

// fileConfig mirrors the TOML layout; nil fields were not set in the file
type fileConfig struct {
	DownloadDir      *string  `toml:"download_dir"`
	Platform         *string  `toml:"platform"`
	MediaType        *string  `toml:"media_type"`
	HistoryDB        *string  `toml:"history_db"`
	ProgressInterval *string  `toml:"progress_interval"`
	Logging          struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"logging"`
	Ytdlp struct {
		Path         *string  `toml:"path"`
		Args         []string `toml:"args"`
		FlatPlaylist *bool    `toml:"flat_playlist"`
	} `toml:"ytdlp"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DownloadDir:      DefaultDownloadDir,
		Platform:         downloader.PlatformDefault.String(),
		MediaType:        downloader.MediaVideo.String(),
		LogLevel:         DefaultLogLevel,
		LogFormat:        DefaultLogFormat,
		YtdlpPath:        DefaultYtdlpPath,
		HistoryDB:        DefaultHistoryDB,
		ProgressInterval: DefaultProgressInterval,
	}
}

// LoadConfig loads configuration from .env, the config file named by
// MEDIAGRAB_CONFIG (or the default location) and the environment
func LoadConfig() (*Config, error) {
	LoadDotEnv()
	return Load(os.Getenv(EnvConfigFile))
}

// LoadDotEnv loads a .env file from the working directory if it exists.
// Variables already set in the environment are not overridden.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: .env file could not be loaded: %v", err)
	}
}

// Load builds the configuration from defaults, the TOML file at path and the
// environment, in increasing precedence. An empty path selects the default
// location; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyFile(resolved, explicit); err != nil {
		return nil, err
	}

	validator := NewEnvValidator()
	if err := validator.ValidateFormats(); err != nil {
		return nil, fmt.Errorf("environment validation failed: %w", err)
	}
	cfg.applyEnv(validator)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string, explicit bool) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	if err := toml.NewDecoder(file).Decode(&fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.DownloadDir, fc.DownloadDir)
	setString(&c.Platform, fc.Platform)
	setString(&c.MediaType, fc.MediaType)
	setString(&c.HistoryDB, fc.HistoryDB)
	setString(&c.LogLevel, fc.Logging.Level)
	setString(&c.LogFormat, fc.Logging.Format)
	setString(&c.YtdlpPath, fc.Ytdlp.Path)
	if fc.Ytdlp.Args != nil {
		c.YtdlpArgs = fc.Ytdlp.Args
	}
	if fc.Ytdlp.FlatPlaylist != nil {
		c.FlatPlaylist = *fc.Ytdlp.FlatPlaylist
	}
	if fc.ProgressInterval != nil {
		d, err := time.ParseDuration(*fc.ProgressInterval)
		if err != nil {
			return fmt.Errorf("parse config %s: progress_interval: %w", path, err)
		}
		c.ProgressInterval = d
	}
	c.Source = path
	return nil
}

func (c *Config) applyEnv(v *EnvValidator) {
	if value := os.Getenv(EnvDownloadDir); value != "" {
		c.DownloadDir = value
	}
	if value := os.Getenv(EnvPlatform); value != "" {
		c.Platform = value
	}
	if value := os.Getenv(EnvMediaType); value != "" {
		c.MediaType = value
	}
	if value := os.Getenv(EnvLogLevel); value != "" {
		c.LogLevel = value
	}
	if value := os.Getenv(EnvLogFormat); value != "" {
		c.LogFormat = value
	}
	if value := os.Getenv(EnvYtdlpPath); value != "" {
		c.YtdlpPath = value
	}
	if value := os.Getenv(EnvYtdlpArgs); value != "" {
		c.YtdlpArgs = strings.Fields(value)
	}
	// an explicitly empty value disables history
	if value, ok := os.LookupEnv(EnvHistoryDB); ok {
		c.HistoryDB = value
	}
	if flat, ok := v.GetBool(EnvFlatPlaylist); ok {
		c.FlatPlaylist = flat
	}
	if interval, ok := v.GetDuration(EnvProgressInterval); ok {
		c.ProgressInterval = interval
	}
}

func (c *Config) normalize() error {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	c.MediaType = strings.ToLower(strings.TrimSpace(c.MediaType))
	c.YtdlpPath = strings.TrimSpace(c.YtdlpPath)

	var err error
	if c.DownloadDir, err = ExpandPath(strings.TrimSpace(c.DownloadDir)); err != nil {
		return err
	}
	if c.HistoryDB, err = ExpandPath(strings.TrimSpace(c.HistoryDB)); err != nil {
		return err
	}
	return nil
}

// Validate performs additional validation on the loaded configuration
func (c *Config) Validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}

	if c.YtdlpPath == "" {
		return fmt.Errorf("yt-dlp path cannot be empty")
	}

	if _, err := downloader.ParsePlatform(c.Platform); err != nil {
		return fmt.Errorf("invalid platform: %w", err)
	}

	if _, err := downloader.ParseMediaType(c.MediaType); err != nil {
		return fmt.Errorf("invalid media type: %w", err)
	}

	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive, got: %s", c.ProgressInterval)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"DEBUG": true,
		"INFO":  true,
		"WARN":  true,
		"ERROR": true,
	}

	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s. Valid levels are: DEBUG, INFO, WARN, ERROR", c.LogLevel)
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s. Valid formats are: console, json", c.LogFormat)
	}

	return nil
}

// DownloadPlatform returns the configured default platform
func (c *Config) DownloadPlatform() downloader.Platform {
	p, _ := downloader.ParsePlatform(c.Platform)
	return p
}

// DownloadMediaType returns the configured default media type
func (c *Config) DownloadMediaType() downloader.MediaType {
	m, _ := downloader.ParseMediaType(c.MediaType)
	return m
}

// HistoryEnabled reports whether job history is kept
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDB != ""
}

// ExpandPath resolves a leading ~ and makes the path absolute. Empty stays
// empty.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
