package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marcopiovanello/ytdl-eta/server/internal/source"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Archive  ArchiveConfig  `yaml:"archive" mapstructure:"archive"`
	path     string
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`
}

type PathsConfig struct {
	DownloadPath   string `yaml:"download_path" mapstructure:"download_path"`
	DownloaderPath string `yaml:"downloader_path" mapstructure:"downloader_path"`
	FrontendPath   string `yaml:"frontend_path" mapstructure:"frontend_path"`
}

// DownloadConfig sizes are human readable, e.g. "1MiB" or "500kB".
type DownloadConfig struct {
	ChunkSize string `yaml:"chunk_size" mapstructure:"chunk_size"`
	RateLimit string `yaml:"rate_limit" mapstructure:"rate_limit"`
	ShowPlots bool   `yaml:"show_plots" mapstructure:"show_plots"`
}

type SourceConfig struct {
	// Backend is either "youtube" or "ytdlp".
	Backend   string        `yaml:"backend" mapstructure:"backend"`
	CacheSize int           `yaml:"cache_size" mapstructure:"cache_size"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path" mapstructure:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging" mapstructure:"enable_file_logging"`
	Level             string `yaml:"level" mapstructure:"level"`
}

// ArchiveConfig is disabled when BucketURL is empty.
type ArchiveConfig struct {
	BucketURL   string `yaml:"bucket_url" mapstructure:"bucket_url"`
	RemoveLocal bool   `yaml:"remove_local" mapstructure:"remove_local"`
}

var ErrInvalidConfig = errors.New("invalid config")

var (
	instance     *Config
	instanceOnce sync.Once
)

func Instance() *Config {
	if instance == nil {
		instanceOnce.Do(func() {
			instance = &Config{}
		})
	}
	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3033)
	v.SetDefault("paths.download_path", ".")
	v.SetDefault("paths.downloader_path", "yt-dlp")
	v.SetDefault("paths.frontend_path", "")
	v.SetDefault("download.chunk_size", "1MiB")
	v.SetDefault("download.rate_limit", "0")
	v.SetDefault("download.show_plots", false)
	v.SetDefault("source.backend", source.BackendYouTube)
	v.SetDefault("source.cache_size", 64)
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("logging.log_path", "ytdl-eta.log")
	v.SetDefault("logging.enable_file_logging", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("archive.bucket_url", "")
	v.SetDefault("archive.remove_local", false)
}

// Load reads the YAML file at path into the shared instance. A missing file
// leaves the defaults in place. Every key can be overridden from the
// environment, e.g. APP_SERVER_PORT=8080.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		slog.Debug("config file not found, using defaults", slog.String("path", path))
	}

	cfg := Instance()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := c.ChunkBytes(); err != nil {
		return err
	}
	if _, err := c.RateLimitBytes(); err != nil {
		return err
	}
	switch c.Source.Backend {
	case source.BackendYouTube, source.BackendYtDlp:
	default:
		return fmt.Errorf("%w: unknown source backend %q", ErrInvalidConfig, c.Source.Backend)
	}
	return nil
}

func (c *Config) ChunkBytes() (int, error) {
	n, err := humanize.ParseBytes(c.Download.ChunkSize)
	if err != nil {
		return 0, fmt.Errorf("%w: chunk_size: %w", ErrInvalidConfig, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: chunk_size must be positive", ErrInvalidConfig)
	}
	return int(n), nil
}

// RateLimitBytes is the bandwidth cap in bytes per second, 0 for none.
func (c *Config) RateLimitBytes() (int64, error) {
	if c.Download.RateLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Download.RateLimit)
	if err != nil {
		return 0, fmt.Errorf("%w: rate_limit: %w", ErrInvalidConfig, err)
	}
	return int64(n), nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Path of the directory containing the config file
func (c *Config) Dir() string { return filepath.Dir(c.path) }

// Absolute path of the config file
func (c *Config) Path() string { return c.path }
