package config

import "time"

// Config is resolved once in main and handed down read-only.
// Request handlers never mutate it.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Paths    PathsConfig    `yaml:"paths"`
	Download DownloadConfig `yaml:"download"`
	Frontend FrontendConfig `yaml:"frontend"`
}

type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type LoggingConfig struct {
	LogPath           string `yaml:"log_path"`
	EnableFileLogging bool   `yaml:"enable_file_logging"`
}

type PathsConfig struct {
	// ExtractorPath takes priority over every other yt-dlp candidate when set.
	ExtractorPath string `yaml:"extractor_path"`
	// BinDir is where the bundled yt-dlp binary is expected.
	BinDir string `yaml:"bin_dir"`
}

type DownloadConfig struct {
	// RequestTimeout bounds each metadata fetch and, for streams,
	// the wait for the first byte.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type FrontendConfig struct {
	FrontendPath string `yaml:"frontend_path"`
}

// RequestTimeout with the documented default applied.
func (c *Config) RequestTimeout() time.Duration {
	if c.Download.RequestTimeout <= 0 {
		return time.Minute * 2
	}
	return c.Download.RequestTimeout
}
