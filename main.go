package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/piratechad/media-grab/server"
	"github.com/piratechad/media-grab/server/config"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func loadConfig(configFile string) *config.Config {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("paths.extractor_path", "")
	v.SetDefault("paths.bin_dir", "bin")
	v.SetDefault("download.request_timeout", "120s")
	v.SetDefault("logging.log_path", "media-grab.log")
	v.SetDefault("logging.enable_file_logging", false)

	// Env binding
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	// Load YAML file if exists
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults")
	}

	cfg := &config.Config{}

	// the Config struct carries yaml tags, which viper does not decode by
	// default
	err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		slog.Error("failed to load config", "error", err)
	}

	return cfg
}

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	cfg := loadConfig(configFile)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	if err := server.Run(ctx, cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
