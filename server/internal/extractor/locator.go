package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/piratechad/media-grab/server/config"
)

const (
	probeTimeout  = time.Second * 12
	ffmpegTimeout = time.Second * 10
)

// Descriptor is the resolved yt-dlp invocation shared read-only by every
// request for the process lifetime.
type Descriptor struct {
	Command    string
	PrefixArgs []string
	Label      string
	Available  bool
}

// Tools bundles the resolved extractor with the ffmpeg availability flag.
// Detected once at startup, then passed to request handlers as-is.
type Tools struct {
	Extractor *Descriptor
	HasFFmpeg bool
}

type candidate struct {
	command    string
	prefixArgs []string
	label      string
}

// Detect resolves the extractor and probes for ffmpeg.
func Detect(cfg *config.Config) *Tools {
	t := &Tools{
		Extractor: Resolve(cfg),
		HasFFmpeg: commandWorks("ffmpeg", []string{"-version"}, ffmpegTimeout),
	}

	slog.Info("resolved media tools",
		slog.String("extractor", t.Extractor.Label),
		slog.Bool("available", t.Extractor.Available),
		slog.Bool("ffmpeg", t.HasFFmpeg),
	)

	return t
}

// Resolve probes the candidate invocations in priority order and returns the
// first one whose version check exits 0. When none works the highest-priority
// candidate is returned with Available=false so callers can fail fast with a
// descriptive error instead of spawning a subprocess that cannot exist.
func Resolve(cfg *config.Config) *Descriptor {
	cands := candidates(cfg)

	for _, c := range cands {
		if commandWorks(c.command, append(c.prefixArgs, "--version"), probeTimeout) {
			return &Descriptor{
				Command:    c.command,
				PrefixArgs: c.prefixArgs,
				Label:      c.label,
				Available:  true,
			}
		}
	}

	first := cands[0]

	return &Descriptor{
		Command:    first.command,
		PrefixArgs: first.prefixArgs,
		Label:      first.label,
		Available:  false,
	}
}

func candidates(cfg *config.Config) []candidate {
	binDir := cfg.Paths.BinDir
	if binDir == "" {
		binDir = "bin"
	}
	localPath := filepath.Join(binDir, "yt-dlp")

	overridePath := cfg.Paths.ExtractorPath
	if overridePath == "" {
		overridePath = localPath
	}

	return []candidate{
		{command: overridePath, label: fmt.Sprintf("extractor_path (%s)", overridePath)},
		{command: localPath, label: fmt.Sprintf("local yt-dlp (%s)", localPath)},
		{command: "yt-dlp", label: "yt-dlp"},
		// Launcher-wrapped forms cover installs where yt-dlp exists only
		// as a python module.
		{command: "python3", prefixArgs: []string{"-m", "yt_dlp"}, label: "python3 -m yt_dlp"},
		{command: "python", prefixArgs: []string{"-m", "yt_dlp"}, label: "python -m yt_dlp"},
	}
}

func commandWorks(command string, args []string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return exec.CommandContext(ctx, command, args...).Run() == nil
}
