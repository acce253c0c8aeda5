package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/internal/sanitize"
)

// tempOutput is a transcoded file pending deletion. remove is idempotent:
// the response-close path and the read-end path may both trigger it.
type tempOutput struct {
	path string
	once sync.Once
}

func (t *tempOutput) remove() {
	t.once.Do(func() {
		if err := os.Remove(t.path); err != nil {
			slog.Debug("temp file already gone", slog.String("path", t.path))
		}
	})
}

// generateMP3 runs yt-dlp in audio-extraction mode against a private temp
// path. The whole transcode must finish within the timeout since no bytes
// reach the client until it does.
func (d *Dispatcher) generateMP3(r *http.Request, req Request) (*tempOutput, error) {
	dir := d.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	base := filepath.Join(dir, fmt.Sprintf("media-grab-%d-%s", time.Now().UnixMilli(), uuid.NewString()))
	target := base + ".mp3"

	args := append([]string{}, d.Tools.Extractor.PrefixArgs...)
	args = append(args, extractor.SiteArgs(req.SourceURL)...)
	args = append(args,
		"--no-warnings",
		"--no-playlist",
		"--no-part",
		"-x",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", base+".%(ext)s",
		"--", req.SourceURL,
	)

	ctx, cancel := context.WithTimeout(r.Context(), d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Tools.Extractor.Command, args...)
	extractor.SetProcessGroup(cmd)
	cmd.Cancel = func() error { return extractor.KillGroup(cmd.Process) }

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("transcoding audio", slog.String("url", req.SourceURL))

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, extractor.ErrTimeout
		}
		return nil, &extractor.RunError{Diagnostic: sanitize.LastDiagnosticLine(stderr.String())}
	}

	if _, err := os.Stat(target); err != nil {
		return nil, extractor.ErrOutputMissing
	}

	return &tempOutput{path: target}, nil
}
