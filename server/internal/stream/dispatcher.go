// Package stream pipes yt-dlp output into HTTP responses. The direct path
// relays the subprocess' stdout as it arrives; the audio path transcodes to a
// private temp file first and streams that.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/internal/preset"
	"github.com/piratechad/media-grab/server/internal/sanitize"
)

// Request identifies what to stream and under which filename.
type Request struct {
	SourceURL string
	FormatID  string
	FileName  string
}

// Dispatcher owns the download side of the API. It holds no per-request
// state; every Serve call builds its own job.
type Dispatcher struct {
	Tools   *extractor.Tools
	Timeout time.Duration

	// TempDir overrides os.TempDir for transcode output. Used by tests.
	TempDir string
}

// Serve routes the request to the direct or the audio transcode path and
// writes the full response, including error bodies. Once body bytes are in
// flight no structured error can follow; a failing stream is simply closed.
func (d *Dispatcher) Serve(w http.ResponseWriter, r *http.Request, req Request) {
	if !d.Tools.Extractor.Available {
		writeJSONError(w, http.StatusInternalServerError, extractor.ErrUnavailable.Error())
		return
	}

	if req.FormatID == preset.AudioFormatID {
		d.serveAudio(w, r, req)
		return
	}

	d.serveDirect(w, r, req)
}

func (d *Dispatcher) serveDirect(w http.ResponseWriter, r *http.Request, req Request) {
	args := append([]string{}, d.Tools.Extractor.PrefixArgs...)
	args = append(args, extractor.SiteArgs(req.SourceURL)...)
	args = append(args,
		"--no-warnings",
		"--no-playlist",
		"--no-part",
		"--format", req.FormatID,
		"--output", "-",
		req.SourceURL,
	)

	cmd := exec.Command(d.Tools.Extractor.Command, args...)
	extractor.SetProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := cmd.Start(); err != nil {
		writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("failed to run %s: %v", d.Tools.Extractor.Label, err))
		return
	}

	slog.Info("streaming download",
		slog.String("url", req.SourceURL),
		slog.String("format", req.FormatID),
	)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", sanitize.ContentDisposition(req.FileName))

	var (
		started  atomic.Bool
		timedOut atomic.Bool
		copyErr  error
		lastLine string
	)

	flusher, _ := w.(http.Flusher)
	body := &trackingWriter{w: w, flusher: flusher, started: &started}

	done := make(chan struct{})

	g := new(errgroup.Group)

	g.Go(func() error {
		defer close(done)
		_, copyErr = io.Copy(body, stdout)
		return nil
	})

	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if l := strings.TrimSpace(scanner.Text()); l != "" {
				lastLine = l
			}
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-time.After(d.Timeout):
			if !started.Load() {
				timedOut.Store(true)
				extractor.KillGroup(cmd.Process)
			}
		case <-r.Context().Done():
			extractor.KillGroup(cmd.Process)
		case <-done:
		}
		return nil
	})

	g.Wait()

	if copyErr != nil {
		extractor.KillGroup(cmd.Process)
	}

	waitErr := cmd.Wait()

	if started.Load() {
		// response body is already in flight, nothing more can be signalled
		if waitErr != nil {
			slog.Warn("stream ended early",
				slog.String("url", req.SourceURL),
				slog.String("err", waitErr.Error()),
			)
		}
		return
	}

	if timedOut.Load() {
		writeJSONError(w, http.StatusGatewayTimeout, "Timed out waiting for download stream.")
		return
	}

	if waitErr != nil {
		writeJSONError(w, http.StatusUnprocessableEntity,
			(&extractor.RunError{Diagnostic: sanitize.LastDiagnosticLine(lastLine)}).Error())
	}
}

func (d *Dispatcher) serveAudio(w http.ResponseWriter, r *http.Request, req Request) {
	if !d.Tools.HasFFmpeg {
		writeJSONError(w, http.StatusUnprocessableEntity, extractor.ErrTranscoderUnavailable.Error())
		return
	}

	out, err := d.generateMP3(r, req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, extractor.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		writeJSONError(w, status, err.Error())
		return
	}

	// delete exactly once, whichever exit path fires first
	defer out.remove()

	fd, err := os.Open(out.path)
	if err != nil {
		out.remove()
		writeJSONError(w, http.StatusInternalServerError, "Failed to read generated MP3 file.")
		return
	}
	defer fd.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition",
		sanitize.ContentDisposition(sanitize.EnsureExtension(req.FileName, "mp3")))

	if _, err := io.Copy(w, fd); err != nil {
		slog.Warn("mp3 stream ended early",
			slog.String("url", req.SourceURL),
			slog.String("err", err.Error()),
		)
	}

	out.remove()
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Del("Content-Disposition")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// trackingWriter flags the first produced byte and flushes each chunk so a
// slow consumer exerts backpressure on the subprocess instead of buffering.
type trackingWriter struct {
	w       io.Writer
	flusher http.Flusher
	started *atomic.Bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		t.started.Store(true)
	}

	n, err := t.w.Write(p)

	if t.flusher != nil {
		t.flusher.Flush()
	}

	return n, err
}
