package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/internal/preset"
)

func fakeTool(t *testing.T, script string) *extractor.Tools {
	t.Helper()

	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatal(err)
	}

	return &extractor.Tools{
		Extractor: &extractor.Descriptor{
			Command:   path,
			Label:     "fake yt-dlp",
			Available: true,
		},
		HasFFmpeg: true,
	}
}

func serve(t *testing.T, d *Dispatcher, req Request) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/download", nil)
	d.Serve(w, r, req)

	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body, got %q", w.Body.String())
	}

	return body["error"]
}

func TestDirectStream(t *testing.T) {
	d := &Dispatcher{
		Tools:   fakeTool(t, "printf 'streamed-bytes'\n"),
		Timeout: time.Second * 5,
	}

	w := serve(t, d, Request{
		SourceURL: "https://example.com/v",
		FormatID:  "best",
		FileName:  "clip.mp4",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if got := w.Body.String(); got != "streamed-bytes" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="clip.mp4"`) {
		t.Errorf("content disposition = %q", cd)
	}
}

func TestDirectStreamFailureAfterBytes(t *testing.T) {
	d := &Dispatcher{
		Tools:   fakeTool(t, "printf 'partial-data'\nexit 3\n"),
		Timeout: time.Second * 5,
	}

	w := serve(t, d, Request{SourceURL: "https://example.com/v", FormatID: "best", FileName: "x.mp4"})

	// bytes were in flight, so the response just ends without an error body
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	if got := w.Body.String(); got != "partial-data" {
		t.Errorf("body = %q", got)
	}
}

func TestDirectStreamFailureBeforeBytes(t *testing.T) {
	d := &Dispatcher{
		Tools:   fakeTool(t, "echo 'ERROR: sign in to confirm' 1>&2\nexit 1\n"),
		Timeout: time.Second * 5,
	}

	w := serve(t, d, Request{SourceURL: "https://example.com/v", FormatID: "best", FileName: "x.mp4"})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "ERROR: sign in to confirm" {
		t.Errorf("error = %q", msg)
	}
}

func TestDirectStreamTimeoutBeforeFirstByte(t *testing.T) {
	d := &Dispatcher{
		Tools:   fakeTool(t, "sleep 5\nprintf 'late'\n"),
		Timeout: time.Millisecond * 150,
	}

	start := time.Now()
	w := serve(t, d, Request{SourceURL: "https://example.com/v", FormatID: "best", FileName: "x.mp4"})

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("code = %d, body = %q", w.Code, w.Body.String())
	}
	if time.Since(start) > time.Second*2 {
		t.Error("subprocess outlived the timeout")
	}
}

func TestServeUnavailableExtractor(t *testing.T) {
	d := &Dispatcher{
		Tools: &extractor.Tools{
			Extractor: &extractor.Descriptor{Command: "/nonexistent", Available: false},
		},
		Timeout: time.Second,
	}

	w := serve(t, d, Request{SourceURL: "https://example.com/v", FormatID: "best", FileName: "x.mp4"})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestAudioWithoutFFmpegSpawnsNothing(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "invoked")

	tools := fakeTool(t, "touch "+marker+"\n")
	tools.HasFFmpeg = false

	d := &Dispatcher{Tools: tools, Timeout: time.Second * 5}

	w := serve(t, d, Request{
		SourceURL: "https://example.com/v",
		FormatID:  preset.AudioFormatID,
		FileName:  "x.mp3",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	if _, err := os.Stat(marker); err == nil {
		t.Error("subprocess ran despite missing ffmpeg")
	}
}

func TestAudioTranscodePath(t *testing.T) {
	// stand-in writes an mp3 at the path given via --output, with the
	// extension template swapped in the way yt-dlp would
	script := `out=
grab=
for a in "$@"; do
  if [ "$grab" = "1" ]; then out="$a"; grab=; fi
  if [ "$a" = "--output" ]; then grab=1; fi
done
target=$(printf '%s' "$out" | sed 's/%(ext)s$/mp3/')
printf 'ID3audio' > "$target"
`

	tempDir := t.TempDir()

	d := &Dispatcher{
		Tools:   fakeTool(t, script),
		Timeout: time.Second * 5,
		TempDir: tempDir,
	}

	w := serve(t, d, Request{
		SourceURL: "https://example.com/v",
		FormatID:  preset.AudioFormatID,
		FileName:  "song.mp4",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %q", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "ID3audio" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="song.mp3"`) {
		t.Errorf("content disposition = %q", cd)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp file not cleaned up: %v", entries)
	}
}

func TestAudioOutputMissing(t *testing.T) {
	d := &Dispatcher{
		Tools:   fakeTool(t, "exit 0\n"),
		Timeout: time.Second * 5,
		TempDir: t.TempDir(),
	}

	w := serve(t, d, Request{
		SourceURL: "https://example.com/v",
		FormatID:  preset.AudioFormatID,
		FileName:  "song.mp3",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	if msg := decodeError(t, w); msg != extractor.ErrOutputMissing.Error() {
		t.Errorf("error = %q", msg)
	}
}

func TestAudioTranscodeFailure(t *testing.T) {
	d := &Dispatcher{
		Tools:   fakeTool(t, "echo 'ERROR: no audio' 1>&2\nexit 1\n"),
		Timeout: time.Second * 5,
		TempDir: t.TempDir(),
	}

	w := serve(t, d, Request{
		SourceURL: "https://example.com/v",
		FormatID:  preset.AudioFormatID,
		FileName:  "song.mp3",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code = %d", w.Code)
	}
	if msg := decodeError(t, w); msg != "ERROR: no audio" {
		t.Errorf("error = %q", msg)
	}
}

func TestTempOutputRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp3")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	out := &tempOutput{path: path}

	// read-end and response-close may both fire; neither call may fail
	out.remove()
	out.remove()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still present after remove")
	}
}
