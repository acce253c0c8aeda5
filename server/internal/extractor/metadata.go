package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/piratechad/media-grab/server/internal/sanitize"
)

// RawFormat is one element of yt-dlp's reported format list. Only the fields
// the preset curator needs are decoded.
type RawFormat struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	VCodec   string `json:"vcodec"`
	ACodec   string `json:"acodec"`
	Height   int    `json:"height"`
}

// Metadata is the normalized single-item result of a metadata fetch.
type Metadata struct {
	Title     string
	SourceURL string
	Formats   []RawFormat
}

// document mirrors the relevant parts of yt-dlp's --dump-single-json output.
type document struct {
	Type        string      `json:"_type"`
	Title       string      `json:"title"`
	Fulltitle   string      `json:"fulltitle"`
	WebpageURL  string      `json:"webpage_url"`
	OriginalURL string      `json:"original_url"`
	Formats     []RawFormat `json:"formats"`
	Entries     []document  `json:"entries"`
}

// Fetcher drives yt-dlp in metadata mode.
type Fetcher struct {
	Tools   *Tools
	Timeout time.Duration
}

// FetchMetadata requests a single JSON document for the URL. Even for
// collection URLs a single item is requested; if the extractor reports a
// playlist anyway, the first usable entry wins.
func (f *Fetcher) FetchMetadata(ctx context.Context, url string) (*Metadata, error) {
	if !f.Tools.Extractor.Available {
		return nil, ErrUnavailable
	}

	args := append([]string{}, f.Tools.Extractor.PrefixArgs...)
	args = append(args, SiteArgs(url)...)
	args = append(args, "--dump-single-json", "--no-warnings", "--no-playlist", url)

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.Tools.Extractor.Command, args...)
	SetProcessGroup(cmd)
	cmd.Cancel = func() error { return KillGroup(cmd.Process) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Info("retrieving metadata", slog.String("url", url))

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, &RunError{Diagnostic: sanitize.LastDiagnosticLine(stderr.String())}
	}

	var doc document
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, ErrMalformedOutput
	}

	return normalize(&doc), nil
}

func normalize(doc *document) *Metadata {
	info := doc

	if doc.Type == "playlist" && len(doc.Entries) > 0 {
		for i := range doc.Entries {
			if e := &doc.Entries[i]; e.Title != "" || e.WebpageURL != "" || len(e.Formats) > 0 {
				info = e
				break
			}
		}
	}

	title := info.Title
	if title == "" {
		title = info.Fulltitle
	}
	if title == "" {
		title = "media"
	}

	sourceURL := info.WebpageURL
	if sourceURL == "" {
		sourceURL = info.OriginalURL
	}

	return &Metadata{
		Title:     title,
		SourceURL: sourceURL,
		Formats:   info.Formats,
	}
}
