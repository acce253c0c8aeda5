package extractor

import "errors"

var (
	// ErrUnavailable indicates no working yt-dlp invocation was found at startup.
	ErrUnavailable = errors.New("yt-dlp is not available. Install it or set the extractor path override")

	// ErrTranscoderUnavailable indicates ffmpeg is missing; MP3 extraction needs it.
	ErrTranscoderUnavailable = errors.New("MP3 conversion requires ffmpeg on the server")

	// ErrTimeout indicates the subprocess was killed before producing a result.
	ErrTimeout = errors.New("extractor timed out")

	// ErrMalformedOutput indicates stdout could not be parsed as a JSON document.
	ErrMalformedOutput = errors.New("extractor returned invalid JSON output")

	// ErrOutputMissing indicates the transcode run exited cleanly but the
	// expected file was never written.
	ErrOutputMissing = errors.New("MP3 file was not created")
)

// RunError carries the last diagnostic line of a subprocess that exited
// non-zero. The usual causes are login-gated, geo-blocked or DRM content.
type RunError struct {
	Diagnostic string
}

func (e *RunError) Error() string {
	if e.Diagnostic != "" {
		return e.Diagnostic
	}
	return "extraction failed. URL may be unsupported, login-gated, or DRM-protected"
}
