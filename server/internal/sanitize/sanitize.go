// Package sanitize keeps user-visible strings safe: filenames offered for
// download, Content-Disposition headers and yt-dlp diagnostic output.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	hostileChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	whitespace   = regexp.MustCompile(`\s+`)
	nonASCII     = regexp.MustCompile(`[^\x20-\x7E]+`)
	trailingExt  = regexp.MustCompile(`(?i)\.[a-z0-9]{2,5}$`)
)

// Filename replaces path-hostile characters with underscores and collapses
// run-on whitespace. It does not truncate.
func Filename(value string) string {
	value = hostileChars.ReplaceAllString(value, "_")
	value = whitespace.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// ContentDisposition builds an attachment header with both an ASCII fallback
// filename and an RFC 5987 UTF-8 encoded variant.
func ContentDisposition(fileName string) string {
	safeName := Filename(fileName)
	if safeName == "" {
		safeName = "download.bin"
	}

	asciiFallback := nonASCII.ReplaceAllString(safeName, "_")
	asciiFallback = strings.NewReplacer(`"`, "_", `\`, "_").Replace(asciiFallback)

	return fmt.Sprintf(
		`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFallback,
		encodeRFC5987(safeName),
	)
}

// EnsureExtension strips a trailing extension, if any, and forces ext instead.
func EnsureExtension(fileName, ext string) string {
	base := Filename(fileName)
	if base == "" {
		base = "download"
	}
	return trailingExt.ReplaceAllString(base, "") + "." + ext
}

// LastDiagnosticLine extracts the last non-empty line of a subprocess'
// stderr, capped at 240 characters. Full tracebacks never reach the caller.
func LastDiagnosticLine(stderr string) string {
	var line string

	for _, l := range strings.Split(stderr, "\n") {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			line = trimmed
		}
	}

	if runes := []rune(line); len(runes) > 240 {
		line = string(runes[:240])
	}

	return line
}

// encodeRFC5987 percent-encodes everything outside the attr-char set.
func encodeRFC5987(value string) string {
	var b strings.Builder

	for i := 0; i < len(value); i++ {
		c := value[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.' || c == '_' || c == '~' || c == '-':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}

	return b.String()
}
