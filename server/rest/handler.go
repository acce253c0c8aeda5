package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/internal/sanitize"
	"github.com/piratechad/media-grab/server/internal/stream"
)

var schemePattern = regexp.MustCompile(`(?i)^https?://`)

type streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, req stream.Request)
}

type Handler struct {
	service    *Service
	dispatcher streamer
	label      string
}

type extractRequest struct {
	URL string `json:"url"`
}

func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Valid URL is required.")
		return
	}

	sourceURL := normalizeURL(req.URL)
	if sourceURL == "" {
		writeError(w, http.StatusBadRequest, "Valid URL is required.")
		return
	}

	result, err := h.service.Extract(r.Context(), sourceURL)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	var (
		sourceURL = normalizeURL(r.URL.Query().Get("url"))
		formatID  = strings.TrimSpace(r.URL.Query().Get("format"))
		fileName  = sanitize.Filename(r.URL.Query().Get("filename"))
	)

	if sourceURL == "" || formatID == "" {
		writeError(w, http.StatusBadRequest, "Missing url or format.")
		return
	}

	if fileName == "" {
		fileName = "download.bin"
	}

	h.dispatcher.Serve(w, r, stream.Request{
		SourceURL: sourceURL,
		FormatID:  formatID,
		FileName:  fileName,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"extractor": h.label,
		"message":   "Server is running",
	})
}

// normalizeURL trims the input, assumes https when no scheme is given and
// returns the canonical form, or "" when it cannot be parsed into a URL with
// a host.
func normalizeURL(input string) string {
	value := strings.TrimSpace(input)
	if value == "" {
		return ""
	}

	if !schemePattern.MatchString(value) {
		value = "https://" + value
	}

	u, err := url.Parse(value)
	if err != nil || u.Host == "" {
		return ""
	}

	return u.String()
}

func statusFor(err error) int {
	var runErr *extractor.RunError

	switch {
	case errors.Is(err, extractor.ErrUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, extractor.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, extractor.ErrTranscoderUnavailable),
		errors.Is(err, extractor.ErrMalformedOutput),
		errors.Is(err, extractor.ErrOutputMissing),
		errors.As(err, &runErr):
		return http.StatusUnprocessableEntity
	}

	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
