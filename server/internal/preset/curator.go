// Package preset collapses yt-dlp's raw format list into a fixed, predictable
// set of download options. Callers never see raw format ids, which vary
// wildly between sites; they get at most three video tiers and one audio
// option with stable selector expressions.
package preset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/piratechad/media-grab/server/internal/extractor"
	"github.com/piratechad/media-grab/server/internal/sanitize"
)

// AudioFormatID is the sentinel selector that routes a download request to
// the audio transcode path instead of a direct stream.
const AudioFormatID = "audio_mp3"

const (
	defaultMaxHeight = 1080
	maxBaseNameLen   = 90
)

// File is one curated download option.
type File struct {
	FormatID string `json:"formatId"`
	FileName string `json:"fileName"`
	Label    string `json:"label"`
}

// thumbnail/storyboard pseudo-formats, not downloadable media
var imageExtensions = map[string]bool{
	"mhtml": true,
	"jpg":   true,
	"jpeg":  true,
	"png":   true,
	"webp":  true,
}

// Curate derives the preset list for a title and its raw formats. canMerge
// reports whether ffmpeg is present: merging separate video and audio streams
// requires it, so without it only progressive selectors are emitted.
func Curate(formats []extractor.RawFormat, title string, canMerge bool) []File {
	baseName := sanitize.Filename(title)
	if runes := []rune(baseName); len(runes) > maxBaseNameLen {
		baseName = strings.TrimSpace(string(runes[:maxBaseNameLen]))
	}
	if baseName == "" {
		baseName = "download"
	}

	maxHeight := maxAvailableHeight(formats)

	files := make([]File, 0, 4)

	for _, tier := range []struct {
		name   string
		height int
	}{
		{"high", min(1080, maxHeight)},
		{"medium", min(720, maxHeight)},
		{"low", min(480, maxHeight)},
	} {
		files = append(files, File{
			FormatID: videoSelector(tier.height, canMerge),
			FileName: fmt.Sprintf("%s_%dp.mp4", baseName, tier.height),
			Label:    fmt.Sprintf("video // %s (up to %dp) // MP4", tier.name, tier.height),
		})
	}

	files = append(files, File{
		FormatID: AudioFormatID,
		FileName: baseName + "_audio.mp3",
		Label:    "audio // best // MP3",
	})

	return dedupe(files)
}

// maxAvailableHeight finds the tallest video rendition, defaulting to 1080
// when the format list carries no height information at all.
func maxAvailableHeight(formats []extractor.RawFormat) int {
	heights := make([]int, 0, len(formats))

	for _, f := range formats {
		if f.FormatID == "" || imageExtensions[strings.ToLower(f.Ext)] {
			continue
		}
		if strings.ToLower(f.VCodec) == "none" {
			continue
		}
		if f.Height > 0 {
			heights = append(heights, f.Height)
		}
	}

	if len(heights) == 0 {
		return defaultMaxHeight
	}

	sort.Sort(sort.Reverse(sort.IntSlice(heights)))

	return heights[0]
}

// videoSelector builds the "/"-separated fallback alternation yt-dlp
// understands for one target height.
func videoSelector(targetHeight int, canMerge bool) string {
	progressive := fmt.Sprintf(
		"best[height<=%d][vcodec!=none][acodec!=none]/best[vcodec!=none][acodec!=none]",
		targetHeight,
	)

	if !canMerge {
		return progressive
	}

	return fmt.Sprintf("bestvideo[height<=%d]+bestaudio/%s", targetHeight, progressive)
}

// dedupe drops later entries sharing a (fileName, formatId) pair. Tiers
// collapse when the source has little height variation.
func dedupe(files []File) []File {
	seen := make(map[string]bool, len(files))
	out := files[:0]

	for _, f := range files {
		key := f.FileName + "|" + f.FormatID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	return out
}
