package extractor

import (
	"net/url"
	"strings"
)

const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// SiteArgs returns extra yt-dlp arguments keyed by the URL's host. They are
// always inserted before the mode-specific arguments of an invocation.
// Unknown hosts and unparseable URLs yield nothing.
func SiteArgs(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	host := strings.ToLower(u.Hostname())

	if strings.Contains(host, "tiktok.com") {
		return []string{
			"--extractor-retries", "3",
			"--socket-timeout", "30",
			"--user-agent", desktopUserAgent,
			"--referer", "https://www.tiktok.com/",
		}
	}

	return nil
}
