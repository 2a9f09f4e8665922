package domain

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// maxTitleCitationLen is the longest title used verbatim as a citation.
const maxTitleCitationLen = 100

var (
	wacPathPattern = regexp.MustCompile(`(?i)wac-(\d+)`)
	etaNumPattern  = regexp.MustCompile(`(\d{4})\.pdf`)
	wtdPathPattern = regexp.MustCompile(`(?i)(\d+)wtd(\d+)`)
)

// BuildCitation derives a human-readable citation ("RCW 82.04.050",
// "WTD 37-123") for a document, falling back to its title or last path
// segment.
func BuildCitation(rawURL, title, category string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackCitation(rawURL, title, "")
	}

	lowerPath := strings.ToLower(u.Path)
	if strings.Contains(strings.ToLower(u.Host), "app.leg.wa.gov") {
		q := u.Query()
		cite := q.Get("cite")
		if cite == "" {
			cite = q.Get("Cite")
		}
		if cite != "" {
			switch {
			case strings.Contains(lowerPath, "/rcw/"):
				return "RCW " + cite
			case strings.Contains(lowerPath, "/wac/"):
				return "WAC " + cite
			}
		}
	}

	if m := wacPathPattern.FindStringSubmatch(u.Path); m != nil {
		return "WAC 458-20-" + m[1]
	}

	lowerURL := strings.ToLower(rawURL)
	if m := etaNumPattern.FindStringSubmatch(u.Path); m != nil &&
		(strings.Contains(lowerURL, "eta") || strings.Contains(lowerURL, "taxpedia") || category == CategoryETA) {
		return "ETA " + m[1]
	}

	if m := wtdPathPattern.FindStringSubmatch(u.Path); m != nil {
		return "WTD " + m[1] + "-" + m[2]
	}

	return fallbackCitation(rawURL, title, u.Path)
}

func fallbackCitation(rawURL, title, urlPath string) string {
	if title != "" && len(title) < maxTitleCitationLen {
		return title
	}
	if base := path.Base(strings.TrimSuffix(urlPath, "/")); base != "" && base != "." && base != "/" {
		return base
	}
	return rawURL
}
