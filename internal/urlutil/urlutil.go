package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize parses a raw URL string and returns the form the engine stores
// and probes. Scheme and host are lowercased and the fragment is dropped.
// Returns an error unless the URL is an absolute HTTP or HTTPS URL.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("url must be an absolute http or https url")
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return u.String(), nil
}
