package common

import (
	"net/url"
	"strings"
)

// NormalizeURI normalizes a URI for use as a cache/throttle key: trims whitespace,
// lowercases scheme and host, and strips the fragment. Query and path are preserved
// because distinct resources on a host must keep distinct throttle keys.
func NormalizeURI(rawURI string) string {
	trimmed := strings.TrimSpace(rawURI)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		// Unparseable URIs are keyed verbatim so throttling still applies
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return u.String()
}

// HostOf returns the lowercased host of a URI, or empty string if unparseable
func HostOf(rawURI string) string {
	u, err := url.Parse(strings.TrimSpace(rawURI))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// ResolveReference resolves a possibly-relative href against a base URI.
// Returns empty string when neither yields an absolute URL.
func ResolveReference(baseURI, href string) string {
	parsed, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}

	base, err := url.Parse(strings.TrimSpace(baseURI))
	if err != nil || base.Host == "" {
		if parsed.IsAbs() {
			return parsed.String()
		}
		return ""
	}

	resolved := base.ResolveReference(parsed)
	resolved.Scheme = strings.ToLower(resolved.Scheme)
	resolved.Host = strings.ToLower(resolved.Host)
	resolved.Fragment = ""

	return resolved.String()
}
