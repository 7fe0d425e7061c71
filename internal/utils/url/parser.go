package urlutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL performs the scheme/host validation required before an embed
// URL is handed to the browser pool.
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ValidateNotSSRF rejects embed URLs that target localhost or a private /
// link-local network range (spec §6 "SSRF blocklist"). Call after
// ValidateURL has confirmed the scheme and host are well-formed.
func ValidateNotSSRF(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || host == "::1" || host == "::" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil
	}
	switch {
	case v4[0] == 127:
	case v4[0] == 10:
	case v4[0] == 169 && v4[1] == 254:
	case v4[0] == 0:
	case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
	case v4[0] == 192 && v4[1] == 168:
	default:
		return nil
	}
	return fmt.Errorf("blocked host: %s", host)
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// Origin returns the scheme://host[:port] origin of a parsed URL string.
func Origin(urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}
