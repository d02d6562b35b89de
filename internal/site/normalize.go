package site

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	schemeMatcher = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	nonAlphaNum   = regexp.MustCompile(`[^a-z0-9]`)
)

// ErrInvalidURL is returned for website input that cannot name a public host.
var ErrInvalidURL = errors.New("invalid website url")

// Profile describes a normalized website.
type Profile struct {
	Original string
	URL      string
	Host     string
	Brand    string
}

// Parse normalizes user-entered website input such as "acme-plumbing.co.uk/contact"
// into an absolute http(s) URL and derives the host and brand token.
func Parse(input string) (Profile, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Profile{}, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	candidate := trimmed
	if !schemeMatcher.MatchString(candidate) {
		candidate = "https://" + strings.TrimPrefix(candidate, "//")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return Profile{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, parsed.Scheme)
	}

	host := strings.Trim(strings.ToLower(parsed.Hostname()), ".")
	if host == "" || strings.ContainsAny(host, " \t") {
		return Profile{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, trimmed)
	}
	if !strings.Contains(host, ".") && host != "localhost" && !isIP(host) {
		return Profile{}, fmt.Errorf("%w: host %q has no domain suffix", ErrInvalidURL, host)
	}

	parsed.Scheme = scheme
	parsed.User = nil
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)

	return Profile{
		Original: input,
		URL:      parsed.String(),
		Host:     strings.TrimPrefix(host, "www."),
		Brand:    brandToken(host),
	}, nil
}

// NormalizeURL is Parse for callers that only need the URL.
func NormalizeURL(input string) (string, error) {
	profile, err := Parse(input)
	if err != nil {
		return "", err
	}
	return profile.URL, nil
}

func brandToken(host string) string {
	host = strings.TrimPrefix(host, "www.")
	if isIP(host) {
		return ""
	}
	segments := compactSegments(strings.Split(host, "."))
	core := host
	switch {
	case len(segments) == 1:
		core = segments[0]
	case len(segments) >= 3 && len(segments[len(segments)-1]) == 2 && len(segments[len(segments)-2]) <= 3:
		// acme.co.uk, acme.com.au
		core = segments[len(segments)-3]
	case len(segments) >= 2:
		core = segments[len(segments)-2]
	}
	token := strings.Join(strings.Fields(nonAlphaNum.ReplaceAllString(core, " ")), " ")
	if token == "" {
		return core
	}
	return token
}

func compactSegments(in []string) []string {
	var out []string
	for _, seg := range in {
		if trimmed := strings.TrimSpace(seg); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isIP(host string) bool {
	if strings.Contains(host, ":") {
		return true
	}
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return host != ""
}
