// File: internal/crawler/scope.go
// Description: URL scope and normalization rules for the crawl frontier.

package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// staticExtensions never carry forms; they are pruned from the frontier.
var staticExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {},
	".css": {}, ".js": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".mp4": {}, ".webm": {}, ".mp3": {},
}

// Scope decides which URLs belong to the site under test.
type Scope struct {
	base              *url.URL
	baseSite          string
	includeSubdomains bool
}

// NewScope derives the scope from the start URL. With subdomains enabled,
// membership is judged by the registrable domain (eTLD+1), so
// shop.example.com stays in scope for a crawl rooted at example.com.
func NewScope(startURL string, includeSubdomains bool) (*Scope, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL %q: %w", startURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in start URL", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("start URL %q has no host", startURL)
	}

	s := &Scope{base: u, includeSubdomains: includeSubdomains}
	if includeSubdomains {
		site, err := publicsuffix.EffectiveTLDPlusOne(u.Hostname())
		if err != nil {
			// IPs and single-label hosts have no registrable domain; fall
			// back to exact host matching.
			s.includeSubdomains = false
		} else {
			s.baseSite = site
		}
	}
	return s, nil
}

// Allows reports whether the URL belongs to the crawl scope.
func (s *Scope) Allows(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if !s.includeSubdomains {
		return host == s.base.Hostname()
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return false
	}
	return site == s.baseSite
}

// Normalize resolves raw against the scope's base, strips the fragment and
// default ports, and rejects out-of-scope or static-asset URLs. The second
// return reports whether the URL survived.
func (s *Scope) Normalize(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	u, err := s.base.Parse(raw)
	if err != nil {
		return "", false
	}
	u.Fragment = ""

	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}

	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" {
		if _, static := staticExtensions[ext]; static {
			return "", false
		}
	}

	normalized := u.String()
	if !s.Allows(normalized) {
		return "", false
	}
	return normalized, true
}
