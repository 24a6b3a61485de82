package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScope_RejectsBadStartURLs(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "not a url at all", "/relative/only"} {
		_, err := NewScope(raw, false)
		assert.Error(t, err, raw)
	}
}

func TestScope_AllowsExactHost(t *testing.T) {
	s, err := NewScope("https://app.example.com/start", false)
	require.NoError(t, err)

	assert.True(t, s.Allows("https://app.example.com/other"))
	assert.True(t, s.Allows("http://app.example.com/"))
	assert.False(t, s.Allows("https://example.com/"))
	assert.False(t, s.Allows("https://shop.example.com/"))
	assert.False(t, s.Allows("https://evil.com/"))
	assert.False(t, s.Allows("javascript:alert(1)"))
}

func TestScope_AllowsRegistrableDomainWithSubdomains(t *testing.T) {
	s, err := NewScope("https://app.example.com/start", true)
	require.NoError(t, err)

	assert.True(t, s.Allows("https://shop.example.com/"))
	assert.True(t, s.Allows("https://example.com/"))
	assert.False(t, s.Allows("https://example.org/"))
	assert.False(t, s.Allows("https://notexample.com/"))
}

func TestScope_AllowsFallsBackForIPHosts(t *testing.T) {
	s, err := NewScope("http://127.0.0.1:8080/", true)
	require.NoError(t, err)

	assert.True(t, s.Allows("http://127.0.0.1:8080/page"))
	assert.False(t, s.Allows("http://127.0.0.2/page"))
}

func TestScope_Normalize(t *testing.T) {
	s, err := NewScope("https://example.com/start", false)
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"fragment stripped", "https://example.com/page#section", "https://example.com/page", true},
		{"default https port stripped", "https://example.com:443/page", "https://example.com/page", true},
		{"non-default port kept", "https://example.com:8443/page", "https://example.com:8443/page", true},
		{"relative resolved", "/signup?plan=pro", "https://example.com/signup?plan=pro", true},
		{"static asset pruned", "https://example.com/logo.png", "", false},
		{"stylesheet pruned", "/assets/site.css", "", false},
		{"out of scope", "https://other.com/page", "", false},
		{"empty", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Normalize(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScope_NormalizeDefaultHTTPPort(t *testing.T) {
	s, err := NewScope("http://example.com/", false)
	require.NoError(t, err)

	got, ok := s.Normalize("http://example.com:80/page")
	require.True(t, ok)
	assert.Equal(t, "http://example.com/page", got)
}
