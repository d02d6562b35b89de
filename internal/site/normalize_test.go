package site

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		url   string
		host  string
		brand string
	}{
		{"acme-plumbing.co.uk/contact", "https://acme-plumbing.co.uk/contact", "acme-plumbing.co.uk", "acme plumbing"},
		{"https://WWW.PeakRoofing.com", "https://www.peakroofing.com", "peakroofing.com", "peakroofing"},
		{"http://user:pw@example.com/a#frag", "http://example.com/a", "example.com", "example"},
		{"//example.org", "https://example.org", "example.org", "example"},
		{"  localhost:8080  ", "https://localhost:8080", "localhost", "localhost"},
		{"192.168.1.10", "https://192.168.1.10", "192.168.1.10", ""},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			profile, err := Parse(tc.input)

			require.NoError(t, err)
			assert.Equal(t, tc.url, profile.URL)
			assert.Equal(t, tc.host, profile.Host)
			assert.Equal(t, tc.brand, profile.Brand)
			assert.Equal(t, tc.input, profile.Original)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, input := range []string{"", "   ", "ftp://files.example.com", "intranet", "https://"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)

			assert.True(t, errors.Is(err, ErrInvalidURL), "got %v", err)
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	got, err := NormalizeURL("peakroofing.com/services")
	require.NoError(t, err)
	assert.Equal(t, "https://peakroofing.com/services", got)

	_, err = NormalizeURL("mailto://someone")
	assert.ErrorIs(t, err, ErrInvalidURL)
}
