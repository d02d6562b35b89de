package analysis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"plain utf8", []byte("plumber\n"), "plumber\n"},
		{"utf8 bom", []byte("\xef\xbb\xbfplumber\n"), "plumber\n"},
		{"utf16 little endian bom", []byte{0xff, 0xfe, 'h', 0, 'i', 0}, "hi"},
		{"invalid utf8 is replaced", []byte("caf\xe9"), "caf\ufffd"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeText(bytes.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeTextRejectsBinary(t *testing.T) {
	_, err := DecodeText(bytes.NewReader([]byte{0x89, 'P', 'N', 'G', 0x00, 0x01}))

	assert.ErrorIs(t, err, ErrFileRead)
	assert.Equal(t, "file_read", Kind(err))
}

func TestCountTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"header and rows", "Search term,Clicks\nplumber austin,3\nplumber jobs,1\n", 2},
		{"header in second column", "Clicks,Keyword\n3,plumber austin\n", 1},
		{"no header", "plumber austin\nplumber jobs\ndrain cleaning", 3},
		{"blank rows skipped", "term\n\nplumber austin\n , \n", 1},
		{"bom before header", "\ufeffSearch Term\nplumber\n", 1},
		{"empty", "", 0},
		{"header only", "Search terms\n", 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CountTerms(tc.text))
		})
	}
}

func TestCountTermsFallsBackToLines(t *testing.T) {
	text := strings.Join([]string{`"unterminated`, "second line"}, "\n")

	assert.Positive(t, CountTerms(text))
}
