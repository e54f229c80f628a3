package locale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAcceptLanguage(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   []string
	}{
		{name: "empty", header: "", want: nil},
		{name: "single", header: "ar", want: []string{"ar"}},
		{
			name:   "ordered by weight",
			header: "fr;q=0.5, en-GB;q=0.9, ar-SA",
			want:   []string{"ar-SA", "en-GB", "fr"},
		},
		{
			name:   "zero weight dropped",
			header: "en;q=0, ar",
			want:   []string{"ar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAcceptLanguage(tt.header))
		})
	}
}

func TestParseAcceptLanguageDegradesOnMalformedHeader(t *testing.T) {
	got := ParseAcceptLanguage("en-US;q=abc, ???, ar;q=0, *, fr")

	assert.Contains(t, got, "en-US")
	assert.Contains(t, got, "fr")
	assert.NotContains(t, got, "ar")
	assert.NotContains(t, got, "*")

	cfg := DefaultConfig()
	code, ok := cfg.MatchBrowser(got)
	assert.True(t, ok)
	assert.Equal(t, English, code)
}

func TestParseAcceptLanguageBoundsHeader(t *testing.T) {
	header := "en," + strings.Repeat("x", 10*maxAcceptLanguageLength)

	got := ParseAcceptLanguage(header)
	assert.NotEmpty(t, got)
	assert.Equal(t, "en", got[0])
}
