package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/conneroisu/folio/internal/errors"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		expectErr bool
	}{
		{"relative dir", "locales", false},
		{"nested dir", "./site/locales", false},
		{"absolute dir", "/srv/folio/locales", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"traversal", "../secrets", true},
		{"bare parent", "..", true},
		{"traversal cleaned away", "locales/../other", false},
		{"proc", "/proc/self", true},
		{"sys root", "/sys", true},
		{"shell metachar", "locales;rm -rf", true},
		{"null byte", "loc\x00ales", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateHostAndPort(t *testing.T) {
	assert.NoError(t, ValidateHost(""))
	assert.NoError(t, ValidateHost("localhost"))
	assert.NoError(t, ValidateHost("0.0.0.0"))
	assert.NoError(t, ValidateHost("::1"))
	assert.Error(t, ValidateHost("localhost;reboot"))
	assert.Error(t, ValidateHost("local host"))

	assert.NoError(t, ValidatePort(0))
	assert.NoError(t, ValidatePort(8080))
	assert.Error(t, ValidatePort(-1))
	assert.Error(t, ValidatePort(70000))
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr      string
		expectErr bool
	}{
		{"localhost:6379", false},
		{"10.0.0.5:6380", false},
		{"[::1]:6379", false},
		{"localhost", true},
		{"localhost:0", true},
		{"localhost:redis", true},
		{"localhost:99999", true},
		{"bad`host:6379", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "hello", SanitizeInput("hel\x00lo"))
	assert.Equal(t, "a\tb\nc", SanitizeInput("a\tb\nc\x07"))
	assert.Equal(t, "مرحبا", SanitizeInput("مرحبا"))
}

func TestParseRequestTarget(t *testing.T) {
	u, err := ParseRequestTarget("/about?b=2&a=1#team")
	require.NoError(t, err)
	assert.Equal(t, "/about", u.Path)
	assert.Equal(t, "b=2&a=1", u.RawQuery)
	assert.Equal(t, "team", u.Fragment)

	for _, raw := range []string{
		"",
		"about",
		"//evil.example/path",
		"https://evil.example/",
		"/a\\b",
		"/a\r\nSet-Cookie: x",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseRequestTarget(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ferrors.ErrInvalidPath("")))
		})
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix("/api"))
	assert.NoError(t, ValidatePrefix("/_next/static"))
	assert.Error(t, ValidatePrefix("api"))
	assert.Error(t, ValidatePrefix("/"))
	assert.Error(t, ValidatePrefix("/api?x"))
}
