package validation

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	ferrors "github.com/conneroisu/folio/internal/errors"
)

// ParseRequestTarget parses a site-relative request target such as
// "/about?x=1#top". Absolute and protocol-relative URLs are rejected so a
// target can never point off-site.
// Failures are ErrCodeInvalidPath errors.
func ParseRequestTarget(raw string) (*url.URL, error) {
	invalid := func(cause error) error {
		err := ferrors.ErrInvalidPath(strconv.Quote(raw)).WithComponent("validation")
		err.Cause = cause

		return err
	}

	if raw == "" {
		return nil, invalid(fmt.Errorf("request target cannot be empty"))
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return nil, invalid(fmt.Errorf("request target must be a site-relative path"))
	}
	if strings.ContainsAny(raw, "\x00\r\n\\") {
		return nil, invalid(fmt.Errorf("request target contains a control character or backslash"))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, invalid(err)
	}
	if u.Scheme != "" || u.Host != "" {
		return nil, invalid(fmt.Errorf("request target must not carry a scheme or host"))
	}

	return u, nil
}

// ValidatePrefix validates a bypass path prefix such as "/api".
func ValidatePrefix(prefix string) error {
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("prefix must start with '/': %q", prefix)
	}
	if prefix == "/" {
		return fmt.Errorf("prefix '/' would bypass every page")
	}
	if strings.ContainsAny(prefix, "?#\x00") {
		return fmt.Errorf("prefix must be a bare path: %q", prefix)
	}

	return nil
}
