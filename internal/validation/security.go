// Package validation provides input checks shared by configuration loading
// and the command line: filesystem paths, listen hosts, backend addresses and
// request targets.
package validation

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
)

// ValidatePath validates a filesystem path taken from configuration.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("path contains a null byte")
	}

	cleanPath := filepath.Clean(path)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	restrictedPaths := []string{"/proc/", "/sys/", "/dev/", "/boot/"}
	lower := strings.ToLower(filepath.ToSlash(cleanPath)) + "/"
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(lower, restricted) {
			return fmt.Errorf("access to restricted path denied: %s", path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// ValidateHost validates a listen host. Empty means all interfaces.
func ValidateHost(host string) error {
	if host == "" {
		return nil
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", "/", " "}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("host contains dangerous character: %q", char)
		}
	}

	return nil
}

// ValidatePort validates a TCP port. 0 asks the OS for a free port.
func ValidatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", port)
	}

	return nil
}

// ValidateAddress validates a host:port backend address.
func ValidateAddress(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if err := ValidateHost(host); err != nil {
		return err
	}

	n, err := strconv.Atoi(port)
	if err != nil || n < 1 {
		return fmt.Errorf("invalid port in address %q", addr)
	}

	return ValidatePort(n)
}

// SanitizeInput removes null bytes and control characters other than common
// whitespace.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
