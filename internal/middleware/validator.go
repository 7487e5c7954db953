package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities for handler-level checks.

var identifierRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ValidateRegionID checks the shape of an AWS region identifier.
func ValidateRegionID(id string) error {
	if !identifierRe.MatchString(id) {
		return fmt.Errorf("invalid region id: %q", id)
	}
	return nil
}

// ValidateServiceID checks the shape of a service identifier.
func ValidateServiceID(id string) error {
	if !identifierRe.MatchString(id) {
		return fmt.Errorf("invalid service id: %q", id)
	}
	return nil
}

// ValidateStartURL checks an SSO portal start URL before it is handed to
// the identity provider.
func ValidateStartURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("start_url cannot be empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid start_url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("invalid start_url scheme: %s (must be https)", u.Scheme)
	}
	if strings.TrimSpace(u.Hostname()) == "" {
		return fmt.Errorf("start_url has no host")
	}
	return nil
}
