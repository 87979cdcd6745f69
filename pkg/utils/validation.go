package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-\.]*[a-zA-Z0-9])?$`)

// ValidateHostname checks hostname against RFC 1123
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname is empty")
	}
	if len(hostname) > 253 {
		return fmt.Errorf("hostname is too long: %d characters (max 253)", len(hostname))
	}
	if !hostnamePattern.MatchString(hostname) {
		return fmt.Errorf("invalid hostname: %s", hostname)
	}
	return nil
}

// NodeName strips the domain suffix (".novalocal" and the like) from a
// hostname and validates what is left
func NodeName(hostname string) (string, error) {
	if idx := strings.Index(hostname, "."); idx != -1 {
		hostname = hostname[:idx]
	}
	if err := ValidateHostname(hostname); err != nil {
		return "", err
	}
	return hostname, nil
}
