// Package validation provides input validation for NomadHouse.
package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/mod/semver"
)

// MaxTitleIDLength bounds title identifiers, which end up in request URLs.
const MaxTitleIDLength = 128

// ValidateTitleID validates a title identifier
func ValidateTitleID(id string) error {
	if id == "" {
		return errors.New("title id cannot be empty")
	}
	if len(id) > MaxTitleIDLength {
		return fmt.Errorf("title id too long (max %d chars)", MaxTitleIDLength)
	}
	for _, c := range id {
		if c <= ' ' || c > '~' {
			return errors.New("title id must be printable ASCII without spaces")
		}
	}
	// Title ids travel as a single URL path segment and are appended to the
	// title search URI
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\?#%`) {
		return errors.New("invalid characters in title id")
	}
	return nil
}

// ValidateFeePercent validates a marketplace fee percentage
func ValidateFeePercent(p uint64) error {
	if p > 100 {
		return errors.New("fee percent must be between 0 and 100")
	}
	return nil
}

// ValidateURI validates a base URI. Empty is allowed and means unset.
func ValidateURI(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid uri: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ipfs":
	default:
		return fmt.Errorf("invalid uri scheme %q", u.Scheme)
	}
	return nil
}

// ValidateCompilerVersion validates a solc version such as 0.8.4
func ValidateCompilerVersion(v string) error {
	normalized := strings.TrimPrefix(v, "v")
	if normalized == "" {
		return errors.New("compiler version cannot be empty")
	}
	if !semver.IsValid("v" + normalized) {
		return fmt.Errorf("invalid compiler version %q", v)
	}
	if strings.Count(strings.SplitN(normalized, "+", 2)[0], ".") < 2 {
		return fmt.Errorf("invalid compiler version %q: must be major.minor.patch", v)
	}
	return nil
}

// CompareVersions compares two versions
// Returns -1 if v1 < v2, 0 if v1 == v2, 1 if v1 > v2
func CompareVersions(v1, v2 string) int {
	return semver.Compare("v"+strings.TrimPrefix(v1, "v"), "v"+strings.TrimPrefix(v2, "v"))
}

// LatestVersion returns the highest version from a list
func LatestVersion(versions []string) string {
	if len(versions) == 0 {
		return ""
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}
