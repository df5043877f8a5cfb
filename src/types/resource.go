package types

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var resourceIDPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)

// ResourceID names a unit of stored data. Values produced by ParseResourceID
// are canonical (lower case).
type ResourceID string

// ParseResourceID validates s as an 8-4-4-4-12 hexadecimal UUID of any
// version and returns its canonical form.
func ParseResourceID(s string) (ResourceID, error) {
	// uuid.Parse also accepts braces, urn: prefixes and undashed forms.
	if !IsValidResourceID(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return ResourceID(u.String()), nil
}

// IsValidResourceID reports whether s is a well-formed resource identifier.
func IsValidResourceID(s string) bool {
	return resourceIDPattern.MatchString(s)
}

func (id ResourceID) String() string { return string(id) }
