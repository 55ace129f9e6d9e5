package random

import (
	"strings"

	"github.com/google/uuid"
)

// GetUUID generates a UUID and returns it as a string without hyphens.
// It uses github.com/google/uuid for UUID generation.
func GetUUID() string {
	code := uuid.New().String()
	code = strings.Replace(code, "-", "", -1)
	return code
}

// GetUUIDWithHyphens generates a UUID and returns it in canonical hyphenated
// form, for identifiers that cross process or wire boundaries.
func GetUUIDWithHyphens() string {
	return uuid.New().String()
}
