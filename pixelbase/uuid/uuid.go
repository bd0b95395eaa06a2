package uuid

import (
	"strings"

	googleuuid "github.com/google/uuid"
)

func New() string {
	return googleuuid.NewString()
}

// NewLettersNumbers returns uuid without dashes. For places where
// only letters and numbers are allowed, e.g. public error ids.
func NewLettersNumbers() string {
	return strings.ReplaceAll(googleuuid.NewString(), "-", "")
}
