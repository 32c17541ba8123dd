// Package id provides UUIDv7 identifiers for factures, persisted lines and editor sessions.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseOptional parses an optional identifier. Blank input yields nil.
func ParseOptional(s *string) (*ID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	v, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
