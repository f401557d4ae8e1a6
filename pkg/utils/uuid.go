package utils

import "github.com/google/uuid"

// NewUUID returns a new time-ordered UUID string.
func NewUUID() string {
	if uuid, err := uuid.NewV7(); err == nil {
		return uuid.String()
	}
	panic("failed to generate UUID")
}
