package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateID generates a short unique ID with a prefix, e.g. "evt-1a2b3c4d"
func GenerateID(prefix string) string {
	id := uuid.New().String()

	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// GetCurrentTime returns the current time in UTC
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// StringPtr returns nil for empty strings
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences a possibly nil string
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
