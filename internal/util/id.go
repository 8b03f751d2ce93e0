package util

import (
	"strings"

	"github.com/google/uuid"
)

func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}

// NewShareToken mints the public token a whiteboard is resolvable by while
// published. It is independent of the record id.
func NewShareToken() string {
	return uuid.NewString()
}
