// Package ids generates the opaque identifiers handed out for operations.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// Supported identifier formats.
const (
	FormatUUID = "uuid"
	FormatXID  = "xid"
)

// Generator produces unique identifiers.
type Generator interface {
	NewID() string
}

// GeneratorFunc adapts a plain function to [Generator].
type GeneratorFunc func() string

// NewID calls f.
func (f GeneratorFunc) NewID() string {
	return f()
}

// UUID generates random (version 4) UUIDs.
type UUID struct{}

// NewID returns a new UUID string.
func (UUID) NewID() string {
	return uuid.NewString()
}

// XID generates sortable 20 character xids.
type XID struct{}

// NewID returns a new xid string.
func (XID) NewID() string {
	return xid.New().String()
}

// ForFormat returns the generator for a configured format. An empty format
// selects UUIDs.
func ForFormat(format string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatUUID:
		return UUID{}, nil
	case FormatXID:
		return XID{}, nil
	default:
		return nil, fmt.Errorf("unknown id format %q (expected %q or %q)", format, FormatUUID, FormatXID)
	}
}
