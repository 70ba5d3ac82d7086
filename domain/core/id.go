package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	// SessionID names one display session and the matrix it owns.
	SessionID ID
	// ColumnHandle is an opaque, stable reference to a matrix column. Unlike a
	// column index it never shifts when synthetic columns come and go.
	ColumnHandle ID
	// DownloadID identifies a prepared download artifact.
	DownloadID ID
)

// NewSessionID creates a fresh session identifier
func NewSessionID() SessionID { return SessionID(NewID()) }

// NewColumnHandle creates a fresh column handle
func NewColumnHandle() ColumnHandle { return ColumnHandle(NewID()) }

// NewDownloadID creates a fresh download identifier
func NewDownloadID() DownloadID { return DownloadID(NewID()) }

func (id SessionID) String() string    { return ID(id).String() }
func (id ColumnHandle) String() string { return ID(id).String() }
func (id DownloadID) String() string   { return ID(id).String() }

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: session ID cannot be empty", ErrInvalidInput)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: session ID %q: %v", ErrInvalidInput, s, err)
	}
	return SessionID(s), nil
}

// ParseDownloadID parses a string into DownloadID
func ParseDownloadID(s string) (DownloadID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: download ID cannot be empty", ErrInvalidInput)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: download ID %q: %v", ErrInvalidInput, s, err)
	}
	return DownloadID(s), nil
}
