// Package domain provides type-safe identifiers for console-owned entities.
// Upstream record IDs stay opaque strings; only identifiers minted by the
// console itself get a dedicated type.
package domain

import (
	"github.com/google/uuid"

	dErrors "trash4cash/pkg/domain-errors"
)

// SessionID identifies an operator workspace on the console.
type SessionID uuid.UUID

// NewSessionID mints a random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID parses a session identifier at a trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "session ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil || id == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session ID format")
	}
	return SessionID(id), nil
}

func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
