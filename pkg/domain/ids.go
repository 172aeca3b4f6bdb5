// Package domain defines typed identifiers shared across features.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-type assignment (a TimerID can never be passed where an OwnerID is
// expected). Parse helpers enforce the invariant that IDs are valid,
// non-nil UUIDs at trust boundaries.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	"timekeep/pkg/platform/sentinel"
)

type (
	// TimerID identifies one tracked timer record.
	TimerID uuid.UUID
	// OwnerID identifies the user or crew that owns a timer.
	OwnerID uuid.UUID
)

func (id TimerID) String() string { return uuid.UUID(id).String() }
func (id OwnerID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the nil UUID.
func (id TimerID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id OwnerID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

// ParseTimerID parses and validates a timer ID string.
func ParseTimerID(s string) (TimerID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return TimerID{}, fmt.Errorf("timer id: %w", err)
	}
	return TimerID(u), nil
}

// ParseOwnerID parses and validates an owner ID string.
func ParseOwnerID(s string) (OwnerID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return OwnerID{}, fmt.Errorf("owner id: %w", err)
	}
	return OwnerID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("empty: %w", sentinel.ErrInvalidState)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed uuid %q: %w", s, sentinel.ErrInvalidState)
	}
	if u == uuid.Nil {
		return uuid.Nil, fmt.Errorf("nil uuid: %w", sentinel.ErrInvalidState)
	}
	return u, nil
}
