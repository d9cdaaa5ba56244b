// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// BeaconID identifies one user's live-location broadcast in one room.
// The canonical form is the room ID and user ID joined with '_'
// (e.g., "!abc:lodestar.chat_@alice:lodestar.chat"). A beacon keeps
// this identity across beacon-info renewals; only the underlying
// state event changes.
//
// BeaconID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type BeaconID struct {
	room RoomID
	user UserID
}

// NewBeaconID builds a BeaconID from its parts. Returns an error if
// either part is the zero value.
func NewBeaconID(room RoomID, user UserID) (BeaconID, error) {
	if room.IsZero() {
		return BeaconID{}, fmt.Errorf("beacon ID requires a room ID")
	}
	if user.IsZero() {
		return BeaconID{}, fmt.Errorf("beacon ID requires a user ID")
	}
	return BeaconID{room: room, user: user}, nil
}

// MustNewBeaconID is like NewBeaconID but panics on error. Use in
// tests where the parts are known-valid.
func MustNewBeaconID(room RoomID, user UserID) BeaconID {
	b, err := NewBeaconID(room, user)
	if err != nil {
		panic(fmt.Sprintf("ref.MustNewBeaconID(%q, %q): %v", room, user, err))
	}
	return b
}

// ParseBeaconID parses the canonical "roomID_userID" form. The user
// ID's '@' sigil anchors the split, so room IDs containing '_' are
// handled.
func ParseBeaconID(raw string) (BeaconID, error) {
	separator := strings.Index(raw, "_@")
	if separator < 0 {
		return BeaconID{}, fmt.Errorf("invalid beacon ID %q: missing '_@' separator", raw)
	}
	room, err := ParseRoomID(raw[:separator])
	if err != nil {
		return BeaconID{}, fmt.Errorf("invalid beacon ID %q: %w", raw, err)
	}
	user, err := ParseUserID(raw[separator+1:])
	if err != nil {
		return BeaconID{}, fmt.Errorf("invalid beacon ID %q: %w", raw, err)
	}
	return BeaconID{room: room, user: user}, nil
}

// Room returns the room component of the beacon ID.
func (b BeaconID) Room() RoomID { return b.room }

// User returns the broadcasting user component of the beacon ID.
func (b BeaconID) User() UserID { return b.user }

// String returns the canonical "roomID_userID" form.
func (b BeaconID) String() string {
	if b.IsZero() {
		return ""
	}
	return b.room.String() + "_" + b.user.String()
}

// IsZero reports whether the BeaconID is the zero value.
func (b BeaconID) IsZero() bool { return b.room.IsZero() && b.user.IsZero() }

// MarshalText implements encoding.TextMarshaler.
func (b BeaconID) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}
