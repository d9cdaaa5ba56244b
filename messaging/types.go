// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"time"

	"github.com/lodestar-chat/lodestar/lib/ref"
)

// Matrix event types for live location sharing (MSC3672).
const (
	// EventTypeBeaconInfo is the state event describing a beacon:
	// its timeout, start timestamp, and liveness flag. The state key
	// is the broadcasting user's ID.
	EventTypeBeaconInfo = "org.matrix.msc3672.beacon_info"

	// EventTypeBeacon is the timeline event carrying one location
	// sample, related to its beacon-info event by an m.reference.
	EventTypeBeacon = "org.matrix.msc3672.beacon"
)

// AssetSelf marks a beacon as tracking the sender's own position.
const AssetSelf = "m.self"

// BeaconInfo is the content of a beacon-info state event.
type BeaconInfo struct {
	// Description is an optional human-readable label for the share.
	Description string `json:"description,omitempty"`

	// TimeoutMs is how long the beacon stays live after its start
	// timestamp, in milliseconds.
	TimeoutMs int64 `json:"timeout"`

	// Live is the sender's declared sharing state. A beacon with
	// Live true may still be expired by its timeout.
	Live bool `json:"live"`

	// TimestampMs is the share's start time in milliseconds since
	// the Unix epoch.
	TimestampMs int64 `json:"org.matrix.msc3488.ts"`

	// Asset describes what the beacon tracks.
	Asset BeaconAsset `json:"org.matrix.msc3488.asset"`
}

// BeaconAsset describes the subject of a beacon.
type BeaconAsset struct {
	Type string `json:"type"`
}

// NewBeaconInfo builds a live beacon-info payload starting at `start`
// with the given timeout.
func NewBeaconInfo(description string, timeout time.Duration, live bool, start time.Time) BeaconInfo {
	return BeaconInfo{
		Description: description,
		TimeoutMs:   timeout.Milliseconds(),
		Live:        live,
		TimestampMs: start.UnixMilli(),
		Asset:       BeaconAsset{Type: AssetSelf},
	}
}

// StartedAt returns the share's start time.
func (b BeaconInfo) StartedAt() time.Time {
	return time.UnixMilli(b.TimestampMs)
}

// Timeout returns the share duration.
func (b BeaconInfo) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// ExpiresAt returns the instant the beacon's timeout elapses.
func (b BeaconInfo) ExpiresAt() time.Time {
	return b.StartedAt().Add(b.Timeout())
}

// Stopped returns a copy of the content with only the live flag
// flipped to false. This is the exact payload a stop-update sends:
// everything else in the prior content is preserved.
func (b BeaconInfo) Stopped() BeaconInfo {
	b.Live = false
	return b
}

// BeaconInfoEvent is one beacon-info state event as observed in room
// state or delivered by the sync stream.
type BeaconInfoEvent struct {
	// ID is the state event's event ID. It changes on every renewal
	// or update of the beacon; the beacon's identity does not.
	ID ref.EventID

	// RoomID is the room the beacon broadcasts into.
	RoomID ref.RoomID

	// Sender is the broadcasting user (also the state key).
	Sender ref.UserID

	// OriginTimestamp is the server's origin_server_ts. Updates
	// carrying an older origin timestamp than the current content
	// are stale and must be ignored.
	OriginTimestamp time.Time

	// Content is the beacon-info payload.
	Content BeaconInfo
}

// BeaconID returns the beacon identity this event belongs to.
func (e BeaconInfoEvent) BeaconID() ref.BeaconID {
	id, err := ref.NewBeaconID(e.RoomID, e.Sender)
	if err != nil {
		// RoomID and Sender are validated ref types; an event with
		// either missing never leaves the sync layer.
		return ref.BeaconID{}
	}
	return id
}

// RelationReference is the m.reference relation linking a location
// sample to its beacon-info event.
type RelationReference struct {
	RelType string      `json:"rel_type"`
	EventID ref.EventID `json:"event_id"`
}

// LocationInfo is the extensible-location payload inside a sample.
type LocationInfo struct {
	// URI is the RFC 5870 geo URI of the position.
	URI string `json:"uri"`

	// Description mirrors the beacon description, if any.
	Description string `json:"description,omitempty"`
}

// LocationContent is the content of one location sample event.
type LocationContent struct {
	RelatesTo   RelationReference `json:"m.relates_to"`
	Location    LocationInfo      `json:"org.matrix.msc3488.location"`
	TimestampMs int64             `json:"org.matrix.msc3488.ts"`
}

// NewLocationReport builds a location sample referencing the given
// beacon-info event.
func NewLocationReport(beaconInfoID ref.EventID, geoURI string, at time.Time) LocationContent {
	return LocationContent{
		RelatesTo: RelationReference{
			RelType: "m.reference",
			EventID: beaconInfoID,
		},
		Location:    LocationInfo{URI: geoURI},
		TimestampMs: at.UnixMilli(),
	}
}

// Membership is a Matrix room membership state.
type Membership string

// Membership values from the Matrix spec.
const (
	MembershipJoin   Membership = "join"
	MembershipInvite Membership = "invite"
	MembershipKnock  Membership = "knock"
	MembershipLeave  Membership = "leave"
	MembershipBan    Membership = "ban"
)

// Departed reports whether the membership means the user is out of
// the room (left voluntarily or banned).
func (m Membership) Departed() bool {
	return m == MembershipLeave || m == MembershipBan
}
