// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"

	"github.com/lodestar-chat/lodestar/lib/ref"
)

// RoomState is the beacon-relevant slice of one visible room's
// current state.
type RoomState struct {
	// RoomID identifies the room.
	RoomID ref.RoomID

	// BeaconInfos holds every beacon-info state entry currently in
	// the room, one per broadcasting user.
	BeaconInfos []BeaconInfoEvent
}

// RoomSource answers current-state queries against the sync client.
type RoomSource interface {
	// UserID returns the logged-in user.
	UserID() ref.UserID

	// VisibleRooms returns the beacon-relevant state of every room
	// the client currently shows.
	VisibleRooms() []RoomState
}

// BeaconListener receives beacon lifecycle notifications from the
// sync stream. Calls arrive one at a time; implementations may block
// briefly but must not call back into the stream.
//
// External liveness changes are not a separate notification: a remote
// stop or renewal arrives as OnBeaconUpdate with new content, and
// expiry by timeout is the consumer's own job to schedule.
type BeaconListener interface {
	// OnBeaconNew fires when a beacon-info state event appears for
	// a beacon not previously in room state.
	OnBeaconNew(event BeaconInfoEvent)

	// OnBeaconUpdate fires when an existing beacon's info event is
	// replaced (liveness toggle, timeout renewal).
	OnBeaconUpdate(event BeaconInfoEvent)

	// OnBeaconDestroy fires when a beacon's info event is redacted
	// or otherwise removed from room state.
	OnBeaconDestroy(id ref.BeaconID)

	// OnMembershipChange fires when any user's membership in a
	// visible room changes.
	OnMembershipChange(roomID ref.RoomID, userID ref.UserID, membership Membership)
}

// BeaconStream delivers lifecycle notifications to subscribers.
type BeaconStream interface {
	// SubscribeBeacons registers listener and returns a cancel
	// function that unregisters it. After cancel returns, no further
	// calls are made on the listener.
	SubscribeBeacons(listener BeaconListener) (cancel func())
}

// Sender issues the three beacon commands against the homeserver.
// All calls block until the server acknowledges and honor ctx.
type Sender interface {
	// SendLocation sends one location sample to a room.
	SendLocation(ctx context.Context, roomID ref.RoomID, content LocationContent) (ref.EventID, error)

	// SetBeaconInfo replaces the caller's beacon-info state event in
	// a room (state key = own user ID). Used to stop or renew an
	// existing beacon.
	SetBeaconInfo(ctx context.Context, roomID ref.RoomID, content BeaconInfo) (ref.EventID, error)

	// CreateBeacon creates a fresh beacon-info state event in a room
	// and returns its event ID.
	CreateBeacon(ctx context.Context, roomID ref.RoomID, content BeaconInfo) (ref.EventID, error)
}

// Client is the full sync-client surface the beacon store depends on.
type Client interface {
	RoomSource
	BeaconStream
	Sender
}
