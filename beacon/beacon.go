// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"fmt"
	"sync"
	"time"

	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/messaging"
)

// startLeniency is how far in the future a beacon's start timestamp
// may lie while the beacon still counts as live. Clients publish
// beacon-info with their local wall clock, so a device running
// slightly ahead of ours must not make its own beacon invisible.
const startLeniency = 6 * time.Minute

// Beacon is one beacon-info event tracked by the store: the latest
// known content plus the identity it is keyed under. A beacon keeps
// the same [ref.BeaconID] across updates; the event ID and content
// change as the owner replaces the state event.
//
// Beacons are created and mutated by the [Store]; other goroutines
// may read them concurrently through the accessor methods.
type Beacon struct {
	id     ref.BeaconID
	sender ref.UserID

	mu       sync.Mutex
	eventID  ref.EventID
	originTS time.Time
	content  messaging.BeaconInfo
}

func newBeacon(event messaging.BeaconInfoEvent) *Beacon {
	return &Beacon{
		id:       event.BeaconID(),
		sender:   event.Sender,
		eventID:  event.ID,
		originTS: event.OriginTimestamp,
		content:  event.Content,
	}
}

// ID returns the beacon's stable identity, combining room and owner.
func (b *Beacon) ID() ref.BeaconID { return b.id }

// RoomID returns the room the beacon lives in.
func (b *Beacon) RoomID() ref.RoomID { return b.id.Room() }

// Owner returns the user that published the beacon.
func (b *Beacon) Owner() ref.UserID { return b.sender }

// EventID returns the ID of the latest beacon-info event applied.
func (b *Beacon) EventID() ref.EventID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eventID
}

// Info returns the latest beacon-info content.
func (b *Beacon) Info() messaging.BeaconInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content
}

// ExpiresAt returns the instant the beacon's validity window closes.
func (b *Beacon) ExpiresAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content.ExpiresAt()
}

// IsLive reports whether the beacon counts as live at now: the live
// flag is set, the validity window has not closed (expiry is exact,
// no grace), and the start timestamp is not more than the leniency
// window in the future.
func (b *Beacon) IsLive(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.content.Live {
		return false
	}
	if !now.Before(b.content.ExpiresAt()) {
		return false
	}
	return !b.content.StartedAt().After(now.Add(startLeniency))
}

// Update applies a replacement beacon-info event. Events for a
// different beacon identity are rejected, as are events older than
// the one already applied, so out-of-order sync delivery cannot
// roll the beacon backwards.
func (b *Beacon) Update(event messaging.BeaconInfoEvent) error {
	if event.BeaconID() != b.id {
		return fmt.Errorf("beacon: update for %s does not match %s", event.BeaconID(), b.id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if event.OriginTimestamp.Before(b.originTS) {
		return fmt.Errorf("beacon: stale update for %s: %v is before %v",
			b.id, event.OriginTimestamp, b.originTS)
	}
	b.eventID = event.ID
	b.originTS = event.OriginTimestamp
	b.content = event.Content
	return nil
}

// nextLivenessTransition returns the next instant at which IsLive's
// answer changes, or the zero time if no further transition is
// coming (the live flag is off, or the beacon has already expired).
func (b *Beacon) nextLivenessTransition(now time.Time) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.content.Live {
		return time.Time{}
	}
	expiry := b.content.ExpiresAt()
	if !now.Before(expiry) {
		return time.Time{}
	}
	if visible := b.content.StartedAt().Add(-startLeniency); now.Before(visible) {
		return visible
	}
	return expiry
}
