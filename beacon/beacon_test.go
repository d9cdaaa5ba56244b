// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"testing"
	"time"

	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/lib/testutil"
	"github.com/lodestar-chat/lodestar/messaging"
)

var (
	aliceID = ref.MustParseUserID("@alice:server.org")
	bobID   = ref.MustParseUserID("@bob:server.org")
	room1ID = ref.MustParseRoomID("!room1:server.org")
	room2ID = ref.MustParseRoomID("!room2:server.org")

	// baseTime is the fake clock's epoch in the store tests.
	baseTime = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
)

func beaconInfoEvent(room ref.RoomID, sender ref.UserID, live bool, start time.Time, timeout time.Duration) messaging.BeaconInfoEvent {
	return messaging.BeaconInfoEvent{
		ID:              ref.MustParseEventID("$" + testutil.UniqueID("beacon-info")),
		RoomID:          room,
		Sender:          sender,
		OriginTimestamp: start,
		Content:         messaging.NewBeaconInfo("live location", timeout, live, start),
	}
}

func TestBeaconIsLive(t *testing.T) {
	now := baseTime
	tests := []struct {
		name    string
		live    bool
		start   time.Time
		timeout time.Duration
		want    bool
	}{
		{"running share", true, now.Add(-time.Minute), time.Hour, true},
		{"live flag off", false, now.Add(-time.Minute), time.Hour, false},
		{"expired", true, now.Add(-2 * time.Hour), time.Hour, false},
		{"exactly at expiry", true, now.Add(-time.Hour), time.Hour, false},
		{"starts one minute from now", true, now.Add(time.Minute), time.Hour, true},
		{"starts at leniency boundary", true, now.Add(startLeniency), time.Hour, true},
		{"starts one hour from now", true, now.Add(time.Hour), 2 * time.Hour, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := newBeacon(beaconInfoEvent(room1ID, aliceID, tc.live, tc.start, tc.timeout))
			if got := b.IsLive(now); got != tc.want {
				t.Fatalf("IsLive(%v) = %v, want %v", now, got, tc.want)
			}
		})
	}
}

func TestBeaconUpdateReplacesContent(t *testing.T) {
	b := newBeacon(beaconInfoEvent(room1ID, aliceID, true, baseTime, time.Hour))

	replacement := beaconInfoEvent(room1ID, aliceID, false, baseTime, time.Hour)
	replacement.OriginTimestamp = baseTime.Add(time.Minute)
	if err := b.Update(replacement); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if b.Info().Live {
		t.Fatal("live flag should have been replaced")
	}
	if b.EventID() != replacement.ID {
		t.Fatalf("event ID = %s, want %s", b.EventID(), replacement.ID)
	}
}

func TestBeaconUpdateRejectsOtherIdentity(t *testing.T) {
	b := newBeacon(beaconInfoEvent(room1ID, aliceID, true, baseTime, time.Hour))

	otherRoom := beaconInfoEvent(room2ID, aliceID, true, baseTime.Add(time.Minute), time.Hour)
	if err := b.Update(otherRoom); err == nil {
		t.Fatal("expected update for another room to be rejected")
	}
	otherUser := beaconInfoEvent(room1ID, bobID, true, baseTime.Add(time.Minute), time.Hour)
	if err := b.Update(otherUser); err == nil {
		t.Fatal("expected update for another user to be rejected")
	}
	if !b.Info().Live {
		t.Fatal("rejected updates must not touch content")
	}
}

func TestBeaconUpdateRejectsStaleEvent(t *testing.T) {
	b := newBeacon(beaconInfoEvent(room1ID, aliceID, true, baseTime, time.Hour))
	originalEventID := b.EventID()

	stale := beaconInfoEvent(room1ID, aliceID, false, baseTime, time.Hour)
	stale.OriginTimestamp = baseTime.Add(-time.Second)
	if err := b.Update(stale); err == nil {
		t.Fatal("expected older event to be rejected")
	}
	if b.EventID() != originalEventID {
		t.Fatal("rejected update must not replace the event ID")
	}

	// The same origin timestamp is a legitimate replacement.
	same := beaconInfoEvent(room1ID, aliceID, false, baseTime, time.Hour)
	if err := b.Update(same); err != nil {
		t.Fatalf("Update with equal timestamp: %v", err)
	}
}

func TestBeaconNextLivenessTransition(t *testing.T) {
	now := baseTime

	running := newBeacon(beaconInfoEvent(room1ID, aliceID, true, now.Add(-time.Minute), time.Hour))
	if got, want := running.nextLivenessTransition(now), now.Add(59*time.Minute); !got.Equal(want) {
		t.Fatalf("running beacon transitions at %v, want expiry %v", got, want)
	}

	future := newBeacon(beaconInfoEvent(room1ID, aliceID, true, now.Add(time.Hour), time.Hour))
	if got, want := future.nextLivenessTransition(now), now.Add(time.Hour-startLeniency); !got.Equal(want) {
		t.Fatalf("future beacon transitions at %v, want leniency boundary %v", got, want)
	}

	stopped := newBeacon(beaconInfoEvent(room1ID, aliceID, false, now, time.Hour))
	if got := stopped.nextLivenessTransition(now); !got.IsZero() {
		t.Fatalf("stopped beacon should have no transition, got %v", got)
	}

	expired := newBeacon(beaconInfoEvent(room1ID, aliceID, true, now.Add(-2*time.Hour), time.Hour))
	if got := expired.nextLivenessTransition(now); !got.IsZero() {
		t.Fatalf("expired beacon should have no transition, got %v", got)
	}
}
