// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lodestar-chat/lodestar/lib/clock"
	"github.com/lodestar-chat/lodestar/lib/geo"
	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/lib/testutil"
	"github.com/lodestar-chat/lodestar/messaging"
	"github.com/lodestar-chat/lodestar/storage"
)

type sentLocation struct {
	room    ref.RoomID
	content messaging.LocationContent
}

type sentInfo struct {
	room    ref.RoomID
	content messaging.BeaconInfo
}

type sentCreate struct {
	room    ref.RoomID
	content messaging.BeaconInfo
	eventID ref.EventID
}

// fakeClient scripts the Matrix side: room state to seed from,
// channels recording every send, and per-call error scripting.
type fakeClient struct {
	userID ref.UserID

	mu           sync.Mutex
	rooms        map[ref.RoomID][]messaging.BeaconInfoEvent
	listener     messaging.BeaconListener
	locationErrs []error
	infoErr      error
	createErr    error

	locations chan sentLocation
	infos     chan sentInfo
	creates   chan sentCreate
}

var _ messaging.Client = (*fakeClient)(nil)

func newFakeClient(user ref.UserID) *fakeClient {
	return &fakeClient{
		userID:    user,
		rooms:     make(map[ref.RoomID][]messaging.BeaconInfoEvent),
		locations: make(chan sentLocation, 32),
		infos:     make(chan sentInfo, 32),
		creates:   make(chan sentCreate, 32),
	}
}

func (c *fakeClient) addRoomBeacon(room ref.RoomID, event messaging.BeaconInfoEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = append(c.rooms[room], event)
}

func (c *fakeClient) clearRooms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = make(map[ref.RoomID][]messaging.BeaconInfoEvent)
}

func (c *fakeClient) UserID() ref.UserID { return c.userID }

func (c *fakeClient) VisibleRooms() []messaging.RoomState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]messaging.RoomState, 0, len(c.rooms))
	for room, events := range c.rooms {
		out = append(out, messaging.RoomState{RoomID: room, BeaconInfos: events})
	}
	return out
}

func (c *fakeClient) SubscribeBeacons(listener messaging.BeaconListener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = listener
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listener = nil
	}
}

func (c *fakeClient) SendLocation(ctx context.Context, room ref.RoomID, content messaging.LocationContent) (ref.EventID, error) {
	c.mu.Lock()
	var err error
	if len(c.locationErrs) > 0 {
		err = c.locationErrs[0]
		c.locationErrs = c.locationErrs[1:]
	}
	c.mu.Unlock()
	c.locations <- sentLocation{room: room, content: content}
	if err != nil {
		return ref.EventID{}, err
	}
	return ref.MustParseEventID("$" + testutil.UniqueID("location")), nil
}

func (c *fakeClient) SetBeaconInfo(ctx context.Context, room ref.RoomID, content messaging.BeaconInfo) (ref.EventID, error) {
	c.mu.Lock()
	err := c.infoErr
	c.mu.Unlock()
	c.infos <- sentInfo{room: room, content: content}
	if err != nil {
		return ref.EventID{}, err
	}
	return ref.MustParseEventID("$" + testutil.UniqueID("info")), nil
}

func (c *fakeClient) CreateBeacon(ctx context.Context, room ref.RoomID, content messaging.BeaconInfo) (ref.EventID, error) {
	c.mu.Lock()
	err := c.createErr
	c.mu.Unlock()
	if err != nil {
		return ref.EventID{}, err
	}
	eventID := ref.MustParseEventID("$" + testutil.UniqueID("created"))
	c.creates <- sentCreate{room: room, content: content, eventID: eventID}
	return eventID, nil
}

// fakeLocator hands the captured watch callbacks back to the test so
// it can script fixes and failures.
type fakeLocator struct {
	mu           sync.Mutex
	onPosition   func(geo.Position)
	onError      func(error)
	watchErr     error
	watchCalls   int
	stopCalls    int
	current      geo.Position
	currentErr   error
	currentCalls int
}

var _ geo.Locator = (*fakeLocator)(nil)

func (l *fakeLocator) Watch(onPosition func(geo.Position), onError func(error)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watchCalls++
	if l.watchErr != nil {
		return nil, l.watchErr
	}
	l.onPosition, l.onError = onPosition, onError
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.stopCalls++
		l.onPosition, l.onError = nil, nil
	}, nil
}

func (l *fakeLocator) Current(ctx context.Context) (geo.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentCalls++
	if l.currentErr != nil {
		return geo.Position{}, l.currentErr
	}
	return l.current, nil
}

func (l *fakeLocator) emitPosition(p geo.Position) {
	l.mu.Lock()
	fn := l.onPosition
	l.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

func (l *fakeLocator) emitError(err error) {
	l.mu.Lock()
	fn := l.onError
	l.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func position(lat, lon float64) geo.Position {
	return geo.Position{Latitude: lat, Longitude: lon, Accuracy: 1}
}

type fixture struct {
	t       *testing.T
	clock   *clock.FakeClock
	client  *fakeClient
	locator *fakeLocator
	ledger  *Ledger
	store   *Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := storage.NewMemory()
	f := &fixture{
		t:       t,
		clock:   clock.Fake(baseTime),
		client:  newFakeClient(aliceID),
		locator: &fakeLocator{current: position(54.001927, -8.253491)},
		ledger:  NewLedger(kv, nil),
	}
	store, err := New(Config{
		Client:  f.client,
		Locator: f.locator,
		Storage: kv,
		Clock:   f.clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.store = store
	return f
}

// seedOwnedBeacon places a beacon of ours in room state and claims
// it in the ledger, so it counts as created by this device.
func (f *fixture) seedOwnedBeacon(room ref.RoomID, live bool, start time.Time, timeout time.Duration) messaging.BeaconInfoEvent {
	f.t.Helper()
	event := beaconInfoEvent(room, aliceID, live, start, timeout)
	f.client.addRoomBeacon(room, event)
	if err := f.ledger.Add(context.Background(), event.ID); err != nil {
		f.t.Fatalf("seeding ledger: %v", err)
	}
	return event
}

func (f *fixture) start() {
	f.t.Helper()
	if err := f.store.Start(context.Background()); err != nil {
		f.t.Fatalf("Start: %v", err)
	}
	f.t.Cleanup(f.store.Stop)
}

func (f *fixture) nextLocation() sentLocation {
	f.t.Helper()
	return testutil.RequireReceive(f.t, f.client.locations, time.Second, "location event")
}

func (f *fixture) nextBeaconInfo() sentInfo {
	f.t.Helper()
	return testutil.RequireReceive(f.t, f.client.infos, time.Second, "beacon-info update")
}

func (f *fixture) requireNoLocations() {
	f.t.Helper()
	if n := len(f.client.locations); n != 0 {
		f.t.Fatalf("expected no location events, %d queued", n)
	}
}

func (f *fixture) requireNoBeaconInfos() {
	f.t.Helper()
	if n := len(f.client.infos); n != 0 {
		f.t.Fatalf("expected no beacon-info updates, %d queued", n)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Config{Locator: &fakeLocator{}, Storage: storage.NewMemory()}); err == nil {
		t.Fatal("expected missing client to be rejected")
	}
	if _, err := New(Config{Client: newFakeClient(aliceID), Storage: storage.NewMemory()}); err == nil {
		t.Fatal("expected missing locator to be rejected")
	}
	if _, err := New(Config{Client: newFakeClient(aliceID), Locator: &fakeLocator{}}); err == nil {
		t.Fatal("expected missing storage to be rejected")
	}
}

func TestStartSeedsFromRoomState(t *testing.T) {
	f := newFixture(t)
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	ids := f.store.LiveBeaconIDs()
	if len(ids) != 1 || ids[0] != event.BeaconID() {
		t.Fatalf("LiveBeaconIDs = %v, want [%s]", ids, event.BeaconID())
	}
	if !f.store.HasLiveBeacons(room1ID) {
		t.Fatal("HasLiveBeacons(room1) = false")
	}
	if f.store.HasLiveBeacons(room2ID) {
		t.Fatal("HasLiveBeacons(room2) = true for a room without beacons")
	}
	if b := f.store.BeaconByID(event.BeaconID()); b == nil || b.EventID() != event.ID {
		t.Fatalf("BeaconByID = %v, want beacon with event %s", b, event.ID)
	}
}

func TestIrrelevantEventsPreserveLiveIDs(t *testing.T) {
	f := newFixture(t)
	f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	changes := 0
	f.store.OnLivenessChange(func([]ref.BeaconID) { changes++ })
	before := f.store.LiveBeaconIDs()

	f.store.OnBeaconNew(beaconInfoEvent(room2ID, bobID, true, baseTime, time.Hour))
	f.store.OnMembershipChange(room2ID, bobID, messaging.MembershipLeave)
	f.store.OnMembershipChange(room2ID, aliceID, messaging.MembershipLeave)
	f.store.OnBeaconDestroy(ref.MustNewBeaconID(room2ID, bobID))

	after := f.store.LiveBeaconIDs()
	if changes != 0 {
		t.Fatalf("irrelevant events triggered %d liveness changes", changes)
	}
	if &before[0] != &after[0] {
		t.Fatal("live ID snapshot was replaced by irrelevant events")
	}
}

func TestBeaconNotInLedgerIsNotOurs(t *testing.T) {
	f := newFixture(t)
	mine := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	// Live in room state but created on another of the user's devices.
	other := beaconInfoEvent(room2ID, aliceID, true, baseTime.Add(-time.Minute), time.Hour)
	f.client.addRoomBeacon(room2ID, other)
	f.start()

	ids := f.store.LiveBeaconIDs()
	if len(ids) != 1 || ids[0] != mine.BeaconID() {
		t.Fatalf("LiveBeaconIDs = %v, want only this device's beacon %s", ids, mine.BeaconID())
	}
}

func TestLiveBeaconIDsNewestFirst(t *testing.T) {
	f := newFixture(t)
	older := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Hour), 2*time.Hour)
	newer := f.seedOwnedBeacon(room2ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	ids := f.store.LiveBeaconIDs()
	if len(ids) != 2 || ids[0] != newer.BeaconID() || ids[1] != older.BeaconID() {
		t.Fatalf("LiveBeaconIDs = %v, want [%s %s]", ids, newer.BeaconID(), older.BeaconID())
	}
}

func TestExpiryStopsBeacon(t *testing.T) {
	f := newFixture(t)
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), 10*time.Minute)
	f.start()

	changes := 0
	var lastIDs []ref.BeaconID
	f.store.OnLivenessChange(func(ids []ref.BeaconID) { changes++; lastIDs = ids })

	f.clock.Advance(9 * time.Minute)

	stop := f.nextBeaconInfo()
	if stop.room != room1ID {
		t.Fatalf("stop update sent to %s, want %s", stop.room, room1ID)
	}
	if stop.content.Live {
		t.Fatal("stop update still has live flag set")
	}
	if stop.content.Description != event.Content.Description ||
		stop.content.TimeoutMs != event.Content.TimeoutMs ||
		stop.content.TimestampMs != event.Content.TimestampMs {
		t.Fatalf("stop update rewrote content: %+v", stop.content)
	}
	f.requireNoBeaconInfos()

	if changes != 1 || len(lastIDs) != 0 {
		t.Fatalf("liveness changes = %d (last %v), want one change to empty", changes, lastIDs)
	}
	if f.store.HasLiveBeacons() {
		t.Fatal("expired beacon still counted live")
	}
	if f.ledger.Contains(context.Background(), event.ID) {
		t.Fatal("ownership claim survived the stop")
	}
	if f.store.IsMonitoringLiveLocation() {
		t.Fatal("watch still running with no live beacons")
	}
}

func TestLeaveRoomDestroysItsBeacons(t *testing.T) {
	f := newFixture(t)
	f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	keep := f.seedOwnedBeacon(room2ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	changes := 0
	f.store.OnLivenessChange(func([]ref.BeaconID) { changes++ })

	f.store.OnMembershipChange(room1ID, aliceID, messaging.MembershipLeave)

	ids := f.store.LiveBeaconIDs()
	if len(ids) != 1 || ids[0] != keep.BeaconID() {
		t.Fatalf("LiveBeaconIDs = %v, want only %s", ids, keep.BeaconID())
	}
	if changes != 1 {
		t.Fatalf("liveness recomputed %d times for one departure, want 1", changes)
	}
	// Losing the room is not stopping the share: no network traffic.
	f.requireNoBeaconInfos()
	if f.store.BeaconByID(ids[0]) == nil {
		t.Fatal("surviving room's beacon was dropped")
	}
}

func TestBeaconDestroyRecomputes(t *testing.T) {
	f := newFixture(t)
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	f.store.OnBeaconDestroy(event.BeaconID())

	if f.store.HasLiveBeacons() {
		t.Fatal("destroyed beacon still counted live")
	}
	if f.store.BeaconByID(event.BeaconID()) != nil {
		t.Fatal("destroyed beacon still tracked")
	}
}

func TestUpdateToStoppedDropsLiveness(t *testing.T) {
	f := newFixture(t)
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	update := event
	update.ID = ref.MustParseEventID("$" + testutil.UniqueID("beacon-info"))
	update.OriginTimestamp = baseTime.Add(time.Minute)
	update.Content = event.Content.Stopped()
	f.store.OnBeaconUpdate(update)

	if f.store.HasLiveBeacons() {
		t.Fatal("beacon still live after server marked it stopped")
	}
	// The server already knows the beacon is stopped, so no redundant
	// stop update goes out.
	f.requireNoBeaconInfos()
}

func TestStopBeaconPublishesStoppedContent(t *testing.T) {
	f := newFixture(t)
	// Expired but the live flag was never cleared server-side.
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-2*time.Hour), time.Hour)
	f.start()

	if f.store.HasLiveBeacons() {
		t.Fatal("expired beacon should not be live")
	}
	if err := f.store.StopBeacon(context.Background(), event.BeaconID()); err != nil {
		t.Fatalf("StopBeacon: %v", err)
	}
	stop := f.nextBeaconInfo()
	if stop.content.Live {
		t.Fatal("stop update still has live flag set")
	}
}

func TestStopBeaconNoopWhenUnknownOrStopped(t *testing.T) {
	f := newFixture(t)
	stopped := f.seedOwnedBeacon(room1ID, false, baseTime, time.Hour)
	f.start()

	if err := f.store.StopBeacon(context.Background(), ref.MustNewBeaconID(room2ID, aliceID)); err != nil {
		t.Fatalf("StopBeacon(unknown): %v", err)
	}
	if err := f.store.StopBeacon(context.Background(), stopped.BeaconID()); err != nil {
		t.Fatalf("StopBeacon(already stopped): %v", err)
	}
	f.requireNoBeaconInfos()
}

func TestStopBeaconFailureRecordsUpdateError(t *testing.T) {
	f := newFixture(t)
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	var events []bool
	f.store.OnBeaconUpdateError(func(id ref.BeaconID, hasError bool) {
		if id == event.BeaconID() {
			events = append(events, hasError)
		}
	})

	sendErr := &messaging.MatrixError{Code: messaging.ErrCodeLimitExceeded, Message: "slow down"}
	f.client.mu.Lock()
	f.client.infoErr = sendErr
	f.client.mu.Unlock()

	if err := f.store.StopBeacon(context.Background(), event.BeaconID()); err == nil {
		t.Fatal("expected StopBeacon to surface the send failure")
	}
	<-f.client.infos
	if f.store.UpdateError(event.BeaconID()) == nil {
		t.Fatal("update error not recorded")
	}

	// A beacon wedged mid-stop is excluded from the publish fan-out.
	f.locator.emitPosition(position(54.0, -8.25))
	f.requireNoLocations()

	f.client.mu.Lock()
	f.client.infoErr = nil
	f.client.mu.Unlock()
	if err := f.store.StopBeacon(context.Background(), event.BeaconID()); err != nil {
		t.Fatalf("StopBeacon retry: %v", err)
	}
	<-f.client.infos
	if f.store.UpdateError(event.BeaconID()) != nil {
		t.Fatal("update error not cleared by successful stop")
	}
	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Fatalf("update error events = %v, want [true false]", events)
	}
	if f.ledger.Contains(context.Background(), event.ID) {
		t.Fatal("ownership claim survived the stop")
	}
}

func TestCreateLiveBeaconStopsExistingInRoom(t *testing.T) {
	f := newFixture(t)
	replaced := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	elsewhere := f.seedOwnedBeacon(room2ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	content := messaging.NewBeaconInfo("fresh share", time.Hour, true, f.clock.Now())
	if err := f.store.CreateLiveBeacon(context.Background(), room1ID, content); err != nil {
		t.Fatalf("CreateLiveBeacon: %v", err)
	}

	stop := f.nextBeaconInfo()
	if stop.room != room1ID || stop.content.Live {
		t.Fatalf("expected a stop update for %s, got %+v in %s", room1ID, stop.content, stop.room)
	}
	f.requireNoBeaconInfos()

	created := testutil.RequireReceive(t, f.client.creates, time.Second, "beacon create")
	if created.room != room1ID || created.content.Description != "fresh share" {
		t.Fatalf("created %+v in %s", created.content, created.room)
	}

	ctx := context.Background()
	if !f.ledger.Contains(ctx, created.eventID) {
		t.Fatal("new beacon not claimed in ledger")
	}
	if f.ledger.Contains(ctx, replaced.ID) {
		t.Fatal("replaced beacon's claim not released")
	}
	if !f.ledger.Contains(ctx, elsewhere.ID) {
		t.Fatal("beacon in another room lost its claim")
	}
}

func TestReinitializeRebuildsFromRoomState(t *testing.T) {
	f := newFixture(t)
	f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	if !f.store.HasLiveBeacons() {
		t.Fatal("expected a live beacon before reinitialize")
	}
	f.client.clearRooms()
	f.store.Reinitialize()

	if f.store.HasLiveBeacons() {
		t.Fatal("beacon survived reinitialize without room state")
	}
	if f.store.IsMonitoringLiveLocation() {
		t.Fatal("watch survived reinitialize without live beacons")
	}
}

func TestStartIsOneShot(t *testing.T) {
	f := newFixture(t)
	f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()
	f.store.Stop()

	if err := f.store.Start(context.Background()); err == nil {
		t.Fatal("Start after Stop should be rejected")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	f := newFixture(t)
	event := f.seedOwnedBeacon(room1ID, true, baseTime.Add(-time.Minute), time.Hour)
	f.start()

	changes := 0
	cancel := f.store.OnLivenessChange(func([]ref.BeaconID) { changes++ })
	cancel()
	f.store.OnBeaconDestroy(event.BeaconID())
	if changes != 0 {
		t.Fatalf("cancelled subscriber received %d notifications", changes)
	}
}
