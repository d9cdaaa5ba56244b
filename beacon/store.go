// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lodestar-chat/lodestar/lib/clock"
	"github.com/lodestar-chat/lodestar/lib/geo"
	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/messaging"
	"github.com/lodestar-chat/lodestar/storage"
)

// Publishing defaults, overridable through [Config].
const (
	DefaultDebounceWindow   = 5 * time.Second
	DefaultStaleInterval    = 30 * time.Second
	DefaultFailureThreshold = 2
)

// Config carries the store's dependencies. Client, Locator and
// Storage are required.
type Config struct {
	Client  messaging.Client
	Locator geo.Locator
	Storage storage.KV

	// Clock defaults to the wall clock.
	Clock clock.Clock
	// Logger defaults to discarding.
	Logger *slog.Logger

	// DebounceWindow is the quiet period after a position fix before
	// it is published; further fixes inside the window replace the
	// pending one and restart it. Zero means DefaultDebounceWindow.
	DebounceWindow time.Duration
	// StaleInterval is how long after the last publish the last known
	// position is re-sent so beacons do not appear dead while the
	// device is stationary. Zero means DefaultStaleInterval.
	StaleInterval time.Duration
	// FailureThreshold is the number of consecutive publish failures
	// after which a beacon is dropped from the fan-out. Zero means
	// DefaultFailureThreshold.
	FailureThreshold int
}

// Store tracks the current user's beacons across all visible rooms
// and publishes this device's position to the live ones it created.
// It consumes the sync stream as a [messaging.BeaconListener].
type Store struct {
	client    messaging.Client
	locator   geo.Locator
	ledger    *Ledger
	clock     clock.Clock
	logger    *slog.Logger
	userID    ref.UserID
	debounce  time.Duration
	staleGap  time.Duration
	threshold int

	ctx       context.Context
	cancel    context.CancelFunc
	cancelSub func()

	mu            sync.Mutex
	beacons       map[ref.BeaconID]*Beacon
	beaconsByRoom map[ref.RoomID]map[ref.BeaconID]struct{}
	expiryTimers  map[ref.BeaconID]*clock.Timer
	liveIDs       []ref.BeaconID
	publishFails  map[ref.BeaconID]int
	updateErrors  map[ref.BeaconID]error

	// geolocation watch state, also under mu
	watchStop     func()
	staleTicker   *clock.Ticker
	staleDone     chan struct{}
	debounceTimer *clock.Timer
	pending       geo.Position
	havePending   bool
	firstFixSeen  bool
	lastPosition  geo.Position
	haveLast      bool
	lastPublished time.Time

	livenessSubs   registry[func(ids []ref.BeaconID)]
	monitoringSubs registry[func(monitoring bool)]
	publishErrSubs registry[func(id ref.BeaconID)]
	updateErrSubs  registry[func(id ref.BeaconID, hasError bool)]
}

var _ messaging.BeaconListener = (*Store)(nil)

// New builds a Store from cfg. Call [Store.Start] to begin tracking.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New("beacon: Config.Client is required")
	}
	if cfg.Locator == nil {
		return nil, errors.New("beacon: Config.Locator is required")
	}
	if cfg.Storage == nil {
		return nil, errors.New("beacon: Config.Storage is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	if cfg.StaleInterval == 0 {
		cfg.StaleInterval = DefaultStaleInterval
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	return &Store{
		client:        cfg.Client,
		locator:       cfg.Locator,
		ledger:        NewLedger(cfg.Storage, cfg.Logger),
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		userID:        cfg.Client.UserID(),
		debounce:      cfg.DebounceWindow,
		staleGap:      cfg.StaleInterval,
		threshold:     cfg.FailureThreshold,
		beacons:       make(map[ref.BeaconID]*Beacon),
		beaconsByRoom: make(map[ref.RoomID]map[ref.BeaconID]struct{}),
		expiryTimers:  make(map[ref.BeaconID]*clock.Timer),
		publishFails:  make(map[ref.BeaconID]int),
		updateErrors:  make(map[ref.BeaconID]error),
	}, nil
}

// Start subscribes to the sync stream, seeds the store from visible
// room state, and begins position publishing if the device already
// has live beacons. ctx bounds all background work; Stop or ctx
// cancellation ends it. A Store is one-shot: Start may be called
// once, including after Stop — build a new Store to track again, or
// use Reinitialize to rebuild a running one in place.
func (s *Store) Start(ctx context.Context) error {
	if s.cancel != nil {
		return errors.New("beacon: store already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cancelSub = s.client.SubscribeBeacons(s)
	s.seedFromRoomState()
	s.recomputeLiveness()
	return nil
}

// Stop unsubscribes from the sync stream, halts position publishing
// and expiry scheduling, and drops all tracked state. The ownership
// ledger persists. The store cannot be restarted after Stop.
func (s *Store) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancelSub()
	s.stopPolling()
	s.mu.Lock()
	for id, timer := range s.expiryTimers {
		timer.Stop()
		delete(s.expiryTimers, id)
	}
	s.beacons = make(map[ref.BeaconID]*Beacon)
	s.beaconsByRoom = make(map[ref.RoomID]map[ref.BeaconID]struct{})
	s.publishFails = make(map[ref.BeaconID]int)
	s.updateErrors = make(map[ref.BeaconID]error)
	s.liveIDs = nil
	s.mu.Unlock()
	s.cancel()
}

// Reinitialize rebuilds the tracked beacon set from visible room
// state, discarding beacons whose rooms are gone. Used after a sync
// gap when incremental events cannot be trusted.
func (s *Store) Reinitialize() {
	s.mu.Lock()
	for id, timer := range s.expiryTimers {
		timer.Stop()
		delete(s.expiryTimers, id)
	}
	s.beacons = make(map[ref.BeaconID]*Beacon)
	s.beaconsByRoom = make(map[ref.RoomID]map[ref.BeaconID]struct{})
	s.mu.Unlock()
	s.seedFromRoomState()
	s.recomputeLiveness()
}

func (s *Store) seedFromRoomState() {
	for _, room := range s.client.VisibleRooms() {
		for _, event := range room.BeaconInfos {
			if event.Sender != s.userID {
				continue
			}
			s.trackBeacon(event)
		}
	}
}

// trackBeacon registers a beacon-info event without recomputing
// liveness; callers recompute once after a batch.
func (s *Store) trackBeacon(event messaging.BeaconInfoEvent) *Beacon {
	b := newBeacon(event)
	s.mu.Lock()
	if existing, ok := s.beacons[b.id]; ok {
		s.mu.Unlock()
		if err := existing.Update(event); err != nil {
			s.logger.Debug("ignoring beacon update", "beacon_id", b.id, "error", err)
		}
		s.scheduleLivenessCheck(existing)
		return existing
	}
	s.beacons[b.id] = b
	room := b.RoomID()
	if s.beaconsByRoom[room] == nil {
		s.beaconsByRoom[room] = make(map[ref.BeaconID]struct{})
	}
	s.beaconsByRoom[room][b.id] = struct{}{}
	s.mu.Unlock()
	s.scheduleLivenessCheck(b)
	return b
}

// OnBeaconNew implements [messaging.BeaconListener]. Beacons from
// other users are ignored.
func (s *Store) OnBeaconNew(event messaging.BeaconInfoEvent) {
	if event.Sender != s.userID {
		return
	}
	s.trackBeacon(event)
	s.recomputeLiveness()
}

// OnBeaconUpdate implements [messaging.BeaconListener]. Updates for
// untracked beacons and stale or mismatched events are ignored.
func (s *Store) OnBeaconUpdate(event messaging.BeaconInfoEvent) {
	id := event.BeaconID()
	s.mu.Lock()
	b, ok := s.beacons[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := b.Update(event); err != nil {
		s.logger.Debug("ignoring beacon update", "beacon_id", id, "error", err)
		return
	}
	s.reactToLiveness(b)
}

// OnBeaconDestroy implements [messaging.BeaconListener].
func (s *Store) OnBeaconDestroy(id ref.BeaconID) {
	s.mu.Lock()
	if _, ok := s.beacons[id]; !ok {
		s.mu.Unlock()
		return
	}
	s.untrackLocked(id)
	s.mu.Unlock()
	s.recomputeLiveness()
}

// OnMembershipChange implements [messaging.BeaconListener]. When the
// user leaves or is banned from a room holding tracked beacons, the
// room's beacons are destroyed locally and liveness is recomputed
// once. Other memberships, users, and rooms are ignored.
func (s *Store) OnMembershipChange(room ref.RoomID, user ref.UserID, membership messaging.Membership) {
	if user != s.userID || !membership.Departed() {
		return
	}
	s.mu.Lock()
	ids := s.beaconsByRoom[room]
	if len(ids) == 0 {
		s.mu.Unlock()
		return
	}
	for id := range ids {
		s.untrackLocked(id)
	}
	s.mu.Unlock()
	s.recomputeLiveness()
}

// untrackLocked drops one beacon and its derived state. Caller holds mu.
func (s *Store) untrackLocked(id ref.BeaconID) {
	b := s.beacons[id]
	delete(s.beacons, id)
	if timer, ok := s.expiryTimers[id]; ok {
		timer.Stop()
		delete(s.expiryTimers, id)
	}
	delete(s.publishFails, id)
	delete(s.updateErrors, id)
	if b != nil {
		room := b.RoomID()
		delete(s.beaconsByRoom[room], id)
		if len(s.beaconsByRoom[room]) == 0 {
			delete(s.beaconsByRoom, room)
		}
	}
}

// scheduleLivenessCheck (re-)arms the timer that fires when b's
// liveness next flips, either the leniency boundary of a
// future-dated start or the expiry instant.
func (s *Store) scheduleLivenessCheck(b *Beacon) {
	now := s.clock.Now()
	next := b.nextLivenessTransition(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.expiryTimers[b.id]; ok {
		timer.Stop()
		delete(s.expiryTimers, b.id)
	}
	if next.IsZero() {
		return
	}
	id := b.id
	s.expiryTimers[b.id] = s.clock.AfterFunc(next.Sub(now), func() {
		s.onLivenessDeadline(id)
	})
}

func (s *Store) onLivenessDeadline(id ref.BeaconID) {
	s.mu.Lock()
	b, ok := s.beacons[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	s.reactToLiveness(b)
}

// reactToLiveness runs after anything that can flip a beacon's
// liveness. A beacon that was live and no longer is gets a stop
// update sent, so other clients see live:false instead of a beacon
// that silently went quiet; the guard inside stopBeacon makes this a
// no-op when the server already knows the beacon is stopped.
func (s *Store) reactToLiveness(b *Beacon) {
	now := s.clock.Now()
	s.mu.Lock()
	_, tracked := s.beacons[b.id]
	wasLive := containsBeaconID(s.liveIDs, b.id)
	s.mu.Unlock()
	if !tracked {
		return
	}
	if wasLive && !b.IsLive(now) {
		if err := s.StopBeacon(s.ctx, b.id); err != nil {
			s.logger.Error("stopping expired beacon", "beacon_id", b.id, "error", err)
		}
	}
	s.scheduleLivenessCheck(b)
	s.recomputeLiveness()
}

// recomputeLiveness rebuilds the live device-owned beacon set and
// reacts to what changed: subscribers hear about a different set, a
// beacon joining an active watch gets the current position
// published to it, and the watch itself starts or stops as the set
// becomes non-empty or empty. Callers must not hold mu.
func (s *Store) recomputeLiveness() {
	owned := make(map[ref.EventID]struct{})
	for _, id := range s.ledger.EventIDs(s.ctx) {
		owned[id] = struct{}{}
	}
	now := s.clock.Now()

	s.mu.Lock()
	var live []*Beacon
	for _, b := range s.beacons {
		if !b.IsLive(now) {
			continue
		}
		if _, ok := owned[b.EventID()]; !ok {
			continue
		}
		live = append(live, b)
	}
	sort.Slice(live, func(i, j int) bool {
		a, b := live[i], live[j]
		at, bt := a.Info().StartedAt(), b.Info().StartedAt()
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return a.id.String() < b.id.String()
	})
	newIDs := make([]ref.BeaconID, len(live))
	for i, b := range live {
		newIDs[i] = b.id
	}
	prev := s.liveIDs
	changed := !beaconIDsEqual(prev, newIDs)
	var added []ref.BeaconID
	for _, id := range newIDs {
		if !containsBeaconID(prev, id) {
			added = append(added, id)
		}
	}
	if changed {
		s.liveIDs = newIDs
	}
	current := s.liveIDs
	monitoring := s.watchStop != nil
	s.mu.Unlock()

	if changed {
		s.emitLivenessChange(current)
	}
	if monitoring && len(added) > 0 {
		s.publishCurrentPosition()
	}
	// Level-triggered, not edge-triggered on the set becoming
	// non-empty: a fatal geolocation error closes the watch without a
	// recompute, and the next live beacon must reopen it even though
	// the set never emptied in between.
	if len(current) > 0 && !monitoring {
		s.startPolling()
	} else if len(current) == 0 && monitoring {
		s.stopPolling()
	}
}

// StopBeacon publishes a live:false replacement for the beacon's
// current content and releases the device's ownership claim. A
// beacon that is unknown or whose live flag is already off is left
// alone. A send failure is recorded as an update error for the
// beacon and returned.
func (s *Store) StopBeacon(ctx context.Context, id ref.BeaconID) error {
	s.mu.Lock()
	b, ok := s.beacons[id]
	s.mu.Unlock()
	if !ok || !b.Info().Live {
		return nil
	}
	stopped := b.Info().Stopped()
	if _, err := s.client.SetBeaconInfo(ctx, id.Room(), stopped); err != nil {
		s.mu.Lock()
		s.updateErrors[id] = err
		s.mu.Unlock()
		s.logger.Error("stopping beacon", "beacon_id", id, "error", err)
		s.emitBeaconUpdateError(id, true)
		return fmt.Errorf("stopping beacon %s: %w", id, err)
	}
	if err := s.ledger.Remove(ctx, b.EventID()); err != nil {
		s.logger.Error("releasing beacon ownership", "beacon_id", id, "error", err)
	}
	s.mu.Lock()
	_, hadError := s.updateErrors[id]
	delete(s.updateErrors, id)
	s.mu.Unlock()
	if hadError {
		s.emitBeaconUpdateError(id, false)
	}
	return nil
}

// CreateLiveBeacon starts sharing live location in room: any live
// beacons this device already has there are stopped first, then a
// fresh beacon-info event is published and claimed in the ledger.
func (s *Store) CreateLiveBeacon(ctx context.Context, room ref.RoomID, content messaging.BeaconInfo) error {
	for _, id := range s.LiveBeaconIDs(room) {
		if err := s.StopBeacon(ctx, id); err != nil {
			return err
		}
	}
	eventID, err := s.client.CreateBeacon(ctx, room, content)
	if err != nil {
		return fmt.Errorf("creating beacon in %s: %w", room, err)
	}
	if err := s.ledger.Add(ctx, eventID); err != nil {
		s.logger.Error("recording beacon ownership", "event_id", eventID, "error", err)
	}
	return nil
}

// ResetLocationPublishError clears the beacon's consecutive-failure
// state, notifies subscribers, and, when a watch is active,
// immediately publishes the current position so the beacon catches
// up without waiting for the next fix.
func (s *Store) ResetLocationPublishError(id ref.BeaconID) {
	s.mu.Lock()
	tripped := s.publishFails[id] >= s.threshold
	delete(s.publishFails, id)
	monitoring := s.watchStop != nil
	s.mu.Unlock()
	// Clearing a sub-threshold count is not an observable state
	// change; subscribers only hear about the breaker opening and
	// closing.
	if tripped {
		s.emitLocationPublishError(id)
	}
	if monitoring {
		s.publishCurrentPosition()
	}
}

// LiveBeaconIDs returns the device's live beacons, newest first,
// optionally restricted to the given rooms. With no filter it
// returns the store's shared snapshot, which callers must not
// mutate; the snapshot is replaced only when the set actually
// changes.
func (s *Store) LiveBeaconIDs(rooms ...ref.RoomID) []ref.BeaconID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rooms) == 0 {
		return s.liveIDs
	}
	var out []ref.BeaconID
	for _, id := range s.liveIDs {
		for _, room := range rooms {
			if id.Room() == room {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// HasLiveBeacons reports whether the device has any live beacons,
// optionally restricted to the given rooms.
func (s *Store) HasLiveBeacons(rooms ...ref.RoomID) bool {
	return len(s.LiveBeaconIDs(rooms...)) > 0
}

// BeaconByID returns the tracked beacon, or nil.
func (s *Store) BeaconByID(id ref.BeaconID) *Beacon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beacons[id]
}

// HasLocationPublishError reports whether the beacon is currently
// circuit-broken out of the publish fan-out.
func (s *Store) HasLocationPublishError(id ref.BeaconID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishFails[id] >= s.threshold
}

// LiveBeaconIDsWithPublishError returns the live beacons currently
// circuit-broken, optionally restricted to the given rooms.
func (s *Store) LiveBeaconIDsWithPublishError(rooms ...ref.RoomID) []ref.BeaconID {
	ids := s.LiveBeaconIDs(rooms...)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ref.BeaconID
	for _, id := range ids {
		if s.publishFails[id] >= s.threshold {
			out = append(out, id)
		}
	}
	return out
}

// HasLocationPublishErrors reports whether any live beacon is
// circuit-broken, optionally restricted to the given rooms.
func (s *Store) HasLocationPublishErrors(rooms ...ref.RoomID) bool {
	return len(s.LiveBeaconIDsWithPublishError(rooms...)) > 0
}

// UpdateError returns the error recorded for the beacon's most
// recent failed stop request, or nil.
func (s *Store) UpdateError(id ref.BeaconID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateErrors[id]
}

func containsBeaconID(ids []ref.BeaconID, id ref.BeaconID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func beaconIDsEqual(a, b []ref.BeaconID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
