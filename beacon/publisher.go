// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"sync"
	"time"

	"github.com/lodestar-chat/lodestar/lib/geo"
	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/messaging"
)

// IsMonitoringLiveLocation reports whether a geolocation watch is
// active.
func (s *Store) IsMonitoringLiveLocation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watchStop != nil
}

// startPolling opens the geolocation watch and the staleness ticker.
// A watch that cannot be opened is handled as a fatal geolocation
// error. Callers must not hold mu.
func (s *Store) startPolling() {
	s.mu.Lock()
	if s.watchStop != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	stop, err := s.locator.Watch(s.onPosition, s.onGeoError)
	if err != nil {
		if !geo.IsFatal(err) {
			err = geo.NewError(geo.CodeUnavailable, err.Error())
		}
		s.onGeoError(err)
		return
	}

	s.mu.Lock()
	s.watchStop = stop
	s.firstFixSeen = false
	s.staleTicker = s.clock.NewTicker(s.staleGap)
	s.staleDone = make(chan struct{})
	ticks, done := s.staleTicker.C, s.staleDone
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticks:
				s.republishIfStale()
			}
		}
	}()
	s.emitMonitoringChange(true)
}

// stopPolling tears down the watch, ticker, and any pending
// debounced publish. Callers must not hold mu.
func (s *Store) stopPolling() {
	s.mu.Lock()
	if s.watchStop == nil {
		s.mu.Unlock()
		return
	}
	stop := s.watchStop
	s.watchStop = nil
	s.staleTicker.Stop()
	close(s.staleDone)
	s.staleTicker, s.staleDone = nil, nil
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.havePending = false
	s.firstFixSeen = false
	s.haveLast = false
	s.lastPosition = geo.Position{}
	s.lastPublished = time.Time{}
	s.mu.Unlock()

	stop()
	s.emitMonitoringChange(false)
}

// onPosition receives fixes from the geolocation watch. The first
// fix after the watch opens publishes immediately so beacons are not
// blank for a debounce window; later fixes coalesce, each one
// replacing the pending position and restarting the quiet period.
func (s *Store) onPosition(position geo.Position) {
	s.mu.Lock()
	if !s.firstFixSeen {
		s.firstFixSeen = true
		s.mu.Unlock()
		s.publish(position)
		return
	}
	s.pending = position
	s.havePending = true
	if s.debounceTimer == nil {
		s.debounceTimer = s.clock.AfterFunc(s.debounce, s.publishPending)
	} else {
		s.debounceTimer.Reset(s.debounce)
	}
	s.mu.Unlock()
}

func (s *Store) publishPending() {
	s.mu.Lock()
	if s.watchStop == nil || !s.havePending {
		s.mu.Unlock()
		return
	}
	position := s.pending
	s.havePending = false
	s.mu.Unlock()
	s.publish(position)
}

// onGeoError receives failures from the geolocation watch. Permanent
// conditions end live sharing entirely: the watch stops and every
// live beacon gets a stop update, since a beacon that can never be
// fed again should not look live to the room. Transient conditions
// are logged and the watch rides them out.
func (s *Store) onGeoError(err error) {
	s.logger.Error("geolocation failed", "error", err)
	if !geo.IsFatal(err) {
		return
	}
	ids := s.LiveBeaconIDs()
	s.stopPolling()
	for _, id := range ids {
		if stopErr := s.StopBeacon(s.ctx, id); stopErr != nil {
			s.logger.Error("stopping beacon after geolocation failure",
				"beacon_id", id, "error", stopErr)
		}
	}
}

// publishCurrentPosition fetches a one-off fix and publishes it,
// bypassing the debounce. Used when a beacon joins an active watch
// and after a publish-error reset.
func (s *Store) publishCurrentPosition() {
	position, err := s.locator.Current(s.ctx)
	if err != nil {
		s.onGeoError(err)
		return
	}
	s.publish(position)
}

// republishIfStale re-sends the last known position when nothing has
// been published for a full staleness interval, so a stationary
// device's beacons keep proving they are alive.
func (s *Store) republishIfStale() {
	s.mu.Lock()
	if s.watchStop == nil || !s.haveLast {
		s.mu.Unlock()
		return
	}
	if s.clock.Now().Sub(s.lastPublished) < s.staleGap {
		s.mu.Unlock()
		return
	}
	position := s.lastPosition
	s.mu.Unlock()
	s.publish(position)
}

// publish fans the position out to every healthy live beacon. The
// last-published timestamp is recorded before any send so a slow or
// failing fan-out does not trip the staleness republisher on top of
// it. Sends run concurrently and settle independently; one beacon's
// failure neither aborts the others nor surfaces to the caller,
// failing beacons are instead circuit-broken individually.
func (s *Store) publish(position geo.Position) {
	now := s.clock.Now()

	type target struct {
		id      ref.BeaconID
		room    ref.RoomID
		eventID ref.EventID
		info    messaging.LocationInfo
	}
	s.mu.Lock()
	s.lastPublished = now
	s.lastPosition = position
	s.haveLast = true
	var targets []target
	for _, id := range s.liveIDs {
		if s.publishFails[id] >= s.threshold {
			continue
		}
		if _, broken := s.updateErrors[id]; broken {
			continue
		}
		b, ok := s.beacons[id]
		if !ok {
			continue
		}
		targets = append(targets, target{
			id:      id,
			room:    id.Room(),
			eventID: b.EventID(),
			info: messaging.LocationInfo{
				URI:         position.URI(),
				Description: b.Info().Description,
			},
		})
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			content := messaging.NewLocationReport(t.eventID, t.info.URI, now)
			content.Location.Description = t.info.Description
			if _, err := s.client.SendLocation(s.ctx, t.room, content); err != nil {
				s.recordPublishFailure(t.id, err)
			} else {
				s.recordPublishSuccess(t.id)
			}
		}(t)
	}
	wg.Wait()
}

func (s *Store) recordPublishFailure(id ref.BeaconID, err error) {
	s.logger.Error("publishing location", "beacon_id", id, "error", err)
	s.mu.Lock()
	s.publishFails[id]++
	crossed := s.publishFails[id] == s.threshold
	s.mu.Unlock()
	if crossed {
		s.emitLocationPublishError(id)
	}
}

func (s *Store) recordPublishSuccess(id ref.BeaconID) {
	s.mu.Lock()
	wasBroken := s.publishFails[id] >= s.threshold
	delete(s.publishFails, id)
	s.mu.Unlock()
	if wasBroken {
		s.emitLocationPublishError(id)
	}
}
