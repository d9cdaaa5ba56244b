// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"sync"

	"github.com/lodestar-chat/lodestar/lib/ref"
)

// registry holds the subscribers for one kind of store notification.
// Subscribing returns a cancel func; emission snapshots the current
// set so callbacks may subscribe or unsubscribe reentrantly.
type registry[T any] struct {
	mu    sync.Mutex
	next  int
	funcs map[int]T
}

func (r *registry[T]) subscribe(fn T) (cancel func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs == nil {
		r.funcs = make(map[int]T)
	}
	id := r.next
	r.next++
	r.funcs[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.funcs, id)
	}
}

func (r *registry[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, 0, len(r.funcs))
	for _, fn := range r.funcs {
		out = append(out, fn)
	}
	return out
}

// OnLivenessChange registers fn to run whenever the set of live
// device-owned beacons changes. fn receives the new set, newest
// first; it must treat the slice as read-only.
func (s *Store) OnLivenessChange(fn func(ids []ref.BeaconID)) (cancel func()) {
	return s.livenessSubs.subscribe(fn)
}

// OnMonitoringChange registers fn to run when the geolocation watch
// starts or stops.
func (s *Store) OnMonitoringChange(fn func(monitoring bool)) (cancel func()) {
	return s.monitoringSubs.subscribe(fn)
}

// OnLocationPublishError registers fn to run when a beacon's
// location publishing crosses the consecutive-failure threshold, and
// again when the condition clears. Query
// [Store.HasLocationPublishError] for the beacon's current state.
func (s *Store) OnLocationPublishError(fn func(id ref.BeaconID)) (cancel func()) {
	return s.publishErrSubs.subscribe(fn)
}

// OnBeaconUpdateError registers fn to run when a stop request for a
// beacon fails (hasError true), and when a later stop succeeds and
// clears the condition (hasError false).
func (s *Store) OnBeaconUpdateError(fn func(id ref.BeaconID, hasError bool)) (cancel func()) {
	return s.updateErrSubs.subscribe(fn)
}

func (s *Store) emitLivenessChange(ids []ref.BeaconID) {
	for _, fn := range s.livenessSubs.snapshot() {
		fn(ids)
	}
}

func (s *Store) emitMonitoringChange(monitoring bool) {
	for _, fn := range s.monitoringSubs.snapshot() {
		fn(monitoring)
	}
}

func (s *Store) emitLocationPublishError(id ref.BeaconID) {
	for _, fn := range s.publishErrSubs.snapshot() {
		fn(id)
	}
}

func (s *Store) emitBeaconUpdateError(id ref.BeaconID, hasError bool) {
	for _, fn := range s.updateErrSubs.snapshot() {
		fn(id, hasError)
	}
}
