// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package beacon tracks the current user's live-location beacons and
// drives position publishing for the ones this device created.
//
// [Store] is the subsystem's heart. It watches room state and the
// sync stream for the user's beacon-info events, keeps the derived
// set of live device-owned beacons (newest first), and while that set
// is non-empty runs a geolocation watch: the first fix publishes
// immediately, later fixes coalesce through a trailing-edge debounce,
// and a periodic check re-publishes the last known position when the
// device has not moved for a while. Each publish fans out to every
// healthy live beacon independently; a beacon that fails two
// consecutive publishes is circuit-broken out of the fan-out until
// [Store.ResetLocationPublishError].
//
// Which beacons this device is responsible for is decided by the
// [Ledger]: a persisted list of beacon-info event IDs created here.
// A beacon that is live server-side but absent from the ledger
// belongs to another of the user's devices and is left alone.
//
// The store owns each [Beacon] entity and schedules its expiry
// itself on the injected clock, so liveness transitions are
// deterministic under test. All dependencies — sync client,
// geolocation provider, storage, clock — are injected through
// [Config].
package beacon
