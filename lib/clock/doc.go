// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction so that the
// beacon store's timers — expiry scheduling, publish debouncing, the
// stale-position ticker — are deterministic under test.
//
// Production code accepts a [Clock] instead of calling time.Now,
// time.AfterFunc, or time.NewTicker directly. [Real] provides the
// standard library behavior. [Fake] provides a clock that advances
// only when Advance is called.
//
// # Wiring
//
// Components carry a Clock field:
//
//	store := beacon.New(beacon.Config{Clock: clock.Real(), ...})
//
// Tests substitute a fake and drive it explicitly:
//
//	c := clock.Fake(time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC))
//	// ... start the component ...
//	c.WaitForTimers(1)
//	c.Advance(30 * time.Second)
//
// When a goroutine registers a timer or ticker on a FakeClock, the
// registration is visible to WaitForTimers. Waiting for a known timer
// count before advancing removes the race between registration and
// advancement that time.Sleep-based tests suffer from.
package clock
