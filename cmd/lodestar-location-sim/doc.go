// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Command lodestar-location-sim runs the live-location subsystem
// end to end against a simulated homeserver and a random-walk
// geolocation source. It creates a live beacon, lets the store
// publish the walk until the share times out or the process is
// interrupted, and logs every event that would have gone over the
// wire.
//
// Useful for eyeballing debounce, staleness republishing, and
// expiry behavior with real wall-clock timing:
//
//	lodestar-location-sim --share-duration 2m --verbose
package main
