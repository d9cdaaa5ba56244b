// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identifiers for the
// Matrix objects the location-sharing subsystem works with: rooms,
// users, events, and beacons.
//
// Raw identifier strings arrive from the sync client and the
// homeserver; they are parsed into these value types at the boundary
// and stay typed from then on. All constructors validate structure
// (sigil prefix, localpart, server name) and return errors for
// malformed input. Once constructed, a ref is immutable.
//
// [BeaconID] is the composite identity of one user's live-location
// broadcast in one room: the room ID and the broadcasting user's ID
// joined with '_'. A beacon keeps its identity across beacon-info
// renewals — only the underlying state event ID changes.
//
// JSON marshaling uses the canonical identifier string via
// encoding.TextMarshaler.
package ref
