// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging defines the Matrix-facing surface of the
// live-location subsystem: the beacon wire content types and the
// interfaces through which the beacon store talks to the underlying
// sync client.
//
// The sync client itself — /sync long-polling, room state
// bookkeeping, event emission — lives outside this repository. The
// store consumes it through three narrow interfaces: [RoomSource]
// (who am I, which rooms are visible, what beacon-info state do they
// hold), [BeaconStream] (lifecycle notifications for beacon-info
// state events and membership changes), and [Sender] (the three
// commands the store issues: publish a location sample, update a
// beacon-info state event, create a new one). [Client] is their
// union, which a real sync client adapter implements.
//
// Content types follow MSC3672 (live location beacons) and MSC3488
// (extensible location events): [BeaconInfo] is the beacon-info state
// payload, [LocationContent] one location sample referencing its
// beacon-info event via an m.reference relation.
//
// Homeserver API errors surface as [*MatrixError] with the standard
// Matrix error code; [IsMatrixError] tests for a specific code.
package messaging
