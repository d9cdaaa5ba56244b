// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package geo defines the geolocation surface the beacon store
// consumes: the [Position] sample type with its geo URI rendering,
// the [Locator] device interface, and the typed error taxonomy that
// splits fatal failures (no geolocation capability, permission
// denied) from transient ones (timeouts, momentary fix loss).
//
// The platform geolocation provider is an external collaborator;
// production builds wrap whatever the host environment offers behind
// [Locator]. [Walker] is a deterministic in-process implementation
// used by tests and the location-sim command.
package geo
