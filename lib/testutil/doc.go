// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Lodestar packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with a time.After fallback) so
// individual tests never hang on a channel that a bug left silent.
// These helpers are the only place in the test suite where real
// wall-clock timeouts appear; everything else runs on lib/clock's
// FakeClock.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation — event IDs, transaction IDs, message bodies.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Lodestar-internal dependencies.
package testutil
