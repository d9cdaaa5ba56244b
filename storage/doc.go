// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage provides the persisted key-value surface the beacon
// subsystem uses to remember state across process restarts — chiefly
// the device ownership ledger, the list of beacon-info event IDs this
// device created.
//
// [KV] is the interface; [Memory] is the in-process implementation
// for tests, [SQLite] the durable one backed by lib/sqlitepool.
// Values are opaque strings; the ledger stores a JSON array and is
// responsible for tolerating corrupt content, so implementations
// never interpret what they hold.
package storage
