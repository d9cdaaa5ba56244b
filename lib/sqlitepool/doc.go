// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the Lodestar-standard SQLite connection
// pool for client-side persisted state.
//
// It wraps zombiezen.com/go/sqlite with fixed defaults: WAL journal
// mode so reads never block the writer, NORMAL synchronous for
// process-crash durability without per-commit fsync cost, a 5 second
// busy timeout, and in-memory temp storage. The device ownership
// ledger is the main consumer; anything else in the client that needs
// local structured storage goes through the same pool.
//
// The pool is built on sqlitex.Pool: callers [Pool.Take] a
// connection, do their work, and [Pool.Put] it back. Connections are
// not safe for concurrent use — one goroutine per taken connection.
//
// The package is intentionally thin. It applies pragmas and exposes
// the zombiezen types directly; consumers write SQL with
// sqlitex.Execute. No query builder, no ORM.
package sqlitepool
