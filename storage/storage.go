// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import "context"

// KV is persisted string-to-string storage. Implementations must be
// safe for concurrent use.
type KV interface {
	// GetItem returns the value stored under key. ok is false when
	// the key has never been set; err reports storage-level failures
	// only, never absence.
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)

	// SetItem stores value under key, replacing any previous value.
	SetItem(ctx context.Context, key, value string) error
}
