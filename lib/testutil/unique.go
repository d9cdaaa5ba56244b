// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"sync/atomic"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use it when tests need event IDs
// or message bodies that must not collide across test cases.
//
//	eventID := "$" + testutil.UniqueID("event")  // "$event-1", "$event-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}
