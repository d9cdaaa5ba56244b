// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/storage"
)

// ledgerKey is the storage key holding the JSON array of beacon-info
// event IDs created on this device.
const ledgerKey = "live_beacon_created_ids"

// Ledger records which beacon-info events this device created, so
// the store can tell its own beacons apart from the same user's
// beacons on other devices. The backing value is a JSON array of
// event IDs under a single key; a corrupt or unreadable value is
// treated as empty rather than wedging the store, and is repaired on
// the next write.
type Ledger struct {
	kv     storage.KV
	logger *slog.Logger
}

// NewLedger wraps kv as the device ownership ledger. A nil logger
// discards.
func NewLedger(kv storage.KV, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ledger{kv: kv, logger: logger}
}

// EventIDs returns the recorded event IDs in insertion order.
// Storage errors and malformed values yield an empty ledger.
func (l *Ledger) EventIDs(ctx context.Context) []ref.EventID {
	value, ok, err := l.kv.GetItem(ctx, ledgerKey)
	if err != nil {
		l.logger.Error("reading beacon ledger", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var raw []string
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		l.logger.Warn("discarding corrupt beacon ledger", "error", err)
		return nil
	}
	ids := make([]ref.EventID, 0, len(raw))
	for _, entry := range raw {
		id, err := ref.ParseEventID(entry)
		if err != nil {
			l.logger.Warn("skipping invalid beacon ledger entry", "entry", entry, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Contains reports whether id is recorded.
func (l *Ledger) Contains(ctx context.Context, id ref.EventID) bool {
	for _, recorded := range l.EventIDs(ctx) {
		if recorded == id {
			return true
		}
	}
	return false
}

// Add records id. Adding an ID already present is a no-op.
func (l *Ledger) Add(ctx context.Context, id ref.EventID) error {
	ids := l.EventIDs(ctx)
	for _, recorded := range ids {
		if recorded == id {
			return nil
		}
	}
	return l.write(ctx, append(ids, id))
}

// Remove deletes id from the ledger if present.
func (l *Ledger) Remove(ctx context.Context, id ref.EventID) error {
	ids := l.EventIDs(ctx)
	kept := ids[:0]
	for _, recorded := range ids {
		if recorded != id {
			kept = append(kept, recorded)
		}
	}
	if len(kept) == len(ids) {
		return nil
	}
	return l.write(ctx, kept)
}

func (l *Ledger) write(ctx context.Context, ids []ref.EventID) error {
	encoded, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding beacon ledger: %w", err)
	}
	if err := l.kv.SetItem(ctx, ledgerKey, string(encoded)); err != nil {
		return fmt.Errorf("writing beacon ledger: %w", err)
	}
	return nil
}
