// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package beacon

import (
	"context"
	"testing"

	"github.com/lodestar-chat/lodestar/lib/ref"
	"github.com/lodestar-chat/lodestar/storage"
)

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(storage.NewMemory(), nil)

	first := ref.MustParseEventID("$first:server.org")
	second := ref.MustParseEventID("$second:server.org")

	if ledger.Contains(ctx, first) {
		t.Fatal("empty ledger should not contain anything")
	}
	if err := ledger.Add(ctx, first); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ledger.Add(ctx, second); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ledger.Add(ctx, first); err != nil {
		t.Fatalf("re-adding existing ID: %v", err)
	}

	ids := ledger.EventIDs(ctx)
	if len(ids) != 2 || ids[0] != first || ids[1] != second {
		t.Fatalf("EventIDs = %v, want [%s %s]", ids, first, second)
	}

	if err := ledger.Remove(ctx, first); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ledger.Contains(ctx, first) {
		t.Fatal("removed ID still present")
	}
	if !ledger.Contains(ctx, second) {
		t.Fatal("unrelated ID lost by Remove")
	}
	if err := ledger.Remove(ctx, first); err != nil {
		t.Fatalf("removing an absent ID: %v", err)
	}
}

func TestLedgerToleratesCorruptValue(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	if err := kv.SetItem(ctx, ledgerKey, "{not json"); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	ledger := NewLedger(kv, nil)

	if got := ledger.EventIDs(ctx); len(got) != 0 {
		t.Fatalf("corrupt ledger should read as empty, got %v", got)
	}

	// The next write repairs the stored value.
	id := ref.MustParseEventID("$fresh:server.org")
	if err := ledger.Add(ctx, id); err != nil {
		t.Fatalf("Add over corrupt value: %v", err)
	}
	ids := ledger.EventIDs(ctx)
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("EventIDs after repair = %v, want [%s]", ids, id)
	}
}

func TestLedgerSkipsInvalidEntries(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	if err := kv.SetItem(ctx, ledgerKey, `["$good:server.org", "not-an-event-id"]`); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	ledger := NewLedger(kv, nil)

	ids := ledger.EventIDs(ctx)
	if len(ids) != 1 || ids[0].String() != "$good:server.org" {
		t.Fatalf("EventIDs = %v, want just the valid entry", ids)
	}
}
