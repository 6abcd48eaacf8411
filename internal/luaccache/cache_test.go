// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

package luaccache

import (
	"context"
	"path/filepath"
	"testing"
)

func TestCacheStoreAndLookup(t *testing.T) {
	ctx := context.Background()
	c := Open(filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close(ctx)

	source := []byte("local x = 1")
	chunk := []byte{0x1B, 'L', 'u', 'a', 0x51}

	if _, ok, err := c.Lookup(ctx, source); err != nil {
		t.Fatalf("Lookup before Store: %v", err)
	} else if ok {
		t.Fatal("Lookup before Store: ok = true, want false")
	}

	if err := c.Store(ctx, source, chunk); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, ok, err := c.Lookup(ctx, source)
	if err != nil {
		t.Fatalf("Lookup after Store: %v", err)
	}
	if !ok {
		t.Fatal("Lookup after Store: ok = false, want true")
	}
	if string(got) != string(chunk) {
		t.Errorf("Lookup after Store = %v, want %v", got, chunk)
	}
}

func TestCacheStoreReplacesExistingEntry(t *testing.T) {
	ctx := context.Background()
	c := Open(filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close(ctx)

	source := []byte("local x = 1")
	if err := c.Store(ctx, source, []byte("first")); err != nil {
		t.Fatalf("Store first: %v", err)
	}
	if err := c.Store(ctx, source, []byte("second")); err != nil {
		t.Fatalf("Store second: %v", err)
	}
	got, ok, err := c.Lookup(ctx, source)
	if err != nil || !ok {
		t.Fatalf("Lookup: %v, ok=%v", err, ok)
	}
	if string(got) != "second" {
		t.Errorf("Lookup = %q, want %q", got, "second")
	}
}

func TestCacheLookupDistinguishesSourceLength(t *testing.T) {
	// A lookup for a different, longer source must not return the
	// stored chunk. "a" and "ab" do not collide under sourceHash, so
	// this checks the miss itself; the source_len part of the lookup
	// key, which guards against real hash collisions, is not exercised.
	ctx := context.Background()
	c := Open(filepath.Join(t.TempDir(), "cache.db"))
	defer c.Close(ctx)

	if err := c.Store(ctx, []byte("a"), []byte("chunk-a")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, ok, err := c.Lookup(ctx, []byte("ab")); err != nil {
		t.Fatalf("Lookup: %v", err)
	} else if ok {
		t.Error("Lookup(\"ab\") found a stored chunk for a different source")
	}
}

func TestSourceHashIsDeterministic(t *testing.T) {
	a := sourceHash([]byte("hello"))
	b := sourceHash([]byte("hello"))
	if a != b {
		t.Errorf("sourceHash(\"hello\") not deterministic: %d != %d", a, b)
	}
	if sourceHash([]byte("hello")) == sourceHash([]byte("world")) {
		t.Error("sourceHash(\"hello\") == sourceHash(\"world\"), want different hashes")
	}
}
