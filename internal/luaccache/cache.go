// Copyright 2026 The luac51 Authors
// SPDX-License-Identifier: MIT

// Package luaccache implements an optional on-disk cache mapping Lua
// source bytes to their compiled binary chunk, so `luac --cache DIR`
// can skip recompiling sources it has already seen. It gives the
// content-addressed "avoid recomputation" idea behind the teacher
// project's store a small, in-scope home inside the compiler itself,
// grounded on `internal/backend`'s `sqlitemigration.Pool` usage
// without any of that package's store/derivation machinery.
package luaccache

import (
	"context"
	"fmt"
	"hash/fnv"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitemigration"
	"zombiezen.com/go/sqlite/sqlitex"
	"zombiezen.com/go/xcontext"
)

// Cache is a handle to a compile cache database.
type Cache struct {
	pool *sqlitemigration.Pool
}

var schema = sqlitemigration.Schema{
	Migrations: []string{
		`CREATE TABLE chunks (
			source_hash INTEGER PRIMARY KEY,
			source_len INTEGER NOT NULL,
			chunk BLOB NOT NULL
		);`,
	},
}

func prepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA journal_mode = wal;", nil); err != nil {
		return err
	}
	return sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = on;", nil)
}

// Open opens (creating if necessary) the compile cache database at
// path, applying schema migrations as needed.
func Open(path string) *Cache {
	return &Cache{
		pool: sqlitemigration.NewPool(path, schema, sqlitemigration.Options{
			Flags:       sqlite.OpenCreate | sqlite.OpenReadWrite,
			PrepareConn: prepareConn,
		}),
	}
}

// Close releases the cache's database connections. It detaches ctx
// with [xcontext.Detach] before running a final PRAGMA optimize, so a
// caller cancelling the outer context (e.g. handling SIGINT mid-run)
// doesn't abort the cache's own cleanup.
func (c *Cache) Close(ctx context.Context) error {
	ctx = xcontext.Detach(ctx)
	if conn, err := c.pool.Get(ctx); err == nil {
		sqlitex.ExecuteTransient(conn, "PRAGMA optimize;", nil)
		c.pool.Put(conn)
	}
	return c.pool.Close()
}

// sourceHash returns the FNV-1a hash of source, matching the cheap
// non-cryptographic hash the teacher's own store code favors for keys
// that don't need collision resistance against an adversary.
func sourceHash(source []byte) int64 {
	h := fnv.New64a()
	h.Write(source)
	return int64(h.Sum64())
}

// Lookup returns the previously cached binary chunk for source, if
// any. ok is false on a cache miss; it is not an error.
func (c *Cache) Lookup(ctx context.Context, source []byte) (chunk []byte, ok bool, err error) {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("luaccache: lookup: %w", err)
	}
	defer c.pool.Put(conn)

	hash := sourceHash(source)
	err = sqlitex.ExecuteTransient(conn, `SELECT chunk FROM chunks WHERE source_hash = :hash AND source_len = :len;`, &sqlitex.ExecOptions{
		Named: map[string]any{
			":hash": hash,
			":len":  int64(len(source)),
		},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			buf := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, buf)
			chunk = buf
			ok = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("luaccache: lookup: %w", err)
	}
	return chunk, ok, nil
}

// Store records chunk as the compiled form of source, replacing any
// previous entry for the same source.
func (c *Cache) Store(ctx context.Context, source, chunk []byte) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("luaccache: store: %w", err)
	}
	defer c.pool.Put(conn)

	err = sqlitex.ExecuteTransient(conn, `INSERT OR REPLACE INTO chunks (source_hash, source_len, chunk) VALUES (:hash, :len, :chunk);`, &sqlitex.ExecOptions{
		Named: map[string]any{
			":hash":  sourceHash(source),
			":len":   int64(len(source)),
			":chunk": chunk,
		},
	})
	if err != nil {
		return fmt.Errorf("luaccache: store: %w", err)
	}
	return nil
}
