// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localcache

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/proctor/lib/clock"
	"github.com/bureau-foundation/proctor/lib/codec"
	"github.com/bureau-foundation/proctor/lib/secret"
	"github.com/bureau-foundation/proctor/lib/sqlitepool"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("localcache: entry not found")

	// ErrCorrupt is returned when an entry fails its integrity check.
	ErrCorrupt = errors.New("localcache: entry corrupt")
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key        TEXT PRIMARY KEY,
	header     BLOB NOT NULL,
	payload    BLOB NOT NULL,
	written_at INTEGER NOT NULL
);
`

// headerVersion is bumped on incompatible header changes.
const headerVersion = 1

type entryHeader struct {
	Version     int         `cbor:"v"`
	Compression Compression `cbor:"c"`
	Size        int64       `cbor:"n"`
	Digest      []byte      `cbor:"d"`
	Sealed      bool        `cbor:"s"`
	MimeHint    string      `cbor:"m,omitempty"`
	Label       string      `cbor:"l,omitempty"`
}

// integrityKey is the BLAKE3 key for entry digests.
var integrityKey = [32]byte{
	'p', 'r', 'o', 'c', 't', 'o', 'r', '.', 'l', 'o', 'c', 'a', 'l', 'c', 'a', 'c',
	'h', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

func integrityDigest(data []byte) []byte {
	hasher, err := blake3.NewKeyed(integrityKey[:])
	if err != nil {
		panic("localcache: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}

// Meta is caller metadata stored alongside an entry.
type Meta struct {
	MimeHint string

	// Label is an opaque caller string, such as a content digest.
	Label string
}

// Entry describes a stored entry.
type Entry struct {
	Key         string
	Size        int64
	StoredSize  int64
	Compression Compression
	Sealed      bool
	Digest      string
	WrittenAt   time.Time
	Meta
}

// Config configures a Store.
type Config struct {
	// Path is the database file.
	Path string

	// Key optionally enables at-rest sealing. It must be KeySize
	// bytes. The Store takes ownership and closes it on Close.
	Key *secret.Buffer

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is a durable keyed byte store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	sealer *sealer
	clock  clock.Clock
	logger *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open opens or creates the cache database.
func Open(config Config) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	var entrySealer *sealer
	if config.Key != nil {
		var err error
		entrySealer, err = newSealer(config.Key)
		if err != nil {
			return nil, fmt.Errorf("localcache: %w", err)
		}
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   config.Path,
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		if entrySealer != nil {
			entrySealer.close()
		}
		return nil, fmt.Errorf("localcache: %w", err)
	}
	return &Store{pool: pool, sealer: entrySealer, clock: config.Clock, logger: logger}, nil
}

// Close closes the database and zeroes the cache key. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.pool.Close()
		if s.sealer != nil {
			if err := s.sealer.close(); s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}

// Sealed reports whether the store seals payloads.
func (s *Store) Sealed() bool { return s.sealer != nil }

// Put stores value under key, replacing any existing entry.
func (s *Store) Put(ctx context.Context, key string, value []byte, meta Meta) error {
	payload, compression, err := compressAuto(value, meta.MimeHint)
	if err != nil {
		return fmt.Errorf("localcache: put %s: %w", key, err)
	}
	if payload == nil {
		payload = []byte{}
	}
	if s.sealer != nil {
		payload, err = s.sealer.seal(key, payload)
		if err != nil {
			return fmt.Errorf("localcache: put %s: %w", key, err)
		}
	}

	header, err := codec.Marshal(entryHeader{
		Version:     headerVersion,
		Compression: compression,
		Size:        int64(len(value)),
		Digest:      integrityDigest(value),
		Sealed:      s.sealer != nil,
		MimeHint:    meta.MimeHint,
		Label:       meta.Label,
	})
	if err != nil {
		return fmt.Errorf("localcache: encoding header for %s: %w", key, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("localcache: put %s: %w", key, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO entries (key, header, payload, written_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET header = excluded.header,
		   payload = excluded.payload, written_at = excluded.written_at`,
		&sqlitex.ExecOptions{Args: []any{key, header, payload, s.clock.Now().UnixNano()}})
	if err != nil {
		return fmt.Errorf("localcache: put %s: %w", key, err)
	}
	s.logger.Debug("cache entry written", "key", key, "size", len(value),
		"stored", len(payload), "compression", compression)
	return nil
}

// Get returns the value stored under key. Returns ErrNotFound if
// absent and an error matching ErrCorrupt if the entry fails to
// decode or verify.
func (s *Store) Get(ctx context.Context, key string) ([]byte, Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("localcache: get %s: %w", key, err)
	}
	defer s.pool.Put(conn)

	var (
		found     bool
		rawHeader []byte
		payload   []byte
		writtenAt int64
	)
	err = sqlitex.Execute(conn,
		`SELECT header, payload, written_at FROM entries WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				rawHeader = readBlob(stmt, 0)
				payload = readBlob(stmt, 1)
				writtenAt = stmt.ColumnInt64(2)
				return nil
			},
		})
	if err != nil {
		return nil, Entry{}, fmt.Errorf("localcache: get %s: %w", key, err)
	}
	if !found {
		return nil, Entry{}, ErrNotFound
	}

	header, entry, err := decodeEntry(key, rawHeader, len(payload), writtenAt)
	if err != nil {
		return nil, Entry{}, err
	}
	value, err := s.decodePayload(key, header, payload)
	if err != nil {
		return nil, Entry{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return value, entry, nil
}

func (s *Store) decodePayload(key string, header entryHeader, payload []byte) ([]byte, error) {
	if header.Sealed {
		if s.sealer == nil {
			return nil, errors.New("entry is sealed and no cache key is configured")
		}
		var err error
		payload, err = s.sealer.open(key, payload)
		if err != nil {
			return nil, err
		}
	}
	value, err := decompress(payload, header.Compression, int(header.Size))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(integrityDigest(value), header.Digest) {
		return nil, errors.New("digest mismatch")
	}
	return value, nil
}

func decodeEntry(key string, rawHeader []byte, storedSize int, writtenAt int64) (entryHeader, Entry, error) {
	var header entryHeader
	if err := codec.Unmarshal(rawHeader, &header); err != nil {
		return header, Entry{}, fmt.Errorf("%w: %s: decoding header: %v", ErrCorrupt, key, err)
	}
	if header.Version != headerVersion {
		return header, Entry{}, fmt.Errorf("%w: %s: header version %d", ErrCorrupt, key, header.Version)
	}
	return header, Entry{
		Key:         key,
		Size:        header.Size,
		StoredSize:  int64(storedSize),
		Compression: header.Compression,
		Sealed:      header.Sealed,
		Digest:      hex.EncodeToString(header.Digest),
		WrittenAt:   time.Unix(0, writtenAt).UTC(),
		Meta:        Meta{MimeHint: header.MimeHint, Label: header.Label},
	}, nil
}

// Delete removes key. Returns whether an entry existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("localcache: delete %s: %w", key, err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM entries WHERE key = ?`,
		&sqlitex.ExecOptions{Args: []any{key}}); err != nil {
		return false, fmt.Errorf("localcache: delete %s: %w", key, err)
	}
	return conn.Changes() > 0, nil
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("localcache: delete prefix %q: %w", prefix, err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM entries WHERE substr(key, 1, ?) = ?`,
		&sqlitex.ExecOptions{Args: []any{len(prefix), prefix}}); err != nil {
		return 0, fmt.Errorf("localcache: delete prefix %q: %w", prefix, err)
	}
	removed := conn.Changes()
	if removed > 0 {
		s.logger.Info("cache entries removed", "prefix", prefix, "count", removed)
	}
	return removed, nil
}

// List describes every entry whose key starts with prefix, ordered by
// key. Payloads are not read or verified.
func (s *Store) List(ctx context.Context, prefix string) ([]Entry, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("localcache: list %q: %w", prefix, err)
	}
	defer s.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn,
		`SELECT key, header, length(payload), written_at FROM entries
		 WHERE substr(key, 1, ?) = ? ORDER BY key`,
		&sqlitex.ExecOptions{
			Args: []any{len(prefix), prefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				_, entry, err := decodeEntry(stmt.ColumnText(0), readBlob(stmt, 1),
					stmt.ColumnInt(2), stmt.ColumnInt64(3))
				if err != nil {
					return err
				}
				entries = append(entries, entry)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("localcache: list %q: %w", prefix, err)
	}
	return entries, nil
}

// RawHeader returns the encoded CBOR header of key, for diagnostics.
func (s *Store) RawHeader(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("localcache: header %s: %w", key, err)
	}
	defer s.pool.Put(conn)

	var header []byte
	err = sqlitex.Execute(conn, `SELECT header FROM entries WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{key},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				header = readBlob(stmt, 0)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("localcache: header %s: %w", key, err)
	}
	if header == nil {
		return nil, ErrNotFound
	}
	return header, nil
}

func readBlob(stmt *sqlite.Stmt, column int) []byte {
	data := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, data)
	return data
}
