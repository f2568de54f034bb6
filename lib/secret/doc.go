// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// [Buffer] memory comes from mmap(MAP_ANONYMOUS), is mlock'd against
// swap and excluded from core dumps with MADV_DONTDUMP. Close zeroes,
// unlocks and unmaps it. proctor keeps the durable cache sealing key
// and reviewer age identities in Buffers.
//
// Depends on golang.org/x/sys/unix.
package secret
