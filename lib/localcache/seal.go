// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localcache

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/bureau-foundation/proctor/lib/secret"
)

// KeySize is the cache key length in bytes.
const KeySize = 32

// sealVersion prefixes every sealed payload and is authenticated as
// part of the AAD.
const sealVersion byte = 0x01

const sealOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

var hkdfInfoEntry = []byte("proctor.localcache.entry.v1")

// sealer encrypts entry payloads at rest. Each entry key derives its
// own subkey, and the entry key is bound into the AAD so payloads
// cannot be swapped between entries.
type sealer struct {
	master *secret.Buffer
}

func newSealer(master *secret.Buffer) (*sealer, error) {
	if master.Len() != KeySize {
		return nil, fmt.Errorf("cache key must be %d bytes, got %d", KeySize, master.Len())
	}
	return &sealer{master: master}, nil
}

func (s *sealer) close() error { return s.master.Close() }

func (s *sealer) deriveKey(entryKey string) (*secret.Buffer, error) {
	info := make([]byte, 0, len(hkdfInfoEntry)+len(entryKey))
	info = append(info, hkdfInfoEntry...)
	info = append(info, entryKey...)

	reader := hkdf.New(sha256.New, s.master.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("deriving entry key: %w", err)
	}
	return secret.NewFromBytes(derived)
}

func sealAAD(entryKey string) []byte {
	return append([]byte{sealVersion}, entryKey...)
}

// seal returns [version][nonce][ciphertext+tag].
func (s *sealer) seal(entryKey string, plaintext []byte) ([]byte, error) {
	key, err := s.deriveKey(entryKey)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	output := make([]byte, 1+len(nonce), sealOverhead+len(plaintext))
	output[0] = sealVersion
	copy(output[1:], nonce[:])
	return aead.Seal(output, nonce[:], plaintext, sealAAD(entryKey)), nil
}

func (s *sealer) open(entryKey string, sealed []byte) ([]byte, error) {
	if len(sealed) < sealOverhead {
		return nil, fmt.Errorf("sealed payload is %d bytes, minimum is %d", len(sealed), sealOverhead)
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("sealed payload version %d is not supported", sealed[0])
	}
	key, err := s.deriveKey(entryKey)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	nonce := sealed[1 : 1+chacha20poly1305.NonceSizeX]
	plaintext, err := aead.Open(nil, nonce, sealed[1+chacha20poly1305.NonceSizeX:], sealAAD(entryKey))
	if err != nil {
		return nil, fmt.Errorf("opening sealed payload (wrong key or tampered entry): %w", err)
	}
	return plaintext, nil
}
