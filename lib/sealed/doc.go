// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed encrypts recordings to reviewer age (X25519)
// recipients before they leave the machine. Only holders of a
// matching identity can watch the evidence; the storage endpoint sees
// ciphertext.
//
// Output is binary age format, not armored: recordings are large and
// the multipart transport carries bytes.
package sealed
