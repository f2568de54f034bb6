// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"io"
	"sync/atomic"
)

// ProgressReader wraps a request body and calls report with the
// fraction consumed (0 to 1) after every read that advances it. A nil
// report is allowed.
type ProgressReader struct {
	reader io.Reader
	total  int64
	report func(fraction float64)
	read   atomic.Int64
}

// NewProgressReader returns a reader over r, which yields total
// bytes.
func NewProgressReader(r io.Reader, total int64, report func(fraction float64)) *ProgressReader {
	return &ProgressReader{reader: r, total: total, report: report}
}

func (p *ProgressReader) Read(buffer []byte) (int, error) {
	n, err := p.reader.Read(buffer)
	if n > 0 {
		read := p.read.Add(int64(n))
		if p.report != nil && p.total > 0 {
			p.report(min(float64(read)/float64(p.total), 1))
		}
	}
	return n, err
}

// BytesRead returns how many bytes have been consumed.
func (p *ProgressReader) BytesRead() int64 { return p.read.Load() }
