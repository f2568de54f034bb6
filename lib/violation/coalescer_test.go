// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"testing"
	"time"

	"github.com/bureau-foundation/proctor/lib/clock"
)

func TestCoalescerMergesWithinWindow(t *testing.T) {
	fake := clock.Fake(epoch)
	var flushed []string
	coalescer := NewCoalescer(fake, time.Second, func(reason string) { flushed = append(flushed, reason) })

	if !coalescer.Offer("blur") {
		t.Fatal("first offer rejected")
	}
	if coalescer.Offer("hidden") || coalescer.Offer("blur") || coalescer.Offer("paste") {
		t.Fatal("offer inside window accepted")
	}
	if pending, ok := coalescer.Pending(); !ok || pending != "blur, hidden and paste" {
		t.Fatalf("Pending = %q, %v", pending, ok)
	}

	fake.Advance(time.Second)
	if len(flushed) != 1 || flushed[0] != "blur, hidden and paste" {
		t.Fatalf("flushed = %q", flushed)
	}
	if _, ok := coalescer.Pending(); ok {
		t.Fatal("window still open after flush")
	}
}

func TestCoalescerStopDiscards(t *testing.T) {
	fake := clock.Fake(epoch)
	flushed := false
	coalescer := NewCoalescer(fake, time.Second, func(string) { flushed = true })
	coalescer.Offer("x")
	coalescer.Stop()
	fake.Advance(time.Minute)
	if flushed {
		t.Fatal("stopped coalescer flushed")
	}
	if !coalescer.Offer("y") {
		t.Fatal("offer after Stop rejected")
	}
}

func TestMergeReasons(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b"}, "a and b"},
		{[]string{"a", "b", "c"}, "a, b and c"},
	}
	for _, test := range tests {
		if got := MergeReasons(test.in); got != test.want {
			t.Errorf("MergeReasons(%q) = %q, want %q", test.in, got, test.want)
		}
	}
}
