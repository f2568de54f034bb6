// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/proctor/lib/notify"
)

func writeSysfsFile(t *testing.T, root, relative, content string) {
	t.Helper()
	path := filepath.Join(root, relative)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckHost(t *testing.T) {
	root := t.TempDir()
	writeSysfsFile(t, root, "class/drm/card0-DP-1/status", "connected\n")
	writeSysfsFile(t, root, "class/drm/card0-DP-2/status", "connected\n")
	writeSysfsFile(t, root, "class/dmi/id/sys_vendor", "QEMU\n")
	writeSysfsFile(t, root, "class/dmi/id/product_name", "Standard PC (i440FX + PIIX, 1996)\n")

	notes := &notify.Memory{}
	checkHost(context.Background(), root, notes, nil)

	sent := notes.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d notifications, want 2: %+v", len(sent), sent)
	}
	if sent[0].Title != "Multiple displays detected" || sent[0].Level != notify.LevelWarning {
		t.Fatalf("display notification = %+v", sent[0])
	}
	// No DRM cards: the graphics probe fails silently.
	if sent[1].Title != "Environment check" {
		t.Fatalf("hypervisor notification = %+v", sent[1])
	}
}

func TestCheckHostUnreadableSysfs(t *testing.T) {
	notes := &notify.Memory{}
	checkHost(context.Background(), filepath.Join(t.TempDir(), "missing"), notes, nil)
	if sent := notes.Sent(); len(sent) != 0 {
		t.Fatalf("unreadable sysfs produced notifications: %+v", sent)
	}
}
