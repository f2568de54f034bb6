// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sysfs builds a synthetic /sys tree.
type sysfs struct {
	t    *testing.T
	root string
}

func newSysfs(t *testing.T) *sysfs {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(drmClass(root), 0o755); err != nil {
		t.Fatal(err)
	}
	return &sysfs{t: t, root: root}
}

func (s *sysfs) write(relative, content string) {
	s.t.Helper()
	path := filepath.Join(s.root, relative)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		s.t.Fatal(err)
	}
}

func (s *sysfs) connector(name, status string) {
	s.write(filepath.Join("class/drm", name, "status"), status+"\n")
}

func (s *sysfs) card(name, driver, pciID string) {
	s.t.Helper()
	device := filepath.Join(drmClass(s.root), name, "device")
	s.write(filepath.Join("class/drm", name, "device", "uevent"),
		"DRIVER="+driver+"\nPCI_ID="+pciID+"\nPCI_SLOT_NAME=0000:00:02.0\n")
	if err := os.Symlink("../../../bus/pci/drivers/"+driver, filepath.Join(device, "driver")); err != nil {
		s.t.Fatal(err)
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		name      string
		card      bool
		connector bool
	}{
		{"card0", true, false},
		{"card12", true, false},
		{"card", false, false},
		{"renderD128", false, false},
		{"card0-DP-1", false, true},
		{"card1-HDMI-A-2", false, true},
		{"card0-", false, false},
		{"cardX-DP-1", false, false},
		{"version", false, false},
	}
	for _, test := range tests {
		if got := IsCardDevice(test.name); got != test.card {
			t.Errorf("IsCardDevice(%q) = %v, want %v", test.name, got, test.card)
		}
		if got := IsConnector(test.name); got != test.connector {
			t.Errorf("IsConnector(%q) = %v, want %v", test.name, got, test.connector)
		}
	}
}

func TestDisplaysCountsConnectedConnectors(t *testing.T) {
	sys := newSysfs(t)
	sys.card("card0", "amdgpu", "1002:744C")
	sys.connector("card0-DP-1", "connected")
	sys.connector("card0-DP-2", "disconnected")
	sys.connector("card0-HDMI-A-1", "connected")
	sys.write("class/drm/version", "drm 1.1.0\n")

	layout, err := Displays{SysRoot: sys.root}.Layout(context.Background())
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if layout.Count != 2 || !layout.Multiple() {
		t.Fatalf("layout = %+v, want two displays", layout)
	}
}

func TestDisplaysWithoutDRM(t *testing.T) {
	_, err := Displays{SysRoot: t.TempDir()}.Layout(context.Background())
	if err == nil {
		t.Fatal("Layout succeeded without a DRM class directory")
	}
}

func TestRenderer(t *testing.T) {
	sys := newSysfs(t)
	sys.card("card0", "i915", "8086:A7A0")
	sys.card("card1", "virtio-pci", "1AF4:1050")
	sys.connector("card0-eDP-1", "connected")

	renderer, err := Renderer(sys.root)
	if err != nil {
		t.Fatalf("Renderer: %v", err)
	}
	want := "i915 (Intel 0xa7a0), virtio-pci (Red Hat VirtIO 0x1050)"
	if renderer != want {
		t.Fatalf("Renderer = %q, want %q", renderer, want)
	}

	notice, err := RendererProbe(sys.root)(context.Background())
	if err != nil {
		t.Fatalf("RendererProbe: %v", err)
	}
	if !strings.Contains(notice, "Virtualized graphics detected") {
		t.Fatalf("notice = %q", notice)
	}
}

func TestRendererBareMetal(t *testing.T) {
	sys := newSysfs(t)
	sys.card("card0", "amdgpu", "1002:744C")

	notice, err := RendererProbe(sys.root)(context.Background())
	if err != nil || notice != "" {
		t.Fatalf("RendererProbe = %q, %v; want no notice", notice, err)
	}
}

func TestRendererNoCards(t *testing.T) {
	if _, err := Renderer(newSysfs(t).root); err == nil {
		t.Fatal("Renderer succeeded with no cards")
	}
}

func TestHypervisorProbe(t *testing.T) {
	tests := []struct {
		name    string
		vendor  string
		product string
		notice  bool
	}{
		{"qemu", "QEMU", "Standard PC (Q35 + ICH9, 2009)", true},
		{"virtualbox", "innotek GmbH", "VirtualBox", true},
		{"hyper-v", "Microsoft Corporation", "Virtual Machine", true},
		{"laptop", "LENOVO", "21K5CTO1WW", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sys := newSysfs(t)
			sys.write("class/dmi/id/sys_vendor", test.vendor+"\n")
			sys.write("class/dmi/id/product_name", test.product+"\n")

			notice, err := HypervisorProbe(sys.root)(context.Background())
			if err != nil {
				t.Fatalf("HypervisorProbe: %v", err)
			}
			if (notice != "") != test.notice {
				t.Fatalf("notice = %q, want notice: %v", notice, test.notice)
			}
			if test.notice && !strings.Contains(notice, test.vendor) {
				t.Fatalf("notice %q does not name the vendor", notice)
			}
		})
	}
}

func TestHypervisorProbeWithoutDMI(t *testing.T) {
	if _, err := HypervisorProbe(t.TempDir())(context.Background()); err == nil {
		t.Fatal("HypervisorProbe succeeded without DMI")
	}
}
