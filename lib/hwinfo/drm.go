// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysRoot is the sysfs mount point.
const DefaultSysRoot = "/sys"

func drmClass(sysRoot string) string {
	return filepath.Join(sysRoot, "class", "drm")
}

// IsCardDevice returns true for DRM card device names (card0, card1, ...)
// but not connectors (card0-DP-1) or render nodes (renderD128).
func IsCardDevice(name string) bool {
	if !strings.HasPrefix(name, "card") {
		return false
	}
	return isDigits(name[4:])
}

// IsConnector returns true for DRM connector names such as card0-DP-1
// or card1-HDMI-A-2.
func IsConnector(name string) bool {
	card, connector, found := strings.Cut(name, "-")
	return found && connector != "" && IsCardDevice(card)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, character := range s {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}

// ReadDriverName returns the kernel driver name for a device by
// reading the basename of the "driver" symlink in the device directory.
func ReadDriverName(devicePath string) string {
	link, err := os.Readlink(filepath.Join(devicePath, "driver"))
	if err != nil {
		return ""
	}
	return filepath.Base(link)
}

// ParsePCIUevent extracts the vendor name and device ID from the
// device's uevent file. The uevent file contains lines like:
//
//	PCI_ID=1AF4:1050
//	PCI_SLOT_NAME=0000:00:02.0
func ParsePCIUevent(devicePath string) (vendor, deviceID string) {
	data, err := os.ReadFile(filepath.Join(devicePath, "uevent"))
	if err != nil {
		return "", ""
	}
	for line := range strings.SplitSeq(string(data), "\n") {
		key, value, found := strings.Cut(line, "=")
		if !found || key != "PCI_ID" {
			continue
		}
		vendorID, rawDeviceID, found := strings.Cut(value, ":")
		if !found {
			continue
		}
		vendor = PCIVendorName(strings.ToLower(vendorID))
		if rawDeviceID != "" {
			deviceID = "0x" + strings.ToLower(rawDeviceID)
		}
	}
	return vendor, deviceID
}

// PCIVendorName maps a PCI vendor ID to a human-readable name.
func PCIVendorName(vendorID string) string {
	switch vendorID {
	case "1002":
		return "AMD"
	case "10de":
		return "NVIDIA"
	case "8086":
		return "Intel"
	case "1af4":
		return "Red Hat VirtIO"
	case "15ad":
		return "VMware"
	case "80ee":
		return "VirtualBox"
	case "1234":
		return "QEMU"
	case "1414":
		return "Microsoft Hyper-V"
	default:
		if vendorID != "" {
			return fmt.Sprintf("0x%s", vendorID)
		}
		return ""
	}
}

// ReadSysfsString reads a single-line sysfs file and returns its
// trimmed content. Returns "" on any error.
func ReadSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
