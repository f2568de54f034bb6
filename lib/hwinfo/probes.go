// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/proctor/lib/violation"
)

// Renderer describes each DRM card as "driver (vendor device)", joined
// with ", ", in card order.
func Renderer(sysRoot string) (string, error) {
	class := drmClass(sysRoot)
	entries, err := os.ReadDir(class)
	if err != nil {
		return "", fmt.Errorf("reading DRM cards: %w", err)
	}
	var cards []string
	for _, entry := range entries {
		if !IsCardDevice(entry.Name()) {
			continue
		}
		devicePath := filepath.Join(class, entry.Name(), "device")
		driver := ReadDriverName(devicePath)
		vendor, deviceID := ParsePCIUevent(devicePath)
		description := strings.TrimSpace(vendor + " " + deviceID)
		switch {
		case driver == "" && description == "":
			continue
		case driver == "":
			cards = append(cards, description)
		case description == "":
			cards = append(cards, driver)
		default:
			cards = append(cards, fmt.Sprintf("%s (%s)", driver, description))
		}
	}
	if len(cards) == 0 {
		return "", errors.New("no DRM cards found")
	}
	return strings.Join(cards, ", "), nil
}

// RendererProbe flags virtual graphics adapters by driver or vendor.
func RendererProbe(sysRoot string) violation.Probe {
	return violation.RendererProbe(func(context.Context) (string, error) {
		return Renderer(sysRoot)
	})
}

// hypervisorVendors are DMI sys_vendor or product_name substrings
// reported by virtual machines.
var hypervisorVendors = []string{
	"qemu",
	"kvm",
	"vmware",
	"virtualbox",
	"innotek",
	"xen",
	"parallels",
	"bochs",
	"virtual machine",
}

// HypervisorProbe reads DMI board identity and reports a notice when
// the host looks like a virtual machine.
func HypervisorProbe(sysRoot string) violation.Probe {
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		dmi := filepath.Join(sysRoot, "class", "dmi", "id")
		vendor := ReadSysfsString(filepath.Join(dmi, "sys_vendor"))
		product := ReadSysfsString(filepath.Join(dmi, "product_name"))
		if vendor == "" && product == "" {
			return "", errors.New("DMI identity unavailable")
		}
		identity := strings.TrimSpace(vendor + " " + product)
		lower := strings.ToLower(identity)
		if slices.ContainsFunc(hypervisorVendors, func(hint string) bool {
			return strings.Contains(lower, hint)
		}) {
			return fmt.Sprintf("Virtual machine detected (%s). This is noted for the reviewer.", identity), nil
		}
		return "", nil
	}
}
