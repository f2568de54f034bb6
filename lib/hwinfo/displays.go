// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hwinfo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/proctor/lib/screenprobe"
)

// Displays counts connected DRM connectors.
type Displays struct {
	// SysRoot defaults to DefaultSysRoot.
	SysRoot string
}

var _ screenprobe.DisplaySource = Displays{}

// Layout implements screenprobe.DisplaySource. A connector counts when
// its status file reads "connected".
func (d Displays) Layout(ctx context.Context) (screenprobe.Layout, error) {
	if err := ctx.Err(); err != nil {
		return screenprobe.Layout{}, err
	}
	class := drmClass(d.sysRoot())
	entries, err := os.ReadDir(class)
	if err != nil {
		return screenprobe.Layout{}, fmt.Errorf("reading DRM connectors: %w", err)
	}
	var layout screenprobe.Layout
	for _, entry := range entries {
		if !IsConnector(entry.Name()) {
			continue
		}
		if ReadSysfsString(filepath.Join(class, entry.Name(), "status")) == "connected" {
			layout.Count++
		}
	}
	return layout, nil
}

func (d Displays) sysRoot() string {
	if d.SysRoot == "" {
		return DefaultSysRoot
	}
	return d.SysRoot
}
