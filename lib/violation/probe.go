// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Probe inspects the environment once. It returns a human-readable
// notice when it finds something worth telling the candidate about,
// or "" for nothing.
type Probe func(ctx context.Context) (notice string, err error)

// RunProbe runs probe and converts every failure, including a panic,
// into "no signal".
func RunProbe(ctx context.Context, name string, probe Probe, logger *slog.Logger) (notice string, ok bool) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Warn("environment probe panicked", "probe", name, "panic", recovered)
			notice, ok = "", false
		}
	}()
	notice, err := probe(ctx)
	if err != nil {
		logger.Debug("environment probe failed", "probe", name, "error", err)
		return "", false
	}
	return notice, notice != ""
}

// virtualRenderers are substrings of renderer strings reported by
// software rasterizers and hypervisor display adapters, including the
// kernel driver names of virtual DRM devices.
var virtualRenderers = []string{
	"swiftshader",
	"llvmpipe",
	"softpipe",
	"virtualbox",
	"vmware",
	"parallels",
	"microsoft basic render",
	"qxl",
	"virgl",
	"virtio",
	"vmwgfx",
	"bochs",
	"cirrus",
	"hyperv",
}

// RendererProbe returns a probe that reads the graphics renderer
// string and flags virtualization hints.
func RendererProbe(renderer func(ctx context.Context) (string, error)) Probe {
	return func(ctx context.Context) (string, error) {
		name, err := renderer(ctx)
		if err != nil {
			return "", fmt.Errorf("reading renderer: %w", err)
		}
		lower := strings.ToLower(name)
		for _, hint := range virtualRenderers {
			if strings.Contains(lower, hint) {
				return fmt.Sprintf("Virtualized graphics detected (%s). This is noted for the reviewer.", name), nil
			}
		}
		return "", nil
	}
}
