// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hwinfo reads the Linux sysfs facts behind the host
// environment checks: connected displays from DRM connectors, the
// graphics driver and PCI vendor of each DRM card, and DMI board
// identity.
//
// Every reader takes the sysfs root as a parameter so tests can point
// it at a synthetic tree. Missing or unreadable files produce empty
// values, not errors; only an unreadable DRM class directory fails a
// probe, because "no displays" and "could not look" must differ.
//
// [Displays] is a [screenprobe.DisplaySource]. [RendererProbe] and
// [HypervisorProbe] are [violation.Probe] values.
package hwinfo
