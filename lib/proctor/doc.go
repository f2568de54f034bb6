// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package proctor is the inbound API the assessment form layer drives.
//
// A [Proctor] owns one attempt's worth of components: the device
// manager, the violation machine and its side-channel detectors, the
// capture manager, the durable recording cache and the upload
// pipeline. The form layer calls [Proctor.ActivateMonitoring] and
// [Proctor.StartCapture] once the question set is ready, forwards host
// signals through [Proctor.HandleSignal], and calls
// [Proctor.FinalizeAndUpload] on submission. Everything the candidate
// sees goes through the injected notify.Notifier: soft violations as
// toasts, termination as a takeover.
//
// The orchestrator is the only component that acquires or releases
// devices, through the capture manager it configures. The violation
// machine only subscribes to stream events.
package proctor
