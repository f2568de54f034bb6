// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package violation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// SignalKind enumerates the host window and document signals the
// detector understands.
type SignalKind int

const (
	SignalVisibilityHidden SignalKind = iota + 1
	SignalVisibilityVisible
	SignalBlur
	SignalFocus
	SignalFullscreenEnter
	SignalFullscreenExit
	SignalCopy
	SignalCut
	SignalPaste
	SignalSelection
	SignalDragStart
	SignalPrint
	SignalKey
)

var signalNames = map[SignalKind]string{
	SignalVisibilityHidden:  "visibility-hidden",
	SignalVisibilityVisible: "visibility-visible",
	SignalBlur:              "blur",
	SignalFocus:             "focus",
	SignalFullscreenEnter:   "fullscreen-enter",
	SignalFullscreenExit:    "fullscreen-exit",
	SignalCopy:              "copy",
	SignalCut:               "cut",
	SignalPaste:             "paste",
	SignalSelection:         "selection",
	SignalDragStart:         "drag-start",
	SignalPrint:             "print",
	SignalKey:               "key",
}

func (k SignalKind) String() string {
	if name, ok := signalNames[k]; ok {
		return name
	}
	return fmt.Sprintf("signal(%d)", int(k))
}

// ParseSignalKind is the inverse of SignalKind.String.
func ParseSignalKind(name string) (SignalKind, error) {
	for kind, candidate := range signalNames {
		if candidate == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown signal kind %q", name)
}

// Chord is a key press with its modifiers. Key uses the host's key
// names ("F12", "PrintScreen", "i", "3").
type Chord struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// Signal is one host event.
type Signal struct {
	Kind SignalKind

	// Chord is set for SignalKey.
	Chord Chord

	// InsideInput is set for SignalSelection when the selection lies
	// within an answer field.
	InsideInput bool
}

// Decision tells the host what to do with a signal.
type Decision struct {
	// PreventDefault asks the host to suppress the default action.
	PreventDefault bool

	// Reason is non-empty when the signal was reported.
	Reason string
}

// Reporter is the detector's view of the machine.
type Reporter interface {
	Active() bool
	Report(reason string, hard bool) bool
}

// Detector translates host signals into soft violation reports and
// prevent-default decisions. It does nothing while the reporter is
// inactive.
type Detector struct {
	reporter Reporter
	logger   *slog.Logger

	mu                sync.Mutex
	enteredFullscreen bool
}

// NewDetector returns a detector feeding reporter.
func NewDetector(reporter Reporter, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Detector{reporter: reporter, logger: logger}
}

// Handle processes one signal. It never panics.
func (d *Detector) Handle(signal Signal) (decision Decision) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("signal detector panicked", "signal", signal.Kind, "panic", recovered)
			decision = Decision{}
		}
	}()

	if !d.reporter.Active() {
		return Decision{}
	}

	switch signal.Kind {
	case SignalVisibilityHidden:
		return d.report("Switched away from the assessment tab", false)
	case SignalBlur:
		if d.fullscreenReached() {
			return d.report("Assessment window lost focus", false)
		}
	case SignalFullscreenEnter:
		d.mu.Lock()
		d.enteredFullscreen = true
		d.mu.Unlock()
	case SignalFullscreenExit:
		if d.fullscreenReached() {
			return d.report("Exited fullscreen", false)
		}
	case SignalCopy:
		return d.report("Copied content", true)
	case SignalCut:
		return d.report("Cut content", true)
	case SignalPaste:
		return d.report("Pasted content", true)
	case SignalSelection:
		if !signal.InsideInput {
			return d.report("Selected text outside an answer field", false)
		}
	case SignalDragStart:
		return d.report("Dragged content", true)
	case SignalPrint:
		return d.report("Attempted to print", false)
	case SignalKey:
		return d.handleKey(signal.Chord)
	}
	return Decision{}
}

// Reset forgets fullscreen history, for a new attempt.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enteredFullscreen = false
}

func (d *Detector) fullscreenReached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enteredFullscreen
}

func (d *Detector) report(reason string, prevent bool) Decision {
	d.reporter.Report(reason, false)
	return Decision{PreventDefault: prevent, Reason: reason}
}

func (d *Detector) handleKey(chord Chord) Decision {
	shortcut, ok := MatchShortcut(chord)
	if !ok {
		return Decision{}
	}
	if shortcut.Report == "" {
		d.logger.Debug("blocked shortcut", "shortcut", shortcut.Name)
		return Decision{PreventDefault: true}
	}
	return d.report(shortcut.Report, true)
}

// Shortcut is a blocked keyboard shortcut class.
type Shortcut struct {
	Name string

	// Report is the violation reason, or empty for shortcuts that are
	// only suppressed.
	Report string
}

var (
	shortcutDevtools   = Shortcut{Name: "devtools", Report: "Developer tools shortcut"}
	shortcutSave       = Shortcut{Name: "save"}
	shortcutViewSource = Shortcut{Name: "view-source"}
	shortcutPrint      = Shortcut{Name: "print"}
	shortcutScreenshot = Shortcut{Name: "screenshot", Report: "Screenshot shortcut"}
	shortcutCloseTab   = Shortcut{Name: "close-tab"}
)

// MatchShortcut classifies chord against the blocked shortcut table.
// Ctrl and Meta are interchangeable for the letter shortcuts.
func MatchShortcut(chord Chord) (Shortcut, bool) {
	key := strings.ToLower(chord.Key)
	command := chord.Ctrl || chord.Meta

	switch {
	case key == "f12":
		return shortcutDevtools, true
	case key == "printscreen":
		return shortcutScreenshot, true
	case command && (chord.Shift || chord.Alt) && (key == "i" || key == "j" || key == "c"):
		return shortcutDevtools, true
	case chord.Meta && chord.Shift && (key == "3" || key == "4" || key == "5" || key == "s"):
		return shortcutScreenshot, true
	case command && key == "u":
		return shortcutViewSource, true
	case command && key == "s":
		return shortcutSave, true
	case command && key == "p":
		return shortcutPrint, true
	case command && key == "w":
		return shortcutCloseTab, true
	}
	return Shortcut{}, false
}
