// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

// TerminalConfig configures a Terminal notifier.
type TerminalConfig struct {
	Writer io.Writer

	// Width is the terminal width in cells. Zero means 80.
	Width int

	// Color enables 256-color output. When false the output is plain
	// text with box drawing only.
	Color bool
}

// Terminal renders info and warning notifications as single-line
// toasts and critical notifications as a full-width takeover box.
type Terminal struct {
	writer io.Writer
	width  int

	mu       sync.Mutex
	toast    map[Level]lipgloss.Style
	body     lipgloss.Style
	takeover lipgloss.Style
	heading  lipgloss.Style
}

// NewTerminal returns a Terminal notifier.
func NewTerminal(config TerminalConfig) *Terminal {
	width := config.Width
	if width <= 0 {
		width = 80
	}
	profile := termenv.Ascii
	if config.Color {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(config.Writer, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)

	return &Terminal{
		writer: config.Writer,
		width:  width,
		toast: map[Level]lipgloss.Style{
			LevelInfo:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
			LevelWarning:  renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
			LevelCritical: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		},
		body: renderer.NewStyle().Foreground(lipgloss.Color("252")),
		takeover: renderer.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(1, 2).
			Width(width - 2).
			Align(lipgloss.Center),
		heading: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

func (t *Terminal) Notify(n Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.Level == LevelCritical {
		content := t.heading.Render(strings.ToUpper(n.Title))
		if n.Description != "" {
			content += "\n\n" + t.body.Render(n.Description)
		}
		fmt.Fprintln(t.writer, t.takeover.Render(content))
		return
	}

	prefix := t.toast[n.Level].Render(fmt.Sprintf("[%s] %s", n.Level, n.Title))
	line := prefix
	if n.Description != "" {
		line += " " + t.body.Render(n.Description)
	}
	if ansi.StringWidth(line) > t.width {
		line = ansi.Truncate(line, t.width-1, "…")
	}
	fmt.Fprintln(t.writer, line)
}
