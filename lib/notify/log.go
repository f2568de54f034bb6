// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"log/slog"
)

// Log returns a Notifier that writes each notification as a structured
// log record at a level matching its severity.
func Log(logger *slog.Logger) Notifier {
	return Func(func(n Notification) {
		level := slog.LevelInfo
		switch n.Level {
		case LevelWarning:
			level = slog.LevelWarn
		case LevelCritical:
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, "notification",
			"title", n.Title, "description", n.Description)
	})
}
