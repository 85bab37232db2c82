package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithSession returns a logger with research session context fields attached.
// Use this for all logging within a session's orchestration run.
func WithSession(sessionID, conversationID string) *slog.Logger {
	return slog.With(
		"session_id", sessionID,
		"conversation_id", conversationID,
	)
}

// WithSource returns a logger scoped to one connector within a session run.
func WithSource(logger *slog.Logger, sourceName string) *slog.Logger {
	return logger.With("source", sourceName)
}
