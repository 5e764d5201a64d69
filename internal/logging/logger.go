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

// WithFetch returns a logger with fetch context fields attached.
// Use this for all logging within one logical upstream fetch.
func WithFetch(requestID, cacheKey string) *slog.Logger {
	return slog.With(
		"request_id", requestID,
		"cache_key", cacheKey,
	)
}

// WithEndpoint returns a logger scoped to a specific upstream endpoint.
func WithEndpoint(logger *slog.Logger, endpoint string) *slog.Logger {
	return logger.With("endpoint", endpoint)
}
