package internal

import (
	"io"
	"log/slog"
	"time"
)

// NewLogger builds the process-wide logger: JSON with UTC RFC3339Nano
// timestamps and a service attribute in prod, human-readable text everywhere
// else. An unknown level falls back to info rather than silencing the daemon.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "info":
		lvl.Set(slog.LevelInfo)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		slog.Default().Warn("unknown log level, using info", slog.String("value", level))
	}

	if env == "prod" {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: lvl,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
		return slog.New(h).With(slog.String("service", "meridian"))
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
