// Loggers for the command-line tools.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Create a logger writing text to `w`.
//
// Standardizes key "error" into "err".
func NewWithWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{ //nolint:exhaustruct
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}))
}

// Create a logger writing to stderr, so as to keep stdout for the output
// of the tool.
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, level)
}

// A logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
