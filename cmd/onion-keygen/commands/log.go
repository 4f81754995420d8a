package commands

import (
	"io"
	"log/slog"
	"os"
)

// newLogger builds the console handler for cfg and, when a log file is
// configured, fans records out to a debug-level JSON handler on that file.
func newLogger(cfg Config, console io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == LogFormatJSON {
		handler = slog.NewJSONHandler(console, opts)
	} else {
		handler = slog.NewTextHandler(console, opts)
	}

	if cfg.LogFile == "" {
		return slog.New(handler), nil, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, err
	}
	fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slog.NewMultiHandler(fileHandler, handler)), f, nil
}
