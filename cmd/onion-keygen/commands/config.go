package commands

import (
	"fmt"
	"log/slog"
	"time"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds every setting the commands read, from flags or
// ONIONKEYGEN_* environment variables.
type Config struct {
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`

	Seed string `mapstructure:"seed"`
	Out  string `mapstructure:"out"`
	Dir  string `mapstructure:"dir"`

	Workers     int           `mapstructure:"workers"`
	MaxAttempts uint64        `mapstructure:"max-attempts"`
	Progress    time.Duration `mapstructure:"progress"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: LogFormatText,
		Progress:  10 * time.Second,
	}
}

// ValidateBasic performs checks that do not touch the filesystem.
func (c Config) ValidateBasic() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q (want %s or %s)", c.LogFormat, LogFormatText, LogFormatJSON)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.Progress < 0 {
		return fmt.Errorf("progress interval must be non-negative, got %s", c.Progress)
	}
	return nil
}

func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
