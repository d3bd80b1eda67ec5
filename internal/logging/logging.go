// Package logging builds the zerolog loggers used across showcase.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "SHOWCASE_LOG_LEVEL"
	EnvLogNoColor = "SHOWCASE_LOG_NOCOLOR"
	EnvLogFormat  = "SHOWCASE_LOG_FORMAT"
)

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level and format of a logger.
type Config struct {
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
}

// New returns a logger writing to w. Environment variables override cfg.
func New(w io.Writer, cfg Config) zerolog.Logger {
	applyEnvOverrides(&cfg)

	level, ok := parseLevel(cfg.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	var out io.Writer = w
	if cfg.Format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "showcase").Logger()
}

// Component returns a child logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Format = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
