package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/clusterdock/clusterdock/internal/config"
	"github.com/rs/zerolog"
)

// SetupLogger builds the console logger used by every action. verbose forces debug level.
func SetupLogger(cfg *config.LoggingConfig, verbose bool) zerolog.Logger {
	return newLogger(os.Stderr, cfg, verbose)
}

func newLogger(out io.Writer, cfg *config.LoggingConfig, verbose bool) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
	}

	levelStr := strings.ToLower(cfg.Level)
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(consoleWriter).
		With().
		Timestamp().
		Str("service", "clusterdock").
		Logger()
}
