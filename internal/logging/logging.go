// Package logging configures the application logger: a console writer on
// stderr and, when enabled, a size-rotated file under data-dir/logs.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tunnelward/tunnelward/internal/store"
)

// Setup installs the global logger according to the logging config
// section. Console output goes to stderr so command stdout stays
// machine-readable.
func Setup(cfg store.LoggingConfig, paths store.Paths) {
	level := parseLevel(cfg.Level)

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if cfg.FileLogging {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(paths.LogsDir(), "tunnelward.log"),
			MaxSize:    cfg.MaxFileSizeMB,
			MaxBackups: cfg.MaxFiles,
		})
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
