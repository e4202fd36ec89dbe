package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/couchcryptid/storm-data-windfield/internal/config"
)

// Rotation limits for LOG_FILE.
const (
	logMaxSizeMB  = 64
	logMaxAgeDays = 14
	logMaxBackups = 5
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT and sets
// it as the slog default. When LOG_FILE is set, records are also written to a
// rotating file; the returned closer releases it.
func NewLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	if cfg.LogFile == "" {
		return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat), io.NopCloser(nil)
	}

	file := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    logMaxSizeMB,
		MaxAge:     logMaxAgeDays,
		MaxBackups: logMaxBackups,
		Compress:   true,
	}
	logger := slog.New(newHandler(io.MultiWriter(os.Stdout, file), cfg.LogLevel, cfg.LogFormat))
	slog.SetDefault(logger)
	return logger, file
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
