package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger; a no-op until InitFromEnv runs.
var globalLogger = zap.NewNop()

func L() *zap.Logger { return globalLogger }

// settings mirror the LOG_* variables.
type settings struct {
	level   zapcore.Level
	json    bool
	caller  bool
	console bool
	file    string // empty disables the file sink
}

func settingsFromEnv() settings {
	s := settings{
		level:   parseLevel(os.Getenv("LOG_LEVEL")),
		json:    strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json"),
		caller:  envBool("LOG_CALLER", false),
		console: envBool("LOG_TO_CONSOLE", false),
	}
	if envBool("LOG_TO_FILE", true) {
		s.file = filepath.Join("logs", "client.log")
		if v := strings.TrimSpace(os.Getenv("LOG_FILE")); v != "" {
			s.file = v
		}
	}
	return s
}

// InitFromEnv builds the global logger. The console sink writes to stderr and
// is off by default because stdout belongs to the interactive prompt.
func InitFromEnv() error {
	s := settingsFromEnv()

	var sinks []io.Writer
	if s.console {
		sinks = append(sinks, os.Stderr)
	}
	if s.file != "" {
		if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(s.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		sinks = append(sinks, f)
	}
	if len(sinks) == 0 {
		globalLogger = zap.NewNop()
		return nil
	}

	enc := zapcore.NewConsoleEncoder(textEncoderConfig())
	if s.json {
		enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	}
	cores := make([]zapcore.Core, 0, len(sinks))
	for _, w := range sinks {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(w), s.level))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if s.caller {
		opts = append(opts, zap.AddCaller())
	}
	globalLogger = zap.New(zapcore.NewTee(cores...), opts...)
	return nil
}

// Sync flushes buffered entries; errors from syncing terminals are ignored.
func Sync() {
	_ = globalLogger.Sync()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func textEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
