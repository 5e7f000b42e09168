// File: internal/observability/logger.go
package observability

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/feedpilot/internal/config"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	current  atomic.Pointer[zap.Logger]
	initOnce sync.Once
)

const ansiReset = "\x1b[0m"

// ansiColors maps the color names accepted in logger.colors to escape codes.
var ansiColors = map[string]string{
	"red":     "\x1b[31m",
	"green":   "\x1b[32m",
	"yellow":  "\x1b[33m",
	"blue":    "\x1b[34m",
	"magenta": "\x1b[35m",
	"cyan":    "\x1b[36m",
	"white":   "\x1b[37m",
}

// NewLogger builds a logger from cfg without touching the global one.
// Console lines go to console. When LogFile is set, a rotating JSON sink is
// teed in; that file is what `feedpilot logs` tails.
func NewLogger(cfg config.LoggerConfig, console zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	enabler := zap.NewAtomicLevelAt(level)

	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(cfg), console, enabler)}
	if cfg.LogFile != "" {
		sink, err := fileSink(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), sink, enabler))
	}

	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}
	return logger, nil
}

func fileSink(cfg config.LoggerConfig) (zapcore.WriteSyncer, error) {
	path, err := homedir.Expand(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to expand log file path %q: %w", cfg.LogFile, err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}), nil
}

// Initialize installs the global logger. Only the first call has any effect.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	initOnce.Do(func() {
		logger, err := NewLogger(cfg, console)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Warning: file logging disabled:", err)
			cfg.LogFile = ""
			logger, _ = NewLogger(cfg, console)
		}
		current.Store(logger)
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
}

// InitializeLogger initializes the global logger writing to stdout.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stdout))
}

// ResetForTest clears the global logger. Tests only.
func ResetForTest() {
	current.Store(nil)
	initOnce = sync.Once{}
}

func jsonEncoder() zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

func consoleEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	if cfg.Format != "console" {
		return jsonEncoder()
	}
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	ec.EncodeLevel = levelEncoder(levelColors(cfg.Colors))
	ec.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(name + ".")
	}
	return zapcore.NewConsoleEncoder(ec)
}

// levelColors resolves the configured color names. NO_COLOR disables them all.
func levelColors(c config.ColorConfig) map[zapcore.Level]string {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return nil
	}
	return map[zapcore.Level]string{
		zapcore.DebugLevel:  ansiColors[c.Debug],
		zapcore.InfoLevel:   ansiColors[c.Info],
		zapcore.WarnLevel:   ansiColors[c.Warn],
		zapcore.ErrorLevel:  ansiColors[c.Error],
		zapcore.DPanicLevel: ansiColors[c.DPanic],
		zapcore.PanicLevel:  ansiColors[c.Panic],
		zapcore.FatalLevel:  ansiColors[c.Fatal],
	}
}

func levelEncoder(colors map[zapcore.Level]string) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		label := level.CapitalString()
		if code := colors[level]; code != "" {
			label = code + label + ansiReset
		}
		enc.AppendString(label)
	}
}

// GetLogger returns the global logger, or a development fallback when
// Initialize has not run yet.
func GetLogger() *zap.Logger {
	if logger := current.Load(); logger != nil {
		return logger
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	l.Warn("Global logger requested before initialization; using fallback.")
	return l.Named("fallback")
}

// Sync flushes buffered entries. Call it before the process exits.
func Sync() {
	logger := current.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !benignSyncError(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// benignSyncError reports errors from syncing a terminal or pipe.
func benignSyncError(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		msg := err.Error()
		for _, s := range []string{"sync /dev/stdout", "sync /dev/stderr", "invalid argument", "inappropriate ioctl", "operation not supported"} {
			if strings.Contains(msg, s) {
				return true
			}
		}
	}
	return false
}
