// Package logging builds the zap logger shared by every taskflow component.
// The TUI owns the terminal, so its default output is a rotated file.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Joseda-hg/taskflow/internal/config"
)

func New(cfg config.LogConfig) (*zap.Logger, error) {
	writeSyncer, err := buildWriteSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("build log output: %w", err)
	}
	core := zapcore.NewCore(buildEncoder(cfg.Format), writeSyncer, ParseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func buildEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if strings.EqualFold(format, "console") {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func buildWriteSyncer(cfg config.LogConfig) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return zapcore.Lock(zapcore.AddSync(os.Stderr)), nil
	case "stdout":
		return zapcore.Lock(zapcore.AddSync(os.Stdout)), nil
	case "discard", "none":
		return zapcore.AddSync(discard{}), nil
	case "file", "":
		if cfg.File == "" {
			return nil, fmt.Errorf("log file path is required when output is 'file'")
		}
		if err := config.EnsureDir(cfg.File); err != nil {
			return nil, err
		}
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    max(cfg.MaxSizeMB, 1),
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
		}), nil
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
