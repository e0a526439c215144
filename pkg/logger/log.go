/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	alwaysLevel     struct{}
	loggerComposite struct {
		base    *zap.Logger
		sugared *zap.SugaredLogger
	}
)

var (
	zapLogger    *loggerComposite
	DebugEnabled = false
)

// init initializes default loggers (to console)
func init() {
	SetupZapLogger(os.Stdout)
}

func (a alwaysLevel) Enabled(level zapcore.Level) bool {
	return true
}

// SetupZapLogger redirects all loggers to w.
func SetupZapLogger(w io.Writer) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		MessageKey:       "msg",
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.LowercaseLevelEncoder,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeDuration:   zapcore.StringDurationEncoder,
	}

	base := zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(w), alwaysLevel{}))
	zapLogger = &loggerComposite{
		base:    base,
		sugared: base.Sugar(),
	}
}

func Debugz(msg string, fields ...zap.Field) {
	if DebugEnabled {
		zapLogger.base.Debug(msg, fields...)
	}
}
func Infoz(msg string, fields ...zap.Field) {
	zapLogger.base.Info(msg, fields...)
}
func Warnz(msg string, fields ...zap.Field) {
	zapLogger.base.Warn(msg, fields...)
}
func Errorz(msg string, fields ...zap.Field) {
	zapLogger.base.Error(msg, fields...)
}

func Debugw(msg string, keyAndValues ...interface{}) {
	if DebugEnabled {
		zapLogger.sugared.Debugw(msg, keyAndValues...)
	}
}
func Infow(msg string, keyAndValues ...interface{}) {
	zapLogger.sugared.Infow(msg, keyAndValues...)
}
func Warnw(msg string, keyAndValues ...interface{}) {
	zapLogger.sugared.Warnw(msg, keyAndValues...)
}
func Errorw(msg string, keyAndValues ...interface{}) {
	zapLogger.sugared.Errorw(msg, keyAndValues...)
}

func Debugf(msg string, args ...interface{}) {
	if DebugEnabled {
		zapLogger.sugared.Debugf(msg, args...)
	}
}
func Infof(msg string, args ...interface{}) {
	zapLogger.sugared.Infof(msg, args...)
}
func Warnf(msg string, args ...interface{}) {
	zapLogger.sugared.Warnf(msg, args...)
}
func Errorf(msg string, args ...interface{}) {
	zapLogger.sugared.Errorf(msg, args...)
}

func IsDebugEnabled() bool {
	return DebugEnabled
}
