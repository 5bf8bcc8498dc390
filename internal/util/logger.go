package util

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init initializes the global logger based on environment. When file is set,
// entries are also written to a size-rotated log file.
func Init(environment, level, format, file string) *zap.Logger {
	once.Do(func() {
		var encoderConfig zapcore.EncoderConfig
		if environment == "production" {
			encoderConfig = zap.NewProductionEncoderConfig()
			encoderConfig.TimeKey = "timestamp"
			encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		} else {
			encoderConfig = zap.NewDevelopmentEncoderConfig()
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		var encoder zapcore.Encoder
		if format == "json" {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		}

		logLevel := zap.NewAtomicLevelAt(parseLogLevel(level))

		// Always log to stdout for Docker
		cores := []zapcore.Core{
			zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), logLevel),
		}
		if file != "" {
			fileEncoderConfig := encoderConfig
			fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(fileEncoderConfig),
				zapcore.AddSync(&lumberjack.Logger{
					Filename:   file,
					MaxSize:    50, // MB
					MaxBackups: 7,
					MaxAge:     28, // days
					Compress:   true,
				}),
				logLevel,
			))
		}

		core := zapcore.NewTee(cores...)
		opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
		if environment == "production" {
			// Production optimizations
			core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
		} else {
			opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel), zap.Development())
		}

		globalLogger = zap.New(core, opts...)

		// Replace global logger
		zap.ReplaceGlobals(globalLogger)
	})

	return globalLogger
}

// Get returns the global logger instance
func Get() *zap.Logger {
	if globalLogger == nil {
		// Fallback to production logger if not initialized
		return Init("production", "info", "json", "")
	}
	return globalLogger
}

// Sync flushes any buffered log entries
func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	case "panic":
		return zapcore.PanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// Convenience methods
func Debug(msg string, fields ...zap.Field) {
	Get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	Get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Get().Warn(msg, fields...)
}

// Error function for logging error messages
func Error(msg string, fields ...zap.Field) {
	Get().Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Get().Fatal(msg, fields...)
}

// Common field helpers
func String(key, value string) zap.Field {
	return zap.String(key, value)
}

func Strings(key string, value []string) zap.Field {
	return zap.Strings(key, value)
}

func Bool(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}

func Int(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// ErrorField creates an error field (renamed to avoid conflict)
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

func Any(key string, value interface{}) zap.Field {
	return zap.Any(key, value)
}

func Duration(key string, value time.Duration) zap.Field {
	return zap.Duration(key, value)
}

func Time(key string, value time.Time) zap.Field {
	return zap.Time(key, value)
}
