package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"projecthub/pkg/config"
	"projecthub/pkg/trace"
)

// Log 进程级 logger，NewLogger 之后可用
var Log = zap.NewNop()

// NewLogger JSON 输出到 stdout，配置了 File 时再写一份轮转文件。
// fields 会附加到每一条日志上，一般放 service 名。
func NewLogger(cfg config.LogConfig, fields ...zap.Field) *zap.Logger {
	level := parseLevel(cfg.Level)
	enc := zapcore.NewJSONEncoder(encoderConfig())

	var sinks []zapcore.WriteSyncer
	sinks = append(sinks, zapcore.Lock(os.Stdout))
	if w := fileSink(cfg); w != nil {
		sinks = append(sinks, w)
	}

	cores := make([]zapcore.Core, 0, len(sinks))
	for _, s := range sinks {
		cores = append(cores, zapcore.NewCore(enc, s, level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.Fields(fields...))
	return Log
}

func encoderConfig() zapcore.EncoderConfig {
	c := zap.NewProductionEncoderConfig()
	c.TimeKey = "timestamp"
	c.EncodeTime = zapcore.ISO8601TimeEncoder
	return c
}

// 无法识别的级别按 info 处理
func parseLevel(s string) zap.AtomicLevel {
	l, err := zapcore.ParseLevel(s)
	if s == "" || err != nil {
		l = zapcore.InfoLevel
	}
	return zap.NewAtomicLevelAt(l)
}

func fileSink(cfg config.LogConfig) zapcore.WriteSyncer {
	if cfg.File == "" {
		return nil
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   cfg.Compress,
	})
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// WithTrace 给 logger 带上 ctx 里的 trace_id
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := trace.FromContext(ctx); id != "" {
		return l.With(zap.String("trace_id", id))
	}
	return l
}
