package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(action, message, requestID string, details map[string]interface{})
	Debug(action, message, requestID string, details map[string]interface{})
	Error(action, message, requestID string, details map[string]interface{}, err error)
}

type zapLogger struct {
	base *zap.Logger
}

// New writes JSON lines to stdout, one LogEntry per call.
func New(service string) Logger {
	return NewWithWriter(os.Stdout, service, zapcore.DebugLevel)
}

func NewWithWriter(w io.Writer, service string, level zapcore.Level) Logger {
	hostname, _ := os.Hostname()

	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     utcTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), level)

	return &zapLogger{
		base: zap.New(core).With(
			zap.String("service", service),
			zap.String("hostname", hostname),
		),
	}
}

// NewNop discards everything.
func NewNop() Logger {
	return &zapLogger{base: zap.NewNop()}
}

func (l *zapLogger) Info(action, message, requestID string, details map[string]interface{}) {
	l.base.Info(message, fields(action, requestID, details, nil)...)
}

func (l *zapLogger) Debug(action, message, requestID string, details map[string]interface{}) {
	l.base.Debug(message, fields(action, requestID, details, nil)...)
}

func (l *zapLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
	l.base.Error(message, fields(action, requestID, details, err)...)
}

func fields(action, requestID string, details map[string]interface{}, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("action", action),
	}
	if len(details) > 0 {
		fs = append(fs, zap.Any("details", details))
	}
	if err != nil {
		fs = append(fs, zap.Dict("error",
			zap.String("msg", err.Error()),
			zap.String("stack", fmt.Sprintf("%+v", err)),
		))
	}
	return fs
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format(time.RFC3339Nano))
}
