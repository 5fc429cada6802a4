// internal/logger/logger.go
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how New builds the process logger.
type Options struct {
	Debug  bool
	Pretty bool   // colored console output instead of JSON
	File   string // optional JSON log file, written in addition to stdout
}

// Logger is the process logger together with the sinks it owns.
type Logger struct {
	*zap.Logger
	file *SafeFileWriter
}

// New создает логгер: консоль (JSON или pretty) и опционально файл
func New(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		level.SetLevel(zapcore.DebugLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var console zapcore.Encoder
	if opts.Pretty {
		console = PrettyEncoder()
	} else {
		console = zapcore.NewJSONEncoder(encoderConfig)
	}
	cores := []zapcore.Core{
		zapcore.NewCore(console, zapcore.Lock(os.Stdout), level),
	}

	l := &Logger{}
	if opts.File != "" {
		// flush failures go nowhere: the writer backs this logger
		fw, err := NewSafeFileWriter(opts.File, time.Second, zap.NewNop())
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = fw
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(fw), level))
	}

	l.Logger = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return l, nil
}

// Sync flushes the logger, ignoring the errors stdout returns on terminals.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if err != nil && isStdSyncError(err) {
		err = nil
	}
	if l.file != nil {
		if ferr := l.file.Close(); ferr != nil && err == nil {
			err = ferr
		}
		l.file = nil
	}
	return err
}

func isStdSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "/dev/stdout") || strings.Contains(msg, "/dev/stderr")
}
