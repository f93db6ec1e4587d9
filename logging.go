package rediwire

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures a logger built by NewLogger; the package-level
// logger Connections use is fixed to stdout at info level and is not
// built from caller options. The zero value logs to stdout at info level, which is fine for short-lived CLIs and tests; a
// long-running process that talks to Redis for days wants its own
// rotating file instead.
type LogOptions struct {
	Stdout     bool
	Level      zapcore.Level
	Filename   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// NewLogger builds a *zap.Logger from opt. When opt.Stdout is set or
// opt.Filename is empty it logs to stdout; otherwise it writes through a
// lumberjack.Logger so long sessions don't grow an unbounded log file.
func NewLogger(opt LogOptions) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	var sink zapcore.WriteSyncer
	if opt.Stdout || opt.Filename == "" {
		sink = zapcore.AddSync(os.Stdout)
	} else {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSizeMB,
			MaxAge:     opt.MaxAgeDays,
			MaxBackups: opt.MaxBackups,
			LocalTime:  true,
		})
	}

	core := zapcore.NewCore(encoder, sink, opt.Level)
	return zap.New(core, zap.AddCaller())
}

// defaultLogger is the logger New gives every Connection; no exported
// constructor accepts a different one.
var defaultLogger = NewLogger(LogOptions{Stdout: true, Level: zapcore.InfoLevel})
