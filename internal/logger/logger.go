package logger

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once sync.Once
	base *zap.Logger

	// Log is the shared sugared logger. Init must run before first use;
	// accessors call it defensively so tests can log without setup.
	Log *zap.SugaredLogger
)

var (
	AppName = "complyscan"
	Env     = "production"
	LogPath = "logs/app.log"
)

func Init() error {
	once.Do(func() {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.CallerKey = "caller"
		encoderCfg.LevelKey = "level"
		encoderCfg.MessageKey = "message"
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

		consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   LogPath,
			MaxSize:    50,
			MaxBackups: 7,
			MaxAge:     30,
			Compress:   true,
		})

		logLevel := zapcore.DebugLevel

		core := zapcore.NewTee(
			zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), logLevel),
			zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, logLevel),
		)

		base = zap.New(core,
			zap.AddCaller(),
			zap.AddStacktrace(zapcore.ErrorLevel),
			zap.Fields(
				zap.String("app", AppName),
				zap.String("env", Env),
			),
		)

		Log = base.Sugar()
	})
	return nil
}

func GetLogger() *zap.Logger {
	Init()
	return base
}

func GetSugaredLogger() *zap.SugaredLogger {
	Init()
	return Log
}

// Trace logs how long a function took; use with defer and a start time.
func Trace(fn string, start time.Time) {
	GetSugaredLogger().Debugf("%s executed in %d ms", fn, time.Since(start).Milliseconds())
}
