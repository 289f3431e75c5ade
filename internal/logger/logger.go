package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	atomicLevel zap.AtomicLevel
	logger      *zap.Logger
	mu          sync.RWMutex
}

var (
	instance *Logger   //nolint:gochecknoglobals // Singleton pattern for logger
	once     sync.Once //nolint:gochecknoglobals // Singleton pattern for logger
)

func initInstance() {
	instance = &Logger{
		atomicLevel: zap.NewAtomicLevelAt(zap.InfoLevel),
	}

	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoderCfg.CallerKey = ""
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	// stderr keeps stdout free for reports piped to files
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		instance.atomicLevel,
	)

	instance.logger = zap.New(core).Named("sourcemind")
}

// GetLogger returns the process-wide logger
func GetLogger() *zap.Logger {
	once.Do(initInstance)

	instance.mu.RLock()
	defer instance.mu.RUnlock()
	return instance.logger
}

// SetLevel changes the level of the process-wide logger
func SetLevel(level zapcore.Level) {
	once.Do(initInstance)

	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.atomicLevel.SetLevel(level)
}

// Level returns the current level of the process-wide logger
func Level() zapcore.Level {
	once.Do(initInstance)

	instance.mu.RLock()
	defer instance.mu.RUnlock()
	return instance.atomicLevel.Level()
}

// ParseLevel maps a config value such as "debug" or "WARN" to a zap level
func ParseLevel(value string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(value)))); err != nil {
		return zap.InfoLevel, fmt.Errorf("invalid log level %q: %w", value, err)
	}
	return level, nil
}
