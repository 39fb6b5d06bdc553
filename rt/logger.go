package rt

import (
	"sync"

	"go.uber.org/zap"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// Logger returns the runtime's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SetLogger configures the runtime's logger. A nil logger restores the no-op default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// LogError logs msg at error level. It has the shape log_err expects.
func LogError(msg string) {
	Logger().Error(msg)
}

// LogFunc adapts l to the shape log_err expects.
func LogFunc(l *zap.Logger) func(string) {
	return func(msg string) { l.Error(msg) }
}
