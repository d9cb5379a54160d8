package pkg

import "go.uber.org/zap"

// надстройка над логгером
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
}

// NewZapLogger names the service logger; *zap.Logger already satisfies Logger.
func NewZapLogger(l *zap.Logger) Logger {
	return l.Named("weapon-shop")
}
