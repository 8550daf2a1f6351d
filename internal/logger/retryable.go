package logger

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

type retryLogger struct {
	s *zap.SugaredLogger
}

// Retryable adapts a zap logger to the retryablehttp leveled logger.
// Per-attempt chatter is demoted to debug.
func Retryable(l *zap.Logger) retryablehttp.LeveledLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return retryLogger{l.Sugar()}
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.s.Warnw(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.s.Warnw(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.s.Debugw(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.s.Debugw(msg, kv...) }
