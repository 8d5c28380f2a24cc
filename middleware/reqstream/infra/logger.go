package infra

import (
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OverloadLogger loga cada request descartado, limitado a burst linhas por `every`.
// As linhas suprimidas são contadas e reportadas na próxima linha emitida.
type OverloadLogger struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

func NewOverloadLogger(logger *zap.Logger, every time.Duration, burst int) *OverloadLogger {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	return &OverloadLogger{logger: logger, limiter: rate.NewLimiter(limit, burst)}
}

func (l *OverloadLogger) Observe(ev domain.Event) {
	if ev.Kind != domain.EventOverloaded {
		return
	}
	if !l.limiter.Allow() {
		l.suppressed.Inc()
		return
	}

	rc := ev.Context
	fields := []zap.Field{
		zap.String("id", rc.ID),
		zap.String("source", rc.Source),
		zap.Uint64("suppressed", l.suppressed.Swap(0)),
	}
	if rc.Request != nil {
		fields = append(fields, zap.String("method", rc.Request.Method()), zap.String("path", rc.Request.Path()))
	}
	l.logger.Warn("request shed: sequence over capacity", fields...)
}
