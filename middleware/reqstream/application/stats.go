package application

import (
	"context"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// StatsRecorder grava no StatsStore cada request descartado.
//
// Observe nunca bloqueia o caminho de descarte: o evento vai para um buffer e é gravado
// por Run. Se o buffer estiver cheio o evento é perdido (e contado em Dropped).
type StatsRecorder struct {
	store   domain.StatsStore
	logger  *zap.Logger
	timeout time.Duration
	events  chan domain.StatsEvent
	dropped atomic.Uint64
}

func NewStatsRecorder(store domain.StatsStore, logger *zap.Logger, buffer int, timeout time.Duration) *StatsRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &StatsRecorder{
		store:   store,
		logger:  logger,
		timeout: timeout,
		events:  make(chan domain.StatsEvent, buffer),
	}
}

func (r *StatsRecorder) Observe(ev domain.Event) {
	if ev.Kind != domain.EventOverloaded {
		return
	}
	select {
	case r.events <- domain.StatsEventFrom(ev.Context):
	default:
		r.dropped.Inc()
	}
}

// Run grava os eventos até ctx terminar. Erros do store são logados e ignorados.
func (r *StatsRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.record(ctx, ev)
		}
	}
}

func (r *StatsRecorder) record(ctx context.Context, ev domain.StatsEvent) {
	recCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.store.Record(recCtx, ev); err != nil {
		r.logger.Warn("stats: record failed", zap.String("id", ev.ID), zap.Error(err))
	}
}

func (r *StatsRecorder) Dropped() uint64 { return r.dropped.Load() }
