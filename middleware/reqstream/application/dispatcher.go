package application

import (
	"context"
	"sync"

	"reqstream-gateway/middleware/reqstream/domain"

	"go.uber.org/zap"
)

// Puller é o lado de leitura de uma Sequence.
type Puller interface {
	Next(ctx context.Context) (domain.RequestContext, error)
}

// HandlerFunc processa um contexto lido da sequência. É responsável por finalizar a
// resposta; se não o fizer, o Dispatcher responde 500.
type HandlerFunc func(ctx context.Context, rc domain.RequestContext)

// Dispatcher é o consumidor único da sequência: só lê um contexto novo depois de
// conseguir uma vaga no Pool. Com todas as vagas ocupadas nada é lido, o buffer enche
// e a sequência passa a descartar.
type Dispatcher struct {
	Source  Puller
	Pool    domain.SlotPool
	Handler HandlerFunc
	Logger  *zap.Logger
}

// Run consome até ctx terminar e espera os handlers em andamento antes de retornar.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		release, ok := d.acquire(ctx)
		if !ok {
			return ctx.Err()
		}

		rc, err := d.Source.Next(ctx)
		if err != nil {
			release()
			return err
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer release()
			d.serve(ctx, logger, rc)
		}()
	}
}

func (d *Dispatcher) acquire(ctx context.Context) (func(), bool) {
	if d.Pool == nil {
		if ctx.Err() != nil {
			return nil, false
		}
		return func() {}, true
	}
	return d.Pool.Acquire(ctx)
}

func (d *Dispatcher) serve(ctx context.Context, logger *zap.Logger, rc domain.RequestContext) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatcher: handler panicked", zap.String("id", rc.ID), zap.Any("panic", r))
		}
		if rc.Response != nil && !rc.Response.Finished() {
			logger.Warn("dispatcher: handler left response open", zap.String("id", rc.ID))
			rc.Response.Finish(domain.StatusInternalError, "Internal Server Error")
		}
	}()
	d.Handler(ctx, rc)
}
