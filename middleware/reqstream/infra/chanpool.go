package infra

import (
	"context"

	"reqstream-gateway/middleware/reqstream/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria o pool de vagas do consumidor, baseado em channel com capacidade `max`.
// max <= 0 vira 1: o Dispatcher sempre processa pelo menos um request por vez.
func NewChanPool(max int) domain.SlotPool {
	if max <= 0 {
		max = 1
	}
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
