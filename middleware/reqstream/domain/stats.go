package domain

import (
	"context"
	"time"
)

// StatsEvent registra um request descartado por sobrecarga.
//
// Observação: cuidado com cardinalidade (Path sem controle pode explodir o número de
// chaves numa base como Redis).
type StatsEvent struct {
	ID     string
	Source string

	Method string
	Path   string

	At time.Time
}

// StatsEventFrom monta o StatsEvent de um contexto rejeitado.
func StatsEventFrom(rc RequestContext) StatsEvent {
	ev := StatsEvent{ID: rc.ID, Source: rc.Source, At: rc.At}
	if rc.Request != nil {
		ev.Method = rc.Request.Method()
		ev.Path = rc.Request.Path()
	}
	return ev
}

// StatsStore persiste estatísticas de descarte.
//
// Implementações podem usar Redis, memória, etc. Quem chama trata erro como
// best-effort (nunca derruba a sequência).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
