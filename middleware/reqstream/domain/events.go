package domain

// EventKind rotula um evento emitido pela sequência.
type EventKind string

// EventOverloaded é emitido quando uma entrega é rejeitada por falta de espaço no buffer.
const EventOverloaded EventKind = "overloaded"

// Event é o payload entregue aos observers.
type Event struct {
	Kind    EventKind
	Context RequestContext
}

// Observer reage a eventos (log, métricas, ...). É apenas informativo:
// nada que um observer faça altera o fluxo da sequência.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapta uma função para Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }
