package application

import (
	"sync"

	"reqstream-gateway/middleware/reqstream/domain"

	"go.uber.org/zap"
)

// DefaultNotifier é o canal de eventos compartilhado pelo processo.
// Sequências criadas sem Notifier próprio usam uma instância nova, não esta.
var DefaultNotifier = NewNotifier(nil)

// Notifier distribui eventos para zero ou mais observers.
//
// Notify nunca falha: panics de observers são recuperados e logados.
type Notifier struct {
	mu        sync.RWMutex
	nextID    uint64
	observers []subscription

	logger *zap.Logger
}

type subscription struct {
	id  uint64
	obs domain.Observer
}

func NewNotifier(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Subscribe registra obs e devolve a função que o remove.
// Chamar a função mais de uma vez é seguro.
func (n *Notifier) Subscribe(obs domain.Observer) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.observers = append(n.observers, subscription{id: id, obs: obs})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { n.remove(id) })
	}
}

// SubscribeFunc é um atalho para Subscribe(domain.ObserverFunc(fn)).
func (n *Notifier) SubscribeFunc(fn func(domain.Event)) (unsubscribe func()) {
	return n.Subscribe(domain.ObserverFunc(fn))
}

// Chan entrega os eventos num canal com buffer. Se o leitor não acompanhar, o evento
// é descartado (o envio nunca bloqueia quem notifica). O canal não é fechado por cancel.
func (n *Notifier) Chan(buffer int) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, buffer)
	cancel := n.SubscribeFunc(func(ev domain.Event) {
		select {
		case ch <- ev:
		default:
			n.logger.Debug("notifier: dropping event for slow subscriber", zap.String("kind", string(ev.Kind)))
		}
	})
	return ch, cancel
}

// Len retorna quantos observers estão registrados.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Notify entrega ev a todos os observers, na ordem de inscrição.
func (n *Notifier) Notify(ev domain.Event) {
	n.mu.RLock()
	subs := make([]subscription, len(n.observers))
	copy(subs, n.observers)
	n.mu.RUnlock()

	for _, sub := range subs {
		n.observe(sub, ev)
	}
}

func (n *Notifier) observe(sub subscription, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("notifier: observer panicked",
				zap.Uint64("subscription", sub.id),
				zap.String("kind", string(ev.Kind)),
				zap.Any("panic", r),
			)
		}
	}()
	sub.obs.Observe(ev)
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, sub := range n.observers {
		if sub.id == id {
			n.observers = append(n.observers[:i:i], n.observers[i+1:]...)
			return
		}
	}
}
