package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultHighWaterMark é a capacidade usada quando Config.HighWaterMark é 0.
const DefaultHighWaterMark = 1024

var (
	ErrNoSources       = errors.New("reqstream: at least one source is required")
	ErrNilSource       = errors.New("reqstream: nil source")
	ErrInvalidCapacity = errors.New("reqstream: high water mark must be > 0")
	ErrNotASource      = errors.New("reqstream: collaborator cannot attach/detach request handlers")
)

// Config configura uma Sequence. O valor zero é válido.
type Config struct {
	// HighWaterMark é o máximo de contextos no buffer. 0 usa DefaultHighWaterMark.
	HighWaterMark int
	Logger        *zap.Logger
	// Notifier recebe os eventos "overloaded". Se nil, a sequência cria um próprio.
	Notifier *Notifier
	// Now e NewID existem para testes.
	Now   func() time.Time
	NewID func() string
}

// Sequence transforma fontes push (callbacks por request) numa sequência pull, FIFO e
// limitada por HighWaterMark.
//
// Cada leitura (Next) sinaliza demanda e religa todas as fontes. Quando uma entrega não
// cabe no buffer, todas as fontes são desligadas até a próxima leitura e o request
// rejeitado recebe 503 (ver AdmissionGuard).
type Sequence struct {
	// mu torna atômicos o enqueue-ou-rejeita e as mudanças de attach.
	mu       sync.Mutex
	queue    chan domain.RequestContext
	bindings []*binding

	guard    AdmissionGuard
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	accepted atomic.Uint64
	shed     atomic.Uint64
}

// binding é o handler registrado numa fonte. A identidade do ponteiro é o que a fonte
// usa para garantir um único registro.
type binding struct {
	seq      *Sequence
	source   domain.Source
	attached bool
}

func (b *binding) HandleRequest(req domain.RequestHandle, res domain.ResponseHandle) {
	b.seq.Deliver(b.seq.newContext(b.source.Name(), req, res))
}

// SequenceStats é uma foto dos contadores da sequência.
type SequenceStats struct {
	Accepted uint64
	Shed     uint64
	Len      int
	Cap      int
	Attached int
}

// NewSequence cria a sequência sobre sources. Nenhuma fonte é ligada até a primeira
// leitura (ou RequestMore).
func NewSequence(cfg Config, sources ...domain.Source) (*Sequence, error) {
	if err := validate(cfg, sources); err != nil {
		return nil, err
	}

	capacity := cfg.HighWaterMark
	if capacity == 0 {
		capacity = DefaultHighWaterMark
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NewNotifier(logger)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	s := &Sequence{
		queue:    make(chan domain.RequestContext, capacity),
		notifier: notifier,
		logger:   logger,
		now:      now,
		newID:    newID,
	}
	s.guard = AdmissionGuard{Notifier: notifier, Logger: logger}
	for _, src := range sources {
		s.bindings = append(s.bindings, &binding{seq: s, source: src})
	}
	return s, nil
}

// NewSequenceFromCollaborators aceita colaboradores de tipo desconhecido e falha se algum
// não implementar domain.Source. Todos os problemas são reportados juntos.
func NewSequenceFromCollaborators(cfg Config, collaborators ...any) (*Sequence, error) {
	var (
		sources []domain.Source
		errs    error
	)
	for i, c := range collaborators {
		src, ok := c.(domain.Source)
		if !ok || src == nil {
			errs = multierr.Append(errs, fmt.Errorf("collaborator %d (%T): %w", i, c, ErrNotASource))
			continue
		}
		sources = append(sources, src)
	}
	if errs != nil {
		return nil, errs
	}
	return NewSequence(cfg, sources...)
}

func validate(cfg Config, sources []domain.Source) error {
	var errs error
	if cfg.HighWaterMark < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: got %d", ErrInvalidCapacity, cfg.HighWaterMark))
	}
	if len(sources) == 0 {
		errs = multierr.Append(errs, ErrNoSources)
	}
	for i, src := range sources {
		if src == nil {
			errs = multierr.Append(errs, fmt.Errorf("source %d: %w", i, ErrNilSource))
		}
	}
	return errs
}

// RequestMore liga o handler da sequência em todas as fontes. Pode ser chamado quantas
// vezes for preciso: cada fonte fica com exatamente um registro.
func (s *Sequence) RequestMore() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.bindings {
		b.source.Detach(b)
		b.source.Attach(b)
		if !b.attached {
			b.attached = true
			s.logger.Debug("reqstream: source attached", zap.String("source", b.source.Name()))
		}
	}
}

// Detach desliga todas as fontes. Só a próxima leitura (ou RequestMore) religa.
func (s *Sequence) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()
}

func (s *Sequence) detachLocked() {
	for _, b := range s.bindings {
		b.source.Detach(b)
		if b.attached {
			b.attached = false
			s.logger.Debug("reqstream: source detached", zap.String("source", b.source.Name()))
		}
	}
}

// Deliver enfileira rc se houver espaço e retorna true. Caso contrário desliga todas as
// fontes, aciona o AdmissionGuard e retorna false. Sobrecarga não é erro.
func (s *Sequence) Deliver(rc domain.RequestContext) bool {
	s.mu.Lock()
	select {
	case s.queue <- rc:
		s.mu.Unlock()
		s.accepted.Inc()
		return true
	default:
	}
	// o detach acontece sob o lock: um RequestMore concorrente não pode ser desfeito depois.
	s.detachLocked()
	s.mu.Unlock()

	s.shed.Inc()
	s.guard.Reject(rc)
	return false
}

// Next sinaliza demanda e devolve o contexto mais antigo do buffer, bloqueando enquanto
// ele estiver vazio. Retorna ctx.Err() se ctx terminar antes.
func (s *Sequence) Next(ctx context.Context) (domain.RequestContext, error) {
	if err := ctx.Err(); err != nil {
		return domain.RequestContext{}, err
	}
	s.RequestMore()

	select {
	case rc := <-s.queue:
		return rc, nil
	case <-ctx.Done():
		return domain.RequestContext{}, ctx.Err()
	}
}

// TryNext é a leitura sem bloqueio: também sinaliza demanda.
func (s *Sequence) TryNext() (domain.RequestContext, bool) {
	s.RequestMore()

	select {
	case rc := <-s.queue:
		return rc, true
	default:
		return domain.RequestContext{}, false
	}
}

// All itera a sequência até ctx terminar.
func (s *Sequence) All(ctx context.Context) iter.Seq[domain.RequestContext] {
	return func(yield func(domain.RequestContext) bool) {
		for {
			rc, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(rc) {
				return
			}
		}
	}
}

// Drain desliga todas as fontes e retira tudo o que estava no buffer, sem sinalizar
// demanda. Serve para o encerramento: quem chama decide o que responder.
func (s *Sequence) Drain() []domain.RequestContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detachLocked()

	var out []domain.RequestContext
	for {
		select {
		case rc := <-s.queue:
			out = append(out, rc)
		default:
			return out
		}
	}
}

func (s *Sequence) Len() int { return len(s.queue) }
func (s *Sequence) Cap() int { return cap(s.queue) }

func (s *Sequence) Notifier() *Notifier { return s.notifier }

// Attached retorna quantas fontes estão ligadas agora.
func (s *Sequence) Attached() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.bindings {
		if b.attached {
			n++
		}
	}
	return n
}

func (s *Sequence) Stats() SequenceStats {
	return SequenceStats{
		Accepted: s.accepted.Load(),
		Shed:     s.shed.Load(),
		Len:      s.Len(),
		Cap:      s.Cap(),
		Attached: s.Attached(),
	}
}

func (s *Sequence) newContext(source string, req domain.RequestHandle, res domain.ResponseHandle) domain.RequestContext {
	return domain.RequestContext{
		ID:       s.newID(),
		Source:   source,
		Request:  req,
		Response: res,
		At:       s.now(),
	}
}
