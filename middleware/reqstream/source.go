package reqstream

import (
	"net/http"
	"sync"

	"reqstream-gateway/middleware/reqstream/application"
	"reqstream-gateway/middleware/reqstream/domain"

	"go.uber.org/zap"
)

// Source é uma fonte HTTP: um http.Handler que dispara os handlers registrados a cada
// request recebido. Implementa domain.Source.
//
// Sem nenhum handler registrado (sequência desligada por sobrecarga, ou ainda sem
// leitor), o request é respondido na hora com 503.
type Source struct {
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	handlers []domain.Handler

	rate    *RateLimit
	keyFn   KeyFunc
	limiter application.Service
}

type SourceOption func(*Source)

func WithLogger(logger *zap.Logger) SourceOption {
	return func(s *Source) { s.logger = logger }
}

// WithRateLimit liga o limite por cliente na frente da fonte.
func WithRateLimit(rl RateLimit) SourceOption {
	return func(s *Source) { s.rate = &rl }
}

func NewSource(name string, opts ...SourceOption) *Source {
	s := &Source{name: name, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if s.rate != nil {
		s.keyFn = s.rate.KeyFn
		if s.keyFn == nil {
			s.keyFn = DefaultKeyFunc(s.rate.KeyHeader, s.rate.TrustXForwardedFor)
		}
		s.limiter = application.Service{Store: s.rate.Store, RetryAfter: s.rate.RetryAfter}
	}
	return s
}

func (s *Source) Name() string { return s.name }

// Attach registra h exatamente uma vez: remove um registro anterior antes de adicionar.
func (s *Source) Attach(h domain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(h)
	s.handlers = append(s.handlers, h)
}

func (s *Source) Detach(h domain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(h)
}

func (s *Source) removeLocked(h domain.Handler) {
	for i, cur := range s.handlers {
		if cur == h {
			s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
			return
		}
	}
}

// Handlers retorna quantos handlers estão registrados.
func (s *Source) Handlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *Source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !s.admit(w, r) {
		return
	}

	// nunca dispara handlers segurando o lock: Deliver da sequência pode chamar Detach.
	s.mu.Lock()
	handlers := append([]domain.Handler(nil), s.handlers...)
	s.mu.Unlock()

	if len(handlers) == 0 {
		s.logger.Debug("source: no handler attached, rejecting",
			zap.String("source", s.name),
			zap.String("path", r.URL.Path),
		)
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	req := &Request{r: r}
	res := newResponse(w)
	for _, h := range handlers {
		h.HandleRequest(req, res)
	}

	select {
	case <-res.Done():
	case <-r.Context().Done():
		res.abandon()
		s.logger.Debug("source: client went away before response",
			zap.String("source", s.name),
			zap.Error(r.Context().Err()),
		)
	}
}

// admit aplica o rate limit por cliente. Retorna false se já respondeu 429.
func (s *Source) admit(w http.ResponseWriter, r *http.Request) bool {
	if s.rate == nil {
		return true
	}

	key := s.keyFn(r)
	if s.rate.AddHeaders {
		w.Header().Set("X-RateLimit-Key", key)
		if ri, ok := s.rate.Store.(rateInfo); ok {
			w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
			w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
		}
	}

	dec := s.limiter.Decide(domain.Key(key))
	if dec.Allowed {
		return true
	}
	w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
	return false
}

var _ domain.Source = (*Source)(nil)
