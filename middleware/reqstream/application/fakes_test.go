package application

import (
	"sync"

	"reqstream-gateway/middleware/reqstream/domain"
)

// fakeSource imita um servidor: guarda os handlers registrados e dispara todos em Fire.
type fakeSource struct {
	name string

	mu       sync.Mutex
	handlers []domain.Handler
	attaches int
	detaches int
}

func newFakeSource(name string) *fakeSource { return &fakeSource{name: name} }

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Attach(h domain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attaches++
	for _, cur := range s.handlers {
		if cur == h {
			return
		}
	}
	s.handlers = append(s.handlers, h)
}

func (s *fakeSource) Detach(h domain.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detaches++
	for i, cur := range s.handlers {
		if cur == h {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
}

func (s *fakeSource) registered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

// Fire entrega um request novo; retorna a resposta para inspeção.
func (s *fakeSource) Fire(path string) *fakeResponse {
	s.mu.Lock()
	hs := append([]domain.Handler(nil), s.handlers...)
	s.mu.Unlock()

	res := &fakeResponse{}
	for _, h := range hs {
		h.HandleRequest(fakeRequest{method: "GET", path: path}, res)
	}
	return res
}

type fakeRequest struct {
	method, path string
}

func (r fakeRequest) Method() string { return r.method }
func (r fakeRequest) Path() string   { return r.path }

type fakeResponse struct {
	mu       sync.Mutex
	finished bool
	writes   []int
	reasons  []string
}

func (r *fakeResponse) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *fakeResponse) Finish(status int, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// sem checar finished: os testes querem ver escritas duplicadas.
	r.finished = true
	r.writes = append(r.writes, status)
	r.reasons = append(r.reasons, reason)
}

// End simula a aplicação respondendo por conta própria.
func (r *fakeResponse) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
}

func (r *fakeResponse) statuses() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.writes...)
}

func pathOf(rc domain.RequestContext) string { return rc.Request.Path() }
