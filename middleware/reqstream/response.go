package reqstream

import (
	"errors"
	"net/http"
	"sync"

	"go.uber.org/atomic"
)

var (
	ErrResponseFinished = errors.New("reqstream: response already finished")
	ErrClientGone       = errors.New("reqstream: client went away")
)

// Response é a resposta de um request entregue pela Source. Implementa http.ResponseWriter
// (dá para passar direto a um httputil.ReverseProxy) e domain.ResponseHandle.
//
// A goroutine do http.Server fica presa até End/Finish ou até o cliente desistir; depois
// disso as escritas viram no-op, porque o http.ResponseWriter original não pode mais ser usado.
type Response struct {
	mu          sync.Mutex
	w           http.ResponseWriter
	wroteHeader bool
	status      int
	gone        bool

	finished atomic.Bool
	done     chan struct{}
}

func newResponse(w http.ResponseWriter) *Response {
	return &Response{w: w, done: make(chan struct{})}
}

func (r *Response) Header() http.Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return make(http.Header)
	}
	return r.w.Header()
}

func (r *Response) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writeHeaderLocked(code)
}

func (r *Response) writeHeaderLocked(code int) {
	if r.gone || r.wroteHeader || r.finished.Load() {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.w.WriteHeader(code)
}

func (r *Response) Write(b []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.gone:
		return 0, ErrClientGone
	case r.finished.Load():
		return 0, ErrResponseFinished
	}
	r.writeHeaderLocked(http.StatusOK)
	return r.w.Write(b)
}

// Flush implementa http.Flusher quando o writer original implementa.
func (r *Response) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone || r.finished.Load() {
		return
	}
	if f, ok := r.w.(http.Flusher); ok {
		r.wroteHeader = true
		f.Flush()
	}
}

// Finish responde status com corpo vazio e encerra. No-op se já encerrada.
//
// net/http sempre usa http.StatusText(status) como reason phrase, então reason só
// serve para quem chama (logs).
func (r *Response) Finish(status int, reason string) {
	r.mu.Lock()
	if r.finished.Load() {
		r.mu.Unlock()
		return
	}
	if !r.gone && !r.wroteHeader {
		r.w.Header().Set("Content-Length", "0")
	}
	r.writeHeaderLocked(status)
	r.mu.Unlock()

	r.End()
}

// End encerra a resposta e libera a goroutine do servidor. Pode ser chamado mais de uma vez.
func (r *Response) End() {
	if r.finished.CompareAndSwap(false, true) {
		close(r.done)
	}
}

func (r *Response) Finished() bool { return r.finished.Load() }

// Done fecha quando a resposta é encerrada.
func (r *Response) Done() <-chan struct{} { return r.done }

// Status retorna o código escrito (0 se nada foi escrito ainda).
func (r *Response) Status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// abandon é chamado quando o handler do servidor retorna sem a resposta encerrada.
func (r *Response) abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gone = true
}
