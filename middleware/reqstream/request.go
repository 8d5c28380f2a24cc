package reqstream

import (
	"net/http"

	"reqstream-gateway/middleware/reqstream/domain"
)

// Request é o domain.RequestHandle de um request HTTP.
type Request struct {
	r *http.Request
}

func (q *Request) Method() string { return q.r.Method }

func (q *Request) Path() string {
	if q.r.URL == nil {
		return ""
	}
	return q.r.URL.Path
}

// HTTP devolve o *http.Request original.
func (q *Request) HTTP() *http.Request { return q.r }

// HTTP extrai o request e a resposta HTTP de um contexto entregue por uma Source.
// ok=false se o contexto veio de outro tipo de fonte.
func HTTP(rc domain.RequestContext) (*http.Request, *Response, bool) {
	req, ok := rc.Request.(*Request)
	if !ok {
		return nil, nil, false
	}
	res, ok := rc.Response.(*Response)
	if !ok {
		return nil, nil, false
	}
	return req.r, res, true
}
