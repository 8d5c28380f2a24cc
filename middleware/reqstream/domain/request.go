package domain

import "time"

// RequestHandle é a visão mínima de um request que o core precisa (logs/estatísticas).
type RequestHandle interface {
	Method() string
	Path() string
}

// ResponseHandle representa a resposta ainda aberta de um request entregue.
//
// Finish escreve a status line com corpo vazio e encerra a resposta.
// Se a resposta já foi finalizada por outro código, Finish não faz nada.
type ResponseHandle interface {
	Finished() bool
	Finish(status int, reason string)
}

// RequestContext é o par request/response capturado no momento da entrega.
// Não muda depois de criado.
type RequestContext struct {
	// ID identifica o contexto em logs e eventos.
	ID string
	// Source é o nome da fonte que entregou o request.
	Source string

	Request  RequestHandle
	Response ResponseHandle

	At time.Time
}

// Status usados pelo core ao finalizar respostas por conta própria.
const (
	StatusInternalError      = 500
	StatusServiceUnavailable = 503
)
