package domain

// Handler recebe cada request novo de uma fonte.
//
// Implementações precisam ser comparáveis (ponteiros, em geral): é a identidade do
// handler que a fonte usa para registrar/remover.
type Handler interface {
	HandleRequest(req RequestHandle, res ResponseHandle)
}

// Source é uma fonte já escutando requests (ex: um http.Server).
//
// Attach garante que h fica registrado exatamente uma vez, qualquer que seja o estado
// anterior. Detach remove o registro se existir (no-op caso contrário).
// A fonte dispara h.HandleRequest uma vez por request, na ordem em que os recebe.
type Source interface {
	Name() string
	Attach(h Handler)
	Detach(h Handler)
}
